package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/SynapGarden/NVIDIA-blog-mcp/engine"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/app"
	"github.com/SynapGarden/NVIDIA-blog-mcp/retrieval"
)

type SearchHandler struct {
	App *app.App
}

func (h *SearchHandler) Register(g *echo.Group) {
	g.POST("/search", h.search)
	g.GET("/searches", h.recent)
	g.GET("/searches/:id", h.get)
}

type searchRequest struct {
	Query       string  `json:"query"`
	Method      string  `json:"method"`
	TopK        int     `json:"top_k"`
	MaxDistance float64 `json:"max_distance"`
}

// search runs the full pipeline for method "rag" and the ungraded raw
// lookup for method "vector".
func (h *SearchHandler) search(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Method == "" {
		req.Method = "rag"
	}
	q := engine.Query{
		Text:        req.Query,
		Method:      req.Method,
		TopK:        req.TopK,
		MaxDistance: req.MaxDistance,
	}

	ctx := c.Request().Context()
	if req.Method == "vector" {
		records, err := h.App.RawSearch(ctx, q)
		if err != nil {
			return searchError(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"records": records})
	}

	res, err := h.App.Search(ctx, q)
	if err != nil {
		return searchError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func searchError(err error) error {
	switch {
	case errors.Is(err, engine.ErrEmptyQuery),
		errors.Is(err, engine.ErrConfiguration),
		errors.Is(err, engine.ErrUnknownMethod):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, retrieval.ErrUnavailable):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return err
	}
}

func (h *SearchHandler) recent(c echo.Context) error {
	if h.App.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search history not configured")
	}
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	rows, err := h.App.Store.RecentSearches(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"searches": rows})
}

func (h *SearchHandler) get(c echo.Context) error {
	if h.App.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search history not configured")
	}
	res, err := h.App.Store.GetSearch(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "search not found")
	}
	return c.JSON(http.StatusOK, res)
}
