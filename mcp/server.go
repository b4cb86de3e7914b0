// Package mcp exposes the search pipeline as an MCP stdio server.
// Clients connect via stdio JSON-RPC: "tools/list" and "tools/call".
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/SynapGarden/NVIDIA-blog-mcp/engine"
	"github.com/SynapGarden/NVIDIA-blog-mcp/internal/app"
)

// ---------- JSON-RPC skeleton ----------

type rpcReq struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      any                    `json:"id"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params"`
}
type rpcResp struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      any                    `json:"id"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Error   *rpcError              `json:"error,omitempty"`
}
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeResp(w io.Writer, id any, result map[string]interface{}, err error) {
	resp := rpcResp{JSONRPC: "2.0", ID: id}
	if err != nil {
		resp.Error = &rpcError{Code: -32000, Message: err.Error()}
	} else {
		resp.Result = result
	}
	enc := json.NewEncoder(w)
	_ = enc.Encode(resp)
}

// ---------- Tool registry ----------

// ToolDesc describes a single MCP tool, including input schema.
type ToolDesc struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Server holds shared deps. Tool handlers are stateless; everything
// mutable lives behind the app.
type Server struct {
	App *app.App

	// per tools/call budget
	CallTimeout time.Duration

	logger *log.Logger
	tools  []ToolDesc
}

func NewServer(a *app.App) *Server {
	srv := &Server{
		App:         a,
		CallTimeout: 60 * time.Second,
		logger:      log.New(log.Writer(), "[MCP] ", log.LstdFlags),
	}
	srv.initTools()
	return srv
}

func (srv *Server) initTools() {
	srv.tools = []ToolDesc{
		{
			Name: "search",
			Description: "Search NVIDIA blog content. method \"rag\" runs query rewriting, " +
				"corpus retrieval and answerability grading with bounded refinement; " +
				"method \"vector\" returns raw nearest-neighbor records without grading.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":        map[string]any{"type": "string"},
					"method":       map[string]any{"type": "string", "enum": []string{"rag", "vector"}},
					"top_k":        map[string]any{"type": "integer", "minimum": 1, "maximum": 20},
					"max_distance": map[string]any{"type": "number", "exclusiveMinimum": 0},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "search.history",
			Description: "List recent searches with their grades.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": 200},
				},
			},
		},
	}
}

// callTool dispatches to handler functions.
func (srv *Server) callTool(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	switch name {
	case "search":
		return srv.tSearch(ctx, args)
	case "search.history":
		return srv.tHistory(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// ---------- Tool handlers ----------

func (srv *Server) tSearch(ctx context.Context, args map[string]any) (map[string]any, error) {
	query := str(args["query"])
	if query == "" {
		return nil, errors.New("query is required")
	}
	method := str(args["method"])
	if method == "" {
		method = "rag"
	}
	q := engine.Query{
		Text:        query,
		Method:      method,
		TopK:        asInt(args["top_k"]),
		MaxDistance: asFloat(args["max_distance"]),
	}

	if method == "vector" {
		records, err := srv.App.RawSearch(ctx, q)
		if err != nil {
			return nil, err
		}
		return map[string]any{"records": records}, nil
	}

	res, err := srv.App.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return map[string]any{"result": res}, nil
}

func (srv *Server) tHistory(ctx context.Context, args map[string]any) (map[string]any, error) {
	if srv.App.Store == nil {
		return nil, errors.New("search history not configured")
	}
	limit := clampInt(asInt(args["limit"]), 1, 200)
	rows, err := srv.App.Store.RecentSearches(ctx, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"searches": rows}, nil
}

// ---------- helpers ----------

func str(v any) string { s, _ := v.(string); return s }

func asInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case json.Number:
		i, _ := x.Int64()
		return int(i)
	default:
		return 0
	}
}

func asFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case json.Number:
		f, _ := x.Float64()
		return f
	default:
		return 0
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ---------- stdio loop ----------

// Serve runs a simple stdio JSON-RPC loop for MCP. Requests are
// newline-delimited; a malformed line is skipped without poisoning the
// reads that follow it.
func (srv *Server) Serve(in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var req rpcReq
		if err := json.Unmarshal(line, &req); err != nil {
			srv.logger.Printf("skipping malformed request: %v", err)
			continue
		}

		switch req.Method {
		case "tools/list":
			writeResp(out, req.ID, map[string]any{"tools": srv.tools}, nil)

		case "tools/call":
			name := ""
			args := map[string]any{}
			if v, ok := req.Params["name"].(string); ok {
				name = v
			}
			if m, ok := req.Params["arguments"].(map[string]any); ok {
				args = m
			}
			// Per-call timeout to avoid stuck handlers
			ctx, cancel := context.WithTimeout(context.Background(), srv.CallTimeout)
			res, err := srv.callTool(ctx, name, args)
			cancel()
			if err != nil {
				srv.logger.Printf("tool %s failed: %v", name, err)
			}
			writeResp(out, req.ID, res, err)

		default:
			writeResp(out, req.ID, nil, fmt.Errorf("unknown method: %s", req.Method))
		}
	}
	return sc.Err()
}
