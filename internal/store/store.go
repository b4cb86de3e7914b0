// Package store persists search history in Postgres. Persistence is
// best-effort: a failed insert is logged by the caller and never fails
// the search itself.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/SynapGarden/NVIDIA-blog-mcp/engine"
)

type Store struct {
	DB *sql.DB
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// SearchSummary is one row of search history.
type SearchSummary struct {
	ID                   string    `json:"id"`
	Query                string    `json:"query"`
	Method               string    `json:"method"`
	GradeScore           *float64  `json:"grade_score"`
	Grounded             *bool     `json:"grounded"`
	RefinementIterations int       `json:"refinement_iterations"`
	Degraded             []string  `json:"degraded,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// SaveSearch records a completed search and returns the row ID.
func (s *Store) SaveSearch(ctx context.Context, method string, res *engine.SearchResult) (string, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("marshal search result: %w", err)
	}
	var score sql.NullFloat64
	var grounded sql.NullBool
	if res.Grade != nil {
		score = sql.NullFloat64{Float64: res.Grade.Score, Valid: true}
		grounded = sql.NullBool{Bool: res.Grade.Grounded, Valid: true}
	}
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO searches (id, query, method, grade_score, grounded, refinement_iterations, degraded, result)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		id, res.Query, method, score, grounded, res.RefinementIterations,
		pq.Array(res.Degraded), payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

// RecentSearches returns the newest history rows, most recent first.
func (s *Store) RecentSearches(ctx context.Context, limit int) ([]SearchSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, query, method, grade_score, grounded, refinement_iterations, degraded, created_at
		FROM searches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchSummary
	for rows.Next() {
		var row SearchSummary
		var score sql.NullFloat64
		var grounded sql.NullBool
		if err := rows.Scan(&row.ID, &row.Query, &row.Method, &score, &grounded,
			&row.RefinementIterations, pq.Array(&row.Degraded), &row.CreatedAt); err != nil {
			return nil, err
		}
		if score.Valid {
			row.GradeScore = &score.Float64
		}
		if grounded.Valid {
			row.Grounded = &grounded.Bool
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetSearch loads the full stored result for one search.
func (s *Store) GetSearch(ctx context.Context, id string) (*engine.SearchResult, error) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT result FROM searches WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		return nil, err
	}
	var res engine.SearchResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode stored result: %w", err)
	}
	return &res, nil
}
