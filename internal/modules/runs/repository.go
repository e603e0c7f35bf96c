// Package runs records the metric calculations served by the API so recent
// results can be listed and reproduced from their stored parameters.
package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Run is one stored calculation.
type Run struct {
	ID        string                 `json:"id"`
	Metric    string                 `json:"metric"`
	Params    map[string]interface{} `json:"params"`
	Value     float64                `json:"value"`
	CreatedAt time.Time              `json:"created_at"`
}

// Repository persists runs in runs.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new run repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "runs").Logger(),
	}
}

// Record stores a run and returns it with ID and CreatedAt filled in.
func (r *Repository) Record(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	params, err := json.Marshal(run.Params)
	if err != nil {
		return Run{}, fmt.Errorf("failed to marshal run params: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO runs (id, metric, params, value, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Metric, string(params), run.Value, run.CreatedAt.Unix())
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}

	r.log.Debug().Str("id", run.ID).Str("metric", run.Metric).Float64("value", run.Value).Msg("Recorded run")
	return run, nil
}

// Recent returns up to limit runs, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, metric, params, value, created_at
		FROM runs
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var result []Run
	for rows.Next() {
		var (
			run       Run
			params    string
			createdAt int64
		)
		if err := rows.Scan(&run.ID, &run.Metric, &params, &run.Value, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if params != "" {
			if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
				return nil, fmt.Errorf("failed to unmarshal params of run %s: %w", run.ID, err)
			}
		}
		run.CreatedAt = time.Unix(createdAt, 0).UTC()
		result = append(result, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return result, nil
}

// Get returns a run by ID, or nil if it does not exist.
func (r *Repository) Get(ctx context.Context, id string) (*Run, error) {
	var (
		run       Run
		params    string
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, metric, params, value, created_at FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Metric, &params, &run.Value, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	if params != "" {
		if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params of run %s: %w", run.ID, err)
		}
	}
	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &run, nil
}
