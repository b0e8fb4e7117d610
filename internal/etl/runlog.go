package etl

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/nordic-credit/registry-cli/internal/db"
)

// RunEntry represents a row in etl_runs, the per-execution audit table read
// by the downstream analytics step.
type RunEntry struct {
	ID                string     `json:"id"`
	StartedAt         time.Time  `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	RecordsProcessed  int64      `json:"records_processed"`
	DuplicatesRemoved int64      `json:"duplicates_removed"`
	Success           *bool      `json:"success,omitempty"`
	ExecutionSeconds  float64    `json:"execution_seconds"`
	Error             string     `json:"error,omitempty"`
}

// RunSummary holds the figures recorded when a run completes.
type RunSummary struct {
	RecordsProcessed  int64
	DuplicatesRemoved int64
	Elapsed           time.Duration
}

// RunLog provides read/write access to the etl_runs table.
type RunLog struct {
	pool db.Pool
}

// NewRunLog creates a RunLog backed by the given connection pool.
func NewRunLog(pool db.Pool) *RunLog {
	return &RunLog{pool: pool}
}

// Start records the beginning of a pipeline run and returns its ID.
func (r *RunLog) Start(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO etl_runs (id, started_at) VALUES ($1, now())`,
		id,
	)
	if err != nil {
		return "", eris.Wrap(err, "runlog: start run")
	}
	return id, nil
}

// Complete marks a run as successfully finished.
func (r *RunLog) Complete(ctx context.Context, runID string, sum RunSummary) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE etl_runs
		 SET completed_at = now(), success = true,
		     records_processed = $1, duplicates_removed = $2, execution_seconds = $3
		 WHERE id = $4`,
		sum.RecordsProcessed, sum.DuplicatesRemoved, sum.Elapsed.Seconds(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", runID)
	}
	return nil
}

// Fail marks a run as failed with an error message.
func (r *RunLog) Fail(ctx context.Context, runID string, errMsg string, elapsed time.Duration) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE etl_runs
		 SET completed_at = now(), success = false, error = $1, execution_seconds = $2
		 WHERE id = $3`,
		errMsg, elapsed.Seconds(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", runID)
	}
	return nil
}

// ListAll returns every run entry, most recent first.
func (r *RunLog) ListAll(ctx context.Context) ([]RunEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, started_at, completed_at, records_processed, duplicates_removed,
		        success, execution_seconds, error
		 FROM etl_runs ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var (
			e      RunEntry
			errStr *string
		)
		if err := rows.Scan(&e.ID, &e.StartedAt, &e.CompletedAt, &e.RecordsProcessed,
			&e.DuplicatesRemoved, &e.Success, &e.ExecutionSeconds, &errStr); err != nil {
			return nil, eris.Wrap(err, "runlog: scan run entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
