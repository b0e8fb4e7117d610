package etl

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nordic-credit/registry-cli/internal/config"
	"github.com/nordic-credit/registry-cli/internal/db"
	"github.com/nordic-credit/registry-cli/internal/registry"
)

// extractor abstracts the concurrent registry extraction step.
type extractor interface {
	Run(ctx context.Context, orgNumbers []string) ([]registry.Record, error)
}

// RunOutcome is the handoff document written after each run so the
// downstream analytics step can detect staleness.
type RunOutcome struct {
	Timestamp        string  `json:"timestamp"`
	Processed        int     `json:"processed"`
	ExecutionSeconds float64 `json:"execution_time"`
	Success          bool    `json:"success"`
	Error            string  `json:"error,omitempty"`
}

// Pipeline executes one full extract-reconcile-load run.
type Pipeline struct {
	cfg     *config.Config
	extract extractor
	loader  *Loader
	runLog  *RunLog
}

// New wires a Pipeline from configuration and a connection pool.
func New(pool db.Pool, cfg *config.Config) *Pipeline {
	opts := registry.Options{
		ClientID:     cfg.Registry.ClientID,
		ClientSecret: cfg.Registry.ClientSecret,
		TokenURL:     cfg.Registry.TokenURL,
		APIURL:       cfg.Registry.APIURL,
		Scope:        cfg.Registry.Scope,
		UserAgent:    cfg.Registry.UserAgent,
		Timeout:      cfg.Registry.RequestTimeout(),
		TokenMargin:  cfg.Registry.TokenMargin(),
	}

	return &Pipeline{
		cfg:     cfg,
		extract: registry.NewExtractor(opts, cfg.Registry.WorkerCount, cfg.Registry.RequestDelay()),
		loader:  NewLoader(pool),
		runLog:  NewRunLog(pool),
	}
}

// Run executes the pipeline end to end. Per-identifier failures surface as
// failure-status rows in the snapshot; systemic failures (auth, storage)
// abort the run, which is recorded as failed in etl_runs and in the
// run-outcome document.
func (p *Pipeline) Run(ctx context.Context) (*RunOutcome, error) {
	log := zap.L().With(zap.String("component", "etl.pipeline"))
	start := time.Now()

	runID, err := p.runLog.Start(ctx)
	if err != nil {
		return p.writeFailed(start, err), err
	}

	ids, err := LoadIdentifiers(p.cfg.Input.IDFile)
	if err != nil {
		return p.failed(ctx, runID, start, err)
	}
	if len(ids) == 0 {
		err := eris.Errorf("etl: no organisation ids in %s", p.cfg.Input.IDFile)
		return p.failed(ctx, runID, start, err)
	}

	records, err := p.extract.Run(ctx, ids)
	if err != nil {
		return p.failed(ctx, runID, start, eris.Wrap(err, "etl: extract"))
	}

	reference, err := LoadReference(p.cfg.Input.ReferenceFile, ReferenceOptions{
		IDColumn:       p.cfg.Input.IDColumn,
		NameColumn:     p.cfg.Input.NameColumn,
		CategoryColumn: p.cfg.Input.CategoryColumn,
	})
	if err != nil {
		return p.failed(ctx, runID, start, err)
	}

	reconciled := Reconcile(reference, records)

	result, err := p.loader.Upsert(ctx, reconciled)
	if err != nil {
		return p.failed(ctx, runID, start, err)
	}

	elapsed := time.Since(start)
	if err := p.runLog.Complete(ctx, runID, RunSummary{
		RecordsProcessed:  int64(result.Processed),
		DuplicatesRemoved: int64(result.DuplicatesRemoved),
		Elapsed:           elapsed,
	}); err != nil {
		log.Warn("failed to record run completion", zap.Error(err))
	}

	outcome := &RunOutcome{
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		Processed:        result.Processed,
		ExecutionSeconds: elapsed.Seconds(),
		Success:          true,
	}
	p.writeOutcome(outcome)

	log.Info("pipeline complete",
		zap.Int("processed", result.Processed),
		zap.Int("duplicates_removed", result.DuplicatesRemoved),
		zap.Duration("elapsed", elapsed),
	)
	return outcome, nil
}

// failed records the run as failed in the audit table and writes the
// failure outcome document.
func (p *Pipeline) failed(ctx context.Context, runID string, start time.Time, err error) (*RunOutcome, error) {
	elapsed := time.Since(start)
	if logErr := p.runLog.Fail(ctx, runID, err.Error(), elapsed); logErr != nil {
		zap.L().Warn("failed to record run failure", zap.Error(logErr))
	}
	return p.writeFailed(start, err), err
}

// writeFailed builds and persists a failure outcome document.
func (p *Pipeline) writeFailed(start time.Time, err error) *RunOutcome {
	outcome := &RunOutcome{
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ExecutionSeconds: time.Since(start).Seconds(),
		Success:          false,
		Error:            err.Error(),
	}
	p.writeOutcome(outcome)
	return outcome
}

// writeOutcome persists the run-outcome document for downstream consumers.
func (p *Pipeline) writeOutcome(outcome *RunOutcome) {
	path := p.cfg.Input.LastRunFile
	if path == "" {
		return
	}

	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		zap.L().Warn("failed to encode run outcome", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		zap.L().Warn("failed to write run outcome", zap.String("path", path), zap.Error(err))
	}
}
