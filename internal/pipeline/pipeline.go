// Package pipeline orchestrates the batch run: ingest, clean, aggregate,
// persist. Each run recomputes everything from the raw ledger; a failed
// run leaves no partial state that the next run has to reconcile.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-retail/heron/internal/clean"
	"github.com/opensource-retail/heron/internal/domain"
	"github.com/opensource-retail/heron/internal/features"
	"github.com/opensource-retail/heron/internal/ingest"
	"github.com/opensource-retail/heron/internal/segment"
)

// Runner executes the feature pipeline. Repository, event bus, and segment
// engine are optional; a nil dependency is skipped.
type Runner struct {
	cfg      *domain.Config
	repo     domain.Repository
	bus      domain.EventBus
	segments *segment.Engine
}

// NewRunner creates a pipeline runner.
func NewRunner(cfg *domain.Config, repo domain.Repository, bus domain.EventBus, segments *segment.Engine) *Runner {
	return &Runner{
		cfg:      cfg,
		repo:     repo,
		bus:      bus,
		segments: segments,
	}
}

// Run executes the full pipeline with a fresh run ID.
func (r *Runner) Run(ctx context.Context) (*domain.PipelineRun, error) {
	return r.RunWithID(ctx, uuid.New().String())
}

// RunWithID executes the full pipeline under a caller-chosen run ID. Stage
// errors are fatal to the run: the computation is deterministic, so a
// retry would reproduce the same failure. The failed run is still
// persisted for the audit trail.
func (r *Runner) RunWithID(ctx context.Context, runID string) (*domain.PipelineRun, error) {
	run := &domain.PipelineRun{
		ID:           runID,
		SourcePeriod: r.cfg.Data.SourcePeriod,
		Status:       domain.RunStatusRunning,
		FeaturesPath: r.cfg.Data.FeaturesPath,
		StartedAt:    time.Now().UTC(),
	}

	slog.Info("pipeline run started",
		"run_id", run.ID,
		"raw_path", r.cfg.Data.RawPath,
		"source_period", run.SourcePeriod,
	)

	if err := r.execute(ctx, run); err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
		run.CompletedAt = time.Now().UTC()
		r.saveRun(ctx, run)
		r.publish(ctx, domain.TopicPipelineFailed, run)
		return run, err
	}

	run.Status = domain.RunStatusCompleted
	run.CompletedAt = time.Now().UTC()
	r.saveRun(ctx, run)
	r.publish(ctx, domain.TopicPipelineCompleted, run)

	slog.Info("pipeline run completed",
		"run_id", run.ID,
		"customers", run.Customers,
		"churn_rate", run.ChurnRate,
		"duration_ms", run.CompletedAt.Sub(run.StartedAt).Milliseconds(),
	)

	return run, nil
}

func (r *Runner) execute(ctx context.Context, run *domain.PipelineRun) error {
	raw, err := ingest.LoadTransactions(r.cfg.Data.RawPath, r.cfg.Data.SourcePeriod)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	cleaned, report := clean.Clean(raw)
	run.Cleaning = report

	if r.cfg.Data.CleanPath != "" {
		if err := ingest.WriteTransactions(r.cfg.Data.CleanPath, cleaned); err != nil {
			return fmt.Errorf("writing cleaned ledger: %w", err)
		}
	}
	if r.cfg.Data.CleaningReportPath != "" {
		if err := writeReport(r.cfg.Data.CleaningReportPath, report); err != nil {
			return fmt.Errorf("writing cleaning report: %w", err)
		}
	}

	rows, err := features.Build(cleaned, r.cfg.Churn.ThresholdDays)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	run.Customers = len(rows)
	run.ChurnRate = features.ChurnRate(rows)

	if err := features.WriteTable(r.cfg.Data.FeaturesPath, rows); err != nil {
		return fmt.Errorf("writing feature table: %w", err)
	}

	if r.segments != nil && r.segments.RuleCount() > 0 {
		counts, err := r.segments.Tally(rows)
		if err != nil {
			return fmt.Errorf("segment tagging: %w", err)
		}
		run.Segments = counts
	}

	return nil
}

func (r *Runner) saveRun(ctx context.Context, run *domain.PipelineRun) {
	if r.repo == nil {
		return
	}
	if err := r.repo.SaveRun(ctx, run); err != nil {
		slog.Error("failed to save pipeline run", "run_id", run.ID, "error", err)
	}
}

func (r *Runner) publish(ctx context.Context, topic string, run *domain.PipelineRun) {
	if r.bus == nil {
		return
	}
	payload, _ := json.Marshal(run)
	if err := r.bus.Publish(ctx, topic, payload); err != nil {
		slog.Error("failed to publish run event", "run_id", run.ID, "topic", topic, "error", err)
	}
}

func writeReport(path string, report domain.CleaningReport) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &domain.ResourceError{Path: path, Err: err}
		}
	}
	data, err := json.MarshalIndent(report, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &domain.ResourceError{Path: path, Err: err}
	}
	return nil
}
