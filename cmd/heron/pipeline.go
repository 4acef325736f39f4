package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/opensource-retail/heron/internal/bus"
	"github.com/opensource-retail/heron/internal/domain"
	"github.com/opensource-retail/heron/internal/pipeline"
	"github.com/opensource-retail/heron/internal/repository"
	"github.com/opensource-retail/heron/internal/segment"
)

func newPipelineCmd() *cobra.Command {
	var (
		rawPath      string
		cleanPath    string
		featuresPath string
		reportPath   string
		threshold    int
		noStore      bool
	)

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run the feature pipeline over a raw transaction ledger",
		Long: `Reads the raw ledger, drops unusable rows, aggregates per-customer
churn features, tags segments, and writes the feature table. The run
record is stored in the repository unless --no-store is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if rawPath != "" {
				cfg.Data.RawPath = rawPath
			}
			if cleanPath != "" {
				cfg.Data.CleanPath = cleanPath
			}
			if featuresPath != "" {
				cfg.Data.FeaturesPath = featuresPath
			}
			if reportPath != "" {
				cfg.Data.CleaningReportPath = reportPath
			}
			if threshold > 0 {
				cfg.Churn.ThresholdDays = threshold
			}
			if cfg.Data.RawPath == "" {
				return fmt.Errorf("--raw is required")
			}

			runner, cleanup, err := buildRunner(cmd.Context(), cfg, noStore)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Printf("run %s completed: %d customers, churn rate %.2f%%\n",
				run.ID, run.Customers, run.ChurnRate)
			return nil
		},
	}

	cmd.Flags().StringVar(&rawPath, "raw", "", "raw transaction ledger (CSV)")
	cmd.Flags().StringVar(&cleanPath, "clean", "", "output path for the cleaned ledger")
	cmd.Flags().StringVar(&featuresPath, "features", "", "output path for the feature table")
	cmd.Flags().StringVar(&reportPath, "report", "", "output path for the cleaning report (JSON)")
	cmd.Flags().IntVar(&threshold, "churn-days", 0, "recency threshold in days for churn labeling")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "skip the run repository and event bus")

	return cmd
}

// buildRunner wires the pipeline with its optional infrastructure. With
// noStore the run executes against flat files only.
func buildRunner(ctx context.Context, cfg *domain.Config, noStore bool) (*pipeline.Runner, func(), error) {
	if noStore {
		return pipeline.NewRunner(cfg, nil, nil, nil), func() {}, nil
	}

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing repository: %w", err)
	}

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("initializing event bus: %w", err)
	}

	engine, err := loadSegmentEngine(ctx, repo)
	if err != nil {
		slog.Warn("segment engine unavailable", "error", err)
	}

	cleanup := func() {
		busImpl.Close()
		repo.Close()
	}
	return pipeline.NewRunner(cfg, repo, busImpl, engine), cleanup, nil
}

// loadSegmentEngine builds the CEL engine with the enabled rules from the
// repository. An empty rule set is fine; rules are added via the API.
func loadSegmentEngine(ctx context.Context, repo domain.Repository) (*segment.Engine, error) {
	engine, err := segment.NewEngine()
	if err != nil {
		return nil, err
	}

	rules, err := repo.ListSegmentRules(ctx)
	if err != nil {
		return engine, err
	}
	if len(rules) > 0 {
		if err := engine.LoadRules(rules); err != nil {
			return engine, err
		}
	}
	return engine, nil
}
