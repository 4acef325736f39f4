package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opensource-retail/heron/internal/api"
	"github.com/opensource-retail/heron/internal/bus"
	"github.com/opensource-retail/heron/internal/cache"
	"github.com/opensource-retail/heron/internal/domain"
	"github.com/opensource-retail/heron/internal/pipeline"
	"github.com/opensource-retail/heron/internal/predict"
	"github.com/opensource-retail/heron/internal/repository"
	"github.com/opensource-retail/heron/internal/worker"
)

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the prediction API server",
		Long: `Starts the HTTP server with scoring, pipeline run, and segment rule
endpoints. A trained model is loaded from the model directory if one
exists; without it the scoring endpoints return 503 until training runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if host != "" {
				cfg.Server.Host = host
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host")
	cmd.Flags().IntVar(&port, "port", 0, "listen port")

	return cmd
}

func serve(cfg *domain.Config) error {
	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Segment Engine with rules from the database
	engine, err := loadSegmentEngine(ctx, repo)
	if err != nil {
		slog.Warn("failed to load segment rules", "error", err)
	}
	if engine != nil {
		slog.Info("segment engine initialized", "rules_count", engine.RuleCount())
	}

	// Initialize Scorer. Missing artifacts are not fatal: the server can
	// run the pipeline and train before serving predictions.
	scorer, err := predict.NewScorer(cfg.Model.Dir, cfg.Model.Candidate, cacheImpl)
	if err != nil {
		slog.Warn("no model loaded; scoring endpoints disabled until training runs",
			"model_dir", cfg.Model.Dir,
			"error", err,
		)
		scorer = nil
	}

	// Initialize Pipeline Runner
	runner := pipeline.NewRunner(cfg, repo, busImpl, engine)

	// Initialize async scoring Worker
	var asyncWorker *worker.Worker
	if scorer != nil && os.Getenv("HERON_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, scorer)
		if err := asyncWorker.Start(); err != nil {
			slog.Error("failed to start scoring worker", "error", err)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, scorer, engine, runner, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop scoring worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heron shutdown complete")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 HERON                    ║")
	fmt.Println("  ║     Customer Churn Prediction Engine      ║")
	fmt.Println("  ║      Know who is leaving, and when.       ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /predict              - Predict churn labels")
	fmt.Println("    POST /predict/proba        - Predict churn probabilities")
	fmt.Println("    GET  /customers/{id}/scores - Scoring history for a customer")
	fmt.Println("    POST /runs                 - Start a pipeline run")
	fmt.Println("    GET  /runs                 - List recent runs")
	fmt.Println("    GET  /runs/{id}            - Get run by ID")
	fmt.Println("    GET  /segments             - List segment rules")
	fmt.Println("    POST /segments             - Create a segment rule")
	fmt.Println("    DELETE /segments/{id}      - Delete a segment rule")
	fmt.Println("    POST /segments/reload      - Hot-reload segment rules")
	fmt.Println("    GET  /health               - Health check")
	fmt.Println()
}
