// Heron - Customer churn prediction for retail transaction ledgers.
// Copyright (c) 2025 opensource.retail
// Licensed under the Apache License 2.0

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-retail/heron/internal/domain"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:   "heron",
		Short: "Customer churn prediction engine",
		Long: `Heron turns a raw retail transaction ledger into customer churn
features, trains churn models on them, and serves predictions over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogging()
		},
	}

	root.AddCommand(
		newPipelineCmd(),
		newTrainCmd(),
		newScoreCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func initLogging() {
	logLevel := slog.LevelInfo
	if os.Getenv("HERON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// loadConfig builds the runtime configuration. HERON_PROFILE=distributed
// switches to the postgres/redis/NATS stack.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	if os.Getenv("HERON_PROFILE") == "distributed" {
		cfg = domain.DistributedConfig()
		slog.Info("running in distributed profile")
	}
	return cfg
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("heron %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}
