package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensource-retail/heron/internal/features"
	"github.com/opensource-retail/heron/internal/model"
)

func newTrainCmd() *cobra.Command {
	var (
		featuresPath string
		modelDir     string
		testSize     float64
		seed         int64
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train churn models on a feature table",
		Long: `Loads the customer feature table, trains the logistic regression and
random forest candidates on a stratified split, and writes the model
artifacts and evaluation report to the model directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if featuresPath != "" {
				cfg.Data.FeaturesPath = featuresPath
			}
			if modelDir != "" {
				cfg.Model.Dir = modelDir
			}
			if testSize > 0 {
				cfg.Model.TestSize = testSize
			}
			if cmd.Flags().Changed("seed") {
				cfg.Model.Seed = seed
			}

			rows, err := features.ReadTable(cfg.Data.FeaturesPath)
			if err != nil {
				return fmt.Errorf("loading feature table: %w", err)
			}

			report, err := model.Train(cfg.Model, rows)
			if err != nil {
				return err
			}

			cmd.Printf("trained on %d samples (%d features)\n", report.Samples, report.NumFeatures)
			cmd.Printf("  logistic regression ROC-AUC: %.4f\n", report.LogisticRegressionAUC)
			cmd.Printf("  random forest ROC-AUC:       %.4f\n", report.RandomForestAUC)
			return nil
		},
	}

	cmd.Flags().StringVar(&featuresPath, "features", "", "customer feature table (CSV)")
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "directory for model artifacts")
	cmd.Flags().Float64Var(&testSize, "test-size", 0, "held-out fraction for evaluation")
	cmd.Flags().Int64Var(&seed, "seed", 42, "random seed for the split and forest")

	return cmd
}
