package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/opensource-retail/heron/internal/cache"
	"github.com/opensource-retail/heron/internal/features"
	"github.com/opensource-retail/heron/internal/predict"
)

func newScoreCmd() *cobra.Command {
	var (
		featuresPath string
		modelDir     string
		candidate    string
		outPath      string
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a feature table with a trained model",
		Long: `Loads the selected model artifact and scores every customer in the
feature table. Writes customer ID, churn probability, and label as CSV
to stdout or --out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if featuresPath != "" {
				cfg.Data.FeaturesPath = featuresPath
			}
			if modelDir != "" {
				cfg.Model.Dir = modelDir
			}
			if candidate != "" {
				cfg.Model.Candidate = candidate
			}

			rows, err := features.ReadTable(cfg.Data.FeaturesPath)
			if err != nil {
				return fmt.Errorf("loading feature table: %w", err)
			}

			scorer, err := predict.NewScorer(cfg.Model.Dir, cfg.Model.Candidate, cache.NewLRUCache(cfg.Cache.LocalMaxSize))
			if err != nil {
				return err
			}

			probas, err := scorer.PredictProba(cmd.Context(), rows)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			w := csv.NewWriter(out)
			if err := w.Write([]string{"Customer ID", "churn_probability", "churn_label"}); err != nil {
				return err
			}
			for i, row := range rows {
				label := "0"
				if probas[i] >= 0.5 {
					label = "1"
				}
				record := []string{
					row.CustomerID,
					strconv.FormatFloat(probas[i], 'g', -1, 64),
					label,
				}
				if err := w.Write(record); err != nil {
					return err
				}
			}
			w.Flush()
			return w.Error()
		},
	}

	cmd.Flags().StringVar(&featuresPath, "features", "", "customer feature table (CSV)")
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "directory with model artifacts")
	cmd.Flags().StringVar(&candidate, "model", "", `classifier to load: "logistic" or "forest"`)
	cmd.Flags().StringVar(&outPath, "out", "", "output CSV path (default stdout)")

	return cmd
}
