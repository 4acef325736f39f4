package model

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/opensource-retail/heron/internal/domain"
)

// Train fits both candidate classifiers on the feature table and writes
// the artifacts and training report into cfg.Dir. The logistic candidate
// trains on standard-scaled features; the forest trains on raw features.
// Held-out AUC for each candidate goes into the report.
func Train(cfg domain.ModelConfig, rows []domain.CustomerFeatures) (*domain.TrainingReport, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: feature table is empty", domain.ErrInvalidInput)
	}

	nFeatures := len(domain.ScoringColumns)
	X := mat.NewDense(len(rows), nFeatures, nil)
	y := make([]int, len(rows))
	for i := range rows {
		X.SetRow(i, rows[i].Vector())
		y[i] = rows[i].Churn
	}

	trainIdx, testIdx, err := StratifiedSplit(y, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, err
	}

	XTrain, yTrain := subset(X, y, trainIdx)
	XTest, yTest := subset(X, y, testIdx)

	scaler := &StandardScaler{}
	if err := scaler.Fit(XTrain); err != nil {
		return nil, err
	}
	XTrainScaled, err := scaler.Transform(XTrain)
	if err != nil {
		return nil, err
	}
	XTestScaled, err := scaler.Transform(XTest)
	if err != nil {
		return nil, err
	}

	logistic := NewLogisticRegression()
	if err := logistic.Fit(XTrainScaled, yTrain); err != nil {
		return nil, fmt.Errorf("fitting logistic regression: %w", err)
	}
	logisticAUC := testAUC(logistic, XTestScaled, yTest)

	forest := NewRandomForest(cfg.Seed)
	if err := forest.Fit(XTrain, yTrain); err != nil {
		return nil, fmt.Errorf("fitting random forest: %w", err)
	}
	forestAUC := testAUC(forest, XTest, yTest)

	if err := SaveClassifier(filepath.Join(cfg.Dir, LogisticFile), logistic); err != nil {
		return nil, err
	}
	if err := SaveClassifier(filepath.Join(cfg.Dir, ForestFile), forest); err != nil {
		return nil, err
	}
	if err := SaveScaler(filepath.Join(cfg.Dir, ScalerFile), scaler); err != nil {
		return nil, err
	}

	report := &domain.TrainingReport{
		LogisticRegressionAUC: round4(logisticAUC),
		RandomForestAUC:       round4(forestAUC),
		NumFeatures:           nFeatures,
		Samples:               len(rows),
	}
	if err := SaveReport(filepath.Join(cfg.Dir, ReportFile), report); err != nil {
		return nil, err
	}

	slog.Info("training complete",
		"samples", report.Samples,
		"features", report.NumFeatures,
		"logistic_auc", report.LogisticRegressionAUC,
		"forest_auc", report.RandomForestAUC,
		"model_dir", cfg.Dir,
	)

	return report, nil
}

func subset(X *mat.Dense, y []int, idx []int) (*mat.Dense, []int) {
	_, cols := X.Dims()
	sub := mat.NewDense(len(idx), cols, nil)
	labels := make([]int, len(idx))
	for k, i := range idx {
		sub.SetRow(k, mat.Row(nil, i, X))
		labels[k] = y[i]
	}
	return sub, labels
}

func testAUC(c Classifier, X *mat.Dense, y []int) float64 {
	rows, _ := X.Dims()
	probs := make([]float64, rows)
	for i := 0; i < rows; i++ {
		probs[i] = c.PredictProba(mat.Row(nil, i, X))
	}
	return ROCAUC(y, probs)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
