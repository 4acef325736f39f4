package domain

import (
	"time"
)

// Run status constants.
const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// PipelineRun records one full execution of the batch pipeline: ingestion,
// cleaning, aggregation, and the written artifacts. Each run recomputes the
// feature table from scratch; the run row is the audit trail.
type PipelineRun struct {
	ID           string         `json:"id"`
	SourcePeriod string         `json:"sourcePeriod"`
	Status       string         `json:"status"`
	Cleaning     CleaningReport `json:"cleaning"`
	Customers    int            `json:"customers"`
	ChurnRate    float64        `json:"churnRate"`
	Segments     map[string]int `json:"segments,omitempty"`
	FeaturesPath string         `json:"featuresPath"`
	Error        string         `json:"error,omitempty"`
	StartedAt    time.Time      `json:"startedAt"`
	CompletedAt  time.Time      `json:"completedAt"`
}

// TrainingReport summarizes a training run: the held-out quality metric for
// each candidate model, plus the shape of the training set.
type TrainingReport struct {
	LogisticRegressionAUC float64 `json:"logistic_regression_auc"`
	RandomForestAUC       float64 `json:"random_forest_auc"`
	NumFeatures           int     `json:"num_features"`
	Samples               int     `json:"samples"`
}

// Score is one persisted churn prediction.
type Score struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customerId,omitempty"`
	Label       int       `json:"label"`
	Probability float64   `json:"probability"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"createdAt"`
}
