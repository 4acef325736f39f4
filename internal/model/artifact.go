package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opensource-retail/heron/internal/domain"
)

// Artifact file names inside the model directory.
const (
	LogisticFile = "logistic_model.json"
	ForestFile   = "random_forest_model.json"
	ScalerFile   = "scaler.json"
	ReportFile   = "model_report.json"
)

// artifact is the on-disk envelope for a trained classifier. The type tag
// selects which payload is populated.
type artifact struct {
	Type     string              `json:"type"`
	Logistic *LogisticRegression `json:"logistic,omitempty"`
	Forest   *RandomForest       `json:"forest,omitempty"`
}

// SaveClassifier writes a trained classifier to path.
func SaveClassifier(path string, c Classifier) error {
	a := artifact{Type: c.Name()}
	switch m := c.(type) {
	case *LogisticRegression:
		a.Logistic = m
	case *RandomForest:
		a.Forest = m
	default:
		return fmt.Errorf("%w: unknown classifier type %T", domain.ErrInvalidInput, c)
	}
	return writeJSON(path, a)
}

// LoadClassifier reads a classifier artifact from path.
func LoadClassifier(path string) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ResourceError{Path: path, Err: err}
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	switch a.Type {
	case "logistic":
		if a.Logistic == nil {
			return nil, fmt.Errorf("%w: artifact %s has no logistic payload", domain.ErrInvalidInput, path)
		}
		return a.Logistic, nil
	case "forest":
		if a.Forest == nil {
			return nil, fmt.Errorf("%w: artifact %s has no forest payload", domain.ErrInvalidInput, path)
		}
		return a.Forest, nil
	default:
		return nil, fmt.Errorf("%w: unknown artifact type %q in %s", domain.ErrInvalidInput, a.Type, path)
	}
}

// SaveScaler writes the fitted scaler to path.
func SaveScaler(path string, s *StandardScaler) error {
	return writeJSON(path, s)
}

// LoadScaler reads a scaler artifact. A missing file means "no scaling
// applied" and returns nil, nil rather than an error.
func LoadScaler(path string) (*StandardScaler, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.ResourceError{Path: path, Err: err}
	}

	var s StandardScaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &s, nil
}

// SaveReport writes the training report to path.
func SaveReport(path string, report *domain.TrainingReport) error {
	return writeJSON(path, report)
}

func writeJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &domain.ResourceError{Path: path, Err: err}
		}
	}
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &domain.ResourceError{Path: path, Err: err}
	}
	return nil
}
