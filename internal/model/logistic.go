package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/opensource-retail/heron/internal/domain"
)

// Classifier is a trained binary churn model.
type Classifier interface {
	Fit(X *mat.Dense, y []int) error
	// PredictProba returns the churn probability for one feature vector.
	PredictProba(x []float64) float64
	// Name identifies the candidate ("logistic" or "forest").
	Name() string
	// NeedsScaling reports whether the model was fit on scaled features.
	NeedsScaling() bool
}

// LogisticRegression is a binary classifier trained with full-batch
// gradient descent and balanced class weights. Zero initialization makes
// training fully deterministic.
type LogisticRegression struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`

	LearningRate float64 `json:"learningRate"`
	MaxIter      int     `json:"maxIter"`
}

// NewLogisticRegression returns a logistic model with the defaults used by
// the training pipeline.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{
		LearningRate: 0.1,
		MaxIter:      1000,
	}
}

func (m *LogisticRegression) Name() string       { return "logistic" }
func (m *LogisticRegression) NeedsScaling() bool { return true }

// Fit trains on X (samples x features) with labels y in {0,1}. Classes are
// reweighted inversely to their frequency, so a heavily imbalanced churn
// split does not collapse to the majority class.
func (m *LogisticRegression) Fit(X *mat.Dense, y []int) error {
	rows, cols := X.Dims()
	if rows == 0 {
		return fmt.Errorf("%w: no training samples", domain.ErrInvalidInput)
	}
	if len(y) != rows {
		return fmt.Errorf("%w: %d labels for %d samples", domain.ErrInvalidInput, len(y), rows)
	}

	pos := 0
	for _, label := range y {
		if label == 1 {
			pos++
		}
	}
	neg := rows - pos
	if pos == 0 || neg == 0 {
		return fmt.Errorf("%w: training labels contain a single class", domain.ErrInvalidInput)
	}

	// Balanced class weights: n / (2 * n_c).
	wPos := float64(rows) / (2 * float64(pos))
	wNeg := float64(rows) / (2 * float64(neg))

	m.Weights = make([]float64, cols)
	m.Bias = 0

	grad := make([]float64, cols)
	for iter := 0; iter < m.MaxIter; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64

		for i := 0; i < rows; i++ {
			z := m.Bias
			for j := 0; j < cols; j++ {
				z += m.Weights[j] * X.At(i, j)
			}
			p := sigmoid(z)

			w := wNeg
			target := 0.0
			if y[i] == 1 {
				w = wPos
				target = 1.0
			}
			e := w * (p - target)

			for j := 0; j < cols; j++ {
				grad[j] += e * X.At(i, j)
			}
			gradBias += e
		}

		scale := m.LearningRate / float64(rows)
		for j := 0; j < cols; j++ {
			m.Weights[j] -= scale * grad[j]
		}
		m.Bias -= scale * gradBias
	}

	return nil
}

// PredictProba returns the churn probability for one feature vector.
func (m *LogisticRegression) PredictProba(x []float64) float64 {
	z := m.Bias
	for j, w := range m.Weights {
		z += w * x[j]
	}
	return sigmoid(z)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
