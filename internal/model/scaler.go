// Package model trains and evaluates the churn classifiers and owns their
// persisted artifacts.
package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/opensource-retail/heron/internal/domain"
)

// StandardScaler centers each feature to zero mean and unit variance.
// Constant columns keep a divisor of 1 so transformed values stay finite.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fit computes per-column mean and standard deviation from X.
func (s *StandardScaler) Fit(X *mat.Dense) error {
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("%w: cannot fit scaler on empty matrix", domain.ErrInvalidInput)
	}

	s.Mean = make([]float64, cols)
	s.Std = make([]float64, cols)

	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		m, sd := stat.MeanStdDev(col, nil)
		if sd == 0 {
			sd = 1
		}
		s.Mean[j] = m
		s.Std[j] = sd
	}
	return nil
}

// Transform returns a scaled copy of X.
func (s *StandardScaler) Transform(X *mat.Dense) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if cols != len(s.Mean) {
		return nil, fmt.Errorf("%w: matrix has %d columns, scaler fitted on %d", domain.ErrInvalidInput, cols, len(s.Mean))
	}

	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Std[j])
		}
	}
	return out, nil
}

// TransformVec scales a single feature vector in place-free form.
func (s *StandardScaler) TransformVec(x []float64) []float64 {
	out := make([]float64, len(x))
	for j := range x {
		out[j] = (x[j] - s.Mean[j]) / s.Std[j]
	}
	return out
}
