// Package predict exposes the churn scoring interface consumed by the API
// layer and the async worker.
package predict

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/opensource-retail/heron/internal/contract"
	"github.com/opensource-retail/heron/internal/domain"
	"github.com/opensource-retail/heron/internal/model"
)

const defaultCacheTTL = 10 * time.Minute

// Scorer is a long-lived scoring handle. Artifacts are loaded once at
// construction and shared by every call; nothing is reloaded per request.
type Scorer struct {
	classifier model.Classifier
	scaler     *model.StandardScaler
	cache      domain.Cache
	cacheTTL   time.Duration
}

// NewScorer loads the selected candidate classifier and the scaler from
// modelDir. A missing scaler file means raw features go straight to the
// model; a missing classifier is fatal. cache may be nil.
func NewScorer(modelDir, candidate string, cache domain.Cache) (*Scorer, error) {
	var file string
	switch candidate {
	case "logistic":
		file = model.LogisticFile
	case "forest", "":
		file = model.ForestFile
	default:
		return nil, fmt.Errorf("%w: unknown model candidate %q", domain.ErrInvalidInput, candidate)
	}

	classifier, err := model.LoadClassifier(filepath.Join(modelDir, file))
	if err != nil {
		return nil, fmt.Errorf("loading classifier: %w", err)
	}

	var scaler *model.StandardScaler
	if classifier.NeedsScaling() {
		scaler, err = model.LoadScaler(filepath.Join(modelDir, model.ScalerFile))
		if err != nil {
			return nil, fmt.Errorf("loading scaler: %w", err)
		}
		if scaler == nil {
			slog.Warn("no scaler artifact found, scoring on raw features", "model_dir", modelDir)
		}
	}

	slog.Info("scorer initialized",
		"model", classifier.Name(),
		"scaled", scaler != nil,
	)

	return &Scorer{
		classifier: classifier,
		scaler:     scaler,
		cache:      cache,
		cacheTTL:   defaultCacheTTL,
	}, nil
}

// ModelName returns the name of the loaded classifier.
func (s *Scorer) ModelName() string { return s.classifier.Name() }

// Predict returns a churn label per input record. The input passes through
// the feature-contract validator first; no prediction is returned for any
// record when validation fails.
func (s *Scorer) Predict(ctx context.Context, input any) ([]int, error) {
	probs, err := s.PredictProba(ctx, input)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(probs))
	for i, p := range probs {
		if p >= 0.5 {
			labels[i] = 1
		}
	}
	return labels, nil
}

// PredictProba returns a churn probability per input record.
func (s *Scorer) PredictProba(ctx context.Context, input any) ([]float64, error) {
	vectors, err := contract.Validate(input)
	if err != nil {
		return nil, err
	}

	probs := make([]float64, len(vectors))
	for i, vec := range vectors {
		probs[i] = s.scoreVector(ctx, vec)
	}
	return probs, nil
}

// scoreVector scores one contract-ordered vector, consulting the score
// cache when one is configured.
func (s *Scorer) scoreVector(ctx context.Context, vec []float64) float64 {
	key := s.cacheKey(vec)
	if s.cache != nil {
		if cached, err := s.cache.GetScore(ctx, key); err == nil && cached != nil {
			return cached.Probability
		}
	}

	x := vec
	if s.scaler != nil {
		x = s.scaler.TransformVec(vec)
	}
	p := s.classifier.PredictProba(x)

	if s.cache != nil {
		label := 0
		if p >= 0.5 {
			label = 1
		}
		_ = s.cache.SetScore(ctx, key, &domain.Score{
			Label:       label,
			Probability: p,
			Model:       s.classifier.Name(),
			CreatedAt:   time.Now().UTC(),
		}, s.cacheTTL)
	}

	return p
}

// cacheKey hashes the feature vector together with the model name, so a
// retrained or swapped artifact never serves a stale prediction.
func (s *Scorer) cacheKey(vec []float64) string {
	h := fnv.New64a()
	h.Write([]byte(s.classifier.Name()))
	buf := make([]byte, 8)
	for _, v := range vec {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		h.Write(buf)
	}
	return fmt.Sprintf("score:%x", h.Sum64())
}
