package predict

import (
	"context"
	"errors"
	"testing"

	"github.com/opensource-retail/heron/internal/cache"
	"github.com/opensource-retail/heron/internal/contract"
	"github.com/opensource-retail/heron/internal/domain"
	"github.com/opensource-retail/heron/internal/model"
)

// trainedDir fits both candidates on a small synthetic table and returns
// the artifact directory.
func trainedDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	rows := make([]domain.CustomerFeatures, 60)
	for i := range rows {
		f := domain.CustomerFeatures{
			CustomerID: "c",
			Frequency:  1 + i%5,
			Monetary:   20 + float64(i),
		}
		if i%3 == 0 {
			f.Recency = 150 + i
			f.Churn = 1
		} else {
			f.Recency = 5 + i%50
		}
		rows[i] = f
	}

	cfg := domain.ModelConfig{Dir: dir, TestSize: 0.2, Seed: 42}
	if _, err := model.Train(cfg, rows); err != nil {
		t.Fatalf("training fixture failed: %v", err)
	}
	return dir
}

func churnyRecord() map[string]any {
	f := domain.CustomerFeatures{Recency: 300, Frequency: 1, Monetary: 5}
	return f.Record()
}

func loyalRecord() map[string]any {
	f := domain.CustomerFeatures{Recency: 3, Frequency: 5, Monetary: 80}
	return f.Record()
}

func TestNewScorer(t *testing.T) {
	dir := trainedDir(t)

	t.Run("Logistic", func(t *testing.T) {
		s, err := NewScorer(dir, "logistic", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.ModelName() != "logistic" {
			t.Errorf("ModelName = %q, want logistic", s.ModelName())
		}
	})

	t.Run("Forest", func(t *testing.T) {
		s, err := NewScorer(dir, "forest", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.ModelName() != "forest" {
			t.Errorf("ModelName = %q, want forest", s.ModelName())
		}
	})

	t.Run("DefaultIsForest", func(t *testing.T) {
		s, err := NewScorer(dir, "", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.ModelName() != "forest" {
			t.Errorf("ModelName = %q, want forest", s.ModelName())
		}
	})

	t.Run("UnknownCandidate", func(t *testing.T) {
		if _, err := NewScorer(dir, "xgboost", nil); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("MissingArtifacts", func(t *testing.T) {
		var resErr *domain.ResourceError
		if _, err := NewScorer(t.TempDir(), "forest", nil); !errors.As(err, &resErr) {
			t.Fatalf("expected ResourceError, got %v", err)
		}
	})
}

func TestPredict(t *testing.T) {
	dir := trainedDir(t)
	ctx := context.Background()

	for _, candidate := range []string{"logistic", "forest"} {
		t.Run(candidate, func(t *testing.T) {
			s, err := NewScorer(dir, candidate, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			probs, err := s.PredictProba(ctx, []map[string]any{loyalRecord(), churnyRecord()})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(probs) != 2 {
				t.Fatalf("got %d probabilities, want 2", len(probs))
			}
			for _, p := range probs {
				if p < 0 || p > 1 {
					t.Errorf("probability %v out of [0,1]", p)
				}
			}
			if probs[1] <= probs[0] {
				t.Errorf("stale customer scored %v, active one %v; expected a higher churn probability for the stale customer", probs[1], probs[0])
			}

			labels, err := s.Predict(ctx, []map[string]any{loyalRecord(), churnyRecord()})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for i, p := range probs {
				want := 0
				if p >= 0.5 {
					want = 1
				}
				if labels[i] != want {
					t.Errorf("label %d = %d does not match probability %v", i, labels[i], p)
				}
			}
		})
	}
}

func TestPredictValidation(t *testing.T) {
	s, err := NewScorer(trainedDir(t), "forest", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	t.Run("MissingColumns", func(t *testing.T) {
		var schemaErr *domain.SchemaError
		if _, err := s.Predict(ctx, map[string]any{"Recency": 10}); !errors.As(err, &schemaErr) {
			t.Fatalf("expected SchemaError, got %v", err)
		}
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		if _, err := s.Predict(ctx, []map[string]any{}); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestPredictCaching(t *testing.T) {
	dir := trainedDir(t)
	lru := cache.NewLRUCache(16)
	defer lru.Close()

	s, err := NewScorer(dir, "forest", lru)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	first, err := s.PredictProba(ctx, churnyRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.PredictProba(ctx, churnyRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first[0] != second[0] {
		t.Errorf("cached score %v differs from first %v", second[0], first[0])
	}

	// The cached entry is keyed on the vector hash, and a lookup on that
	// key returns the stored score directly.
	key := s.cacheKey(must(t, churnyRecord()))
	score, err := lru.GetScore(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score == nil {
		t.Fatal("expected a cached score after scoring")
	}
	if score.Probability != first[0] {
		t.Errorf("cached probability %v, want %v", score.Probability, first[0])
	}
	if score.Model != "forest" {
		t.Errorf("cached model %q, want forest", score.Model)
	}
}

func must(t *testing.T, rec map[string]any) []float64 {
	t.Helper()
	vecs, err := contract.Validate(rec)
	if err != nil {
		t.Fatal(err)
	}
	return vecs[0]
}
