package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/opensource-retail/heron/internal/bus"
	"github.com/opensource-retail/heron/internal/domain"
	"github.com/opensource-retail/heron/internal/model"
	"github.com/opensource-retail/heron/internal/predict"
)

func testScorer(t *testing.T) *predict.Scorer {
	t.Helper()
	dir := t.TempDir()

	rows := make([]domain.CustomerFeatures, 60)
	for i := range rows {
		f := domain.CustomerFeatures{CustomerID: "c", Frequency: 1 + i%5, Monetary: 20 + float64(i)}
		if i%3 == 0 {
			f.Recency = 150 + i
			f.Churn = 1
		} else {
			f.Recency = 5 + i%50
		}
		rows[i] = f
	}
	if _, err := model.Train(domain.ModelConfig{Dir: dir, TestSize: 0.2, Seed: 42}, rows); err != nil {
		t.Fatalf("training fixture failed: %v", err)
	}

	s, err := predict.NewScorer(dir, "forest", nil)
	if err != nil {
		t.Fatalf("failed to create scorer: %v", err)
	}
	return s
}

func awaitResult(t *testing.T, results <-chan *domain.Message) *ScoreResult {
	t.Helper()
	select {
	case msg := <-results:
		var result ScoreResult
		if err := json.Unmarshal(msg.Payload, &result); err != nil {
			t.Fatalf("failed to parse score result: %v", err)
		}
		return &result
	case <-time.After(5 * time.Second):
		t.Fatal("no score result published")
		return nil
	}
}

func TestWorkerScoring(t *testing.T) {
	b := bus.NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	w := NewWorker(b, nil, testScorer(t))
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	stats := w.GetStats()
	if stats.SubscriptionCount != 1 || stats.Topics[0] != domain.TopicScoreRequest {
		t.Errorf("unexpected stats: %+v", stats)
	}

	results := make(chan *domain.Message, 4)
	if _, err := b.Subscribe(ctx, domain.TopicScoreResult, func(ctx context.Context, msg *domain.Message) error {
		results <- msg
		return nil
	}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	t.Run("SingleRecord", func(t *testing.T) {
		churny := domain.CustomerFeatures{Recency: 300, Frequency: 1, Monetary: 5}
		payload, _ := json.Marshal(ScoreRequest{
			RequestID: "req-1",
			Features:  churny.Record(),
		})
		if err := b.Publish(ctx, domain.TopicScoreRequest, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		result := awaitResult(t, results)
		if result.RequestID != "req-1" {
			t.Errorf("RequestID = %q, want req-1", result.RequestID)
		}
		if result.Error != "" {
			t.Fatalf("unexpected scoring error: %s", result.Error)
		}
		if len(result.Scores) != 1 {
			t.Fatalf("got %d scores, want 1", len(result.Scores))
		}
		s := result.Scores[0]
		if s.Probability < 0 || s.Probability > 1 {
			t.Errorf("probability %v out of [0,1]", s.Probability)
		}
		if s.Model != "forest" || s.ID == "" {
			t.Errorf("score missing envelope fields: %+v", s)
		}
	})

	t.Run("Batch", func(t *testing.T) {
		a := domain.CustomerFeatures{Recency: 300, Frequency: 1, Monetary: 5}
		b2 := domain.CustomerFeatures{Recency: 3, Frequency: 8, Monetary: 90}
		payload, _ := json.Marshal(ScoreRequest{
			RequestID: "req-2",
			Batch:     []map[string]any{a.Record(), b2.Record()},
		})
		if err := b.Publish(ctx, domain.TopicScoreRequest, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		result := awaitResult(t, results)
		if result.Error != "" {
			t.Fatalf("unexpected scoring error: %s", result.Error)
		}
		if len(result.Scores) != 2 {
			t.Fatalf("got %d scores, want 2", len(result.Scores))
		}
	})

	t.Run("EmptyRequest", func(t *testing.T) {
		payload, _ := json.Marshal(ScoreRequest{RequestID: "req-3"})
		if err := b.Publish(ctx, domain.TopicScoreRequest, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		result := awaitResult(t, results)
		if result.Error == "" {
			t.Error("expected an error for a request without features")
		}
		if len(result.Scores) != 0 {
			t.Errorf("got %d scores for an empty request, want 0", len(result.Scores))
		}
	})

	t.Run("InvalidFeatures", func(t *testing.T) {
		payload, _ := json.Marshal(ScoreRequest{
			RequestID: "req-4",
			Features:  map[string]any{"Recency": 10},
		})
		if err := b.Publish(ctx, domain.TopicScoreRequest, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		result := awaitResult(t, results)
		if result.Error == "" {
			t.Error("expected a validation error for incomplete features")
		}
	})
}

func TestWorkerStop(t *testing.T) {
	b := bus.NewChannelBus(10)
	defer b.Close()

	w := NewWorker(b, nil, testScorer(t))
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if stats := w.GetStats(); stats.SubscriptionCount != 0 {
		t.Errorf("SubscriptionCount = %d after Stop, want 0", stats.SubscriptionCount)
	}
}
