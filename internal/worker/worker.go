// Package worker provides async batch scoring over the event bus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-retail/heron/internal/domain"
	"github.com/opensource-retail/heron/internal/predict"
)

// Worker scores customers asynchronously from the EventBus. Callers publish
// feature records to the score request topic and receive results on the
// score result topic.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	scorer *predict.Scorer

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async scoring worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, scorer *predict.Scorer) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		scorer: scorer,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the score request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicScoreRequest, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("scoring worker started", "topic", domain.TopicScoreRequest)
	return nil
}

// ScoreRequest is the message payload for async scoring.
type ScoreRequest struct {
	RequestID  string           `json:"requestId"`
	CustomerID string           `json:"customerId"`
	Features   map[string]any   `json:"features,omitempty"`
	Batch      []map[string]any `json:"batch,omitempty"`
}

// ScoreResult is published after scoring a request.
type ScoreResult struct {
	RequestID string          `json:"requestId"`
	Scores    []*domain.Score `json:"scores,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var req ScoreRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse score request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if req.RequestID == "" {
		req.RequestID = msg.ID
	}

	result := w.score(ctx, &req)
	w.publishResult(ctx, result)

	slog.Info("score request processed",
		"request_id", req.RequestID,
		"customer_id", req.CustomerID,
		"scores", len(result.Scores),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func (w *Worker) score(ctx context.Context, req *ScoreRequest) *ScoreResult {
	records := req.Batch
	if len(records) == 0 && req.Features != nil {
		records = []map[string]any{req.Features}
	}
	if len(records) == 0 {
		return &ScoreResult{RequestID: req.RequestID, Error: "no features in request"}
	}

	probas, err := w.scorer.PredictProba(ctx, records)
	if err != nil {
		return &ScoreResult{RequestID: req.RequestID, Error: err.Error()}
	}

	scores := make([]*domain.Score, len(probas))
	for i, p := range probas {
		label := 0
		if p >= 0.5 {
			label = 1
		}
		scores[i] = &domain.Score{
			ID:          uuid.New().String(),
			CustomerID:  req.CustomerID,
			Label:       label,
			Probability: p,
			Model:       w.scorer.ModelName(),
			CreatedAt:   time.Now().UTC(),
		}
	}

	if w.repo != nil && req.CustomerID != "" {
		for _, s := range scores {
			if err := w.repo.SaveScore(ctx, s); err != nil {
				slog.Error("failed to save score",
					"request_id", req.RequestID,
					"customer_id", s.CustomerID,
					"error", err,
				)
			}
		}
	}

	return &ScoreResult{RequestID: req.RequestID, Scores: scores}
}

func (w *Worker) publishResult(ctx context.Context, result *ScoreResult) {
	payload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, domain.TopicScoreResult, payload); err != nil {
		slog.Error("failed to publish score result",
			"request_id", result.RequestID,
			"error", err,
		)
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("scoring worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
