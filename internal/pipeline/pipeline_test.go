package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-retail/heron/internal/bus"
	"github.com/opensource-retail/heron/internal/domain"
	"github.com/opensource-retail/heron/internal/features"
	"github.com/opensource-retail/heron/internal/repository"
	"github.com/opensource-retail/heron/internal/segment"
)

const rawLedger = `Invoice,StockCode,Description,Quantity,Price,Customer ID,InvoiceDate,Country
536365,85123A,WHITE HANGING HEART,6,2.55,17850,2010-12-01 08:26:00,United Kingdom
536365,71053,WHITE METAL LANTERN,6,3.39,17850,2010-12-01 08:26:00,United Kingdom
536366,22633,HAND WARMER,6,1.85,17850,2010-12-05 08:28:00,United Kingdom
536367,84879,ASSORTED COLOUR BIRD,32,1.69,13047,2010-12-01 08:34:00,United Kingdom
C536368,22960,JAM MAKING SET,-6,4.25,13047,2010-12-01 09:41:00,United Kingdom
536369,21756,BATH BUILDING BLOCK,3,5.95,,2010-12-01 10:00:00,United Kingdom
536370,21756,BATH BUILDING BLOCK,0,5.95,12583,2010-12-01 10:30:00,France
`

func testConfig(t *testing.T) *domain.Config {
	t.Helper()
	dir := t.TempDir()

	rawPath := filepath.Join(dir, "online_retail.csv")
	if err := os.WriteFile(rawPath, []byte(rawLedger), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := domain.DefaultConfig()
	cfg.Data.RawPath = rawPath
	cfg.Data.CleanPath = filepath.Join(dir, "clean.csv")
	cfg.Data.FeaturesPath = filepath.Join(dir, "features.csv")
	cfg.Data.CleaningReportPath = filepath.Join(dir, "cleaning_report.json")
	cfg.Data.SourcePeriod = "test-period"
	return cfg
}

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "heron-pipeline-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	repo := newTestRepo(t)
	ctx := context.Background()

	runner := NewRunner(cfg, repo, nil, nil)
	run, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	t.Run("RunRecord", func(t *testing.T) {
		if run.Status != domain.RunStatusCompleted {
			t.Errorf("Status = %q, want %q", run.Status, domain.RunStatusCompleted)
		}
		if run.SourcePeriod != "test-period" {
			t.Errorf("SourcePeriod = %q, want test-period", run.SourcePeriod)
		}
		// 7 raw rows; the blank-customer row, the cancellation, and the
		// zero-quantity row are dropped.
		if run.Cleaning.RowsBefore != 7 || run.Cleaning.AfterQuantityFilter != 4 {
			t.Errorf("cleaning counts = %d -> %d, want 7 -> 4", run.Cleaning.RowsBefore, run.Cleaning.AfterQuantityFilter)
		}
		// Surviving customers: 17850 and 13047.
		if run.Customers != 2 {
			t.Errorf("Customers = %d, want 2", run.Customers)
		}
		if run.CompletedAt.Before(run.StartedAt) {
			t.Errorf("CompletedAt %v before StartedAt %v", run.CompletedAt, run.StartedAt)
		}
	})

	t.Run("Persisted", func(t *testing.T) {
		stored, err := repo.GetRun(ctx, run.ID)
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if stored.Status != domain.RunStatusCompleted || stored.Customers != 2 {
			t.Errorf("stored run differs: %+v", stored)
		}
	})

	t.Run("FeatureTable", func(t *testing.T) {
		rows, err := features.ReadTable(cfg.Data.FeaturesPath)
		if err != nil {
			t.Fatalf("ReadTable failed: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("feature table has %d rows, want 2", len(rows))
		}
		if rows[0].CustomerID != "13047" || rows[1].CustomerID != "17850" {
			t.Errorf("rows not sorted by customer: %s, %s", rows[0].CustomerID, rows[1].CustomerID)
		}
	})

	t.Run("CleanedLedger", func(t *testing.T) {
		if _, err := os.Stat(cfg.Data.CleanPath); err != nil {
			t.Errorf("cleaned ledger not written: %v", err)
		}
	})

	t.Run("CleaningReport", func(t *testing.T) {
		data, err := os.ReadFile(cfg.Data.CleaningReportPath)
		if err != nil {
			t.Fatalf("cleaning report not written: %v", err)
		}
		var report domain.CleaningReport
		if err := json.Unmarshal(data, &report); err != nil {
			t.Fatalf("cleaning report is not valid JSON: %v", err)
		}
		if report != run.Cleaning {
			t.Errorf("persisted report %+v differs from run record %+v", report, run.Cleaning)
		}
	})
}

func TestRunWithSegments(t *testing.T) {
	cfg := testConfig(t)

	engine, err := segment.NewEngine()
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.LoadRule(&domain.SegmentRule{
		ID:         "r1",
		Name:       "multi-invoice",
		Expression: "unique_invoices >= 2",
		Enabled:    true,
	}); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(cfg, nil, nil, engine)
	run, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Only customer 17850 has two invoices.
	if run.Segments["multi-invoice"] != 1 {
		t.Errorf("segments = %v, want multi-invoice: 1", run.Segments)
	}
}

func TestRunPublishesEvents(t *testing.T) {
	cfg := testConfig(t)
	b := bus.NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	events := make(chan *domain.Message, 1)
	if _, err := b.Subscribe(ctx, domain.TopicPipelineCompleted, func(ctx context.Context, msg *domain.Message) error {
		events <- msg
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(cfg, nil, b, nil)
	run, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	select {
	case msg := <-events:
		var published domain.PipelineRun
		if err := json.Unmarshal(msg.Payload, &published); err != nil {
			t.Fatalf("event payload is not a run: %v", err)
		}
		if published.ID != run.ID {
			t.Errorf("published run ID %q, want %q", published.ID, run.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("completion event not published")
	}
}

func TestRunFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.RawPath = filepath.Join(t.TempDir(), "missing.csv")
	repo := newTestRepo(t)
	ctx := context.Background()

	b := bus.NewChannelBus(10)
	defer b.Close()
	failures := make(chan *domain.Message, 1)
	if _, err := b.Subscribe(ctx, domain.TopicPipelineFailed, func(ctx context.Context, msg *domain.Message) error {
		failures <- msg
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(cfg, repo, b, nil)
	run, err := runner.Run(ctx)
	if err == nil {
		t.Fatal("expected a failure for a missing raw file")
	}
	var resErr *domain.ResourceError
	if !errors.As(err, &resErr) {
		t.Errorf("expected ResourceError, got %v", err)
	}

	if run.Status != domain.RunStatusFailed || run.Error == "" {
		t.Errorf("failed run record = %+v", run)
	}

	// The failed run is persisted for the audit trail.
	stored, err := repo.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if stored.Status != domain.RunStatusFailed {
		t.Errorf("stored status = %q, want %q", stored.Status, domain.RunStatusFailed)
	}

	select {
	case <-failures:
	case <-time.After(2 * time.Second):
		t.Fatal("failure event not published")
	}
}

func TestRunWithID(t *testing.T) {
	cfg := testConfig(t)
	runner := NewRunner(cfg, nil, nil, nil)

	run, err := runner.RunWithID(context.Background(), "fixed-id")
	if err != nil {
		t.Fatalf("RunWithID failed: %v", err)
	}
	if run.ID != "fixed-id" {
		t.Errorf("run ID = %q, want fixed-id", run.ID)
	}
}
