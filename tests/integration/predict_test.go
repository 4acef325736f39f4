//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Heron churn
// prediction engine against a running server.
//
// These tests verify the complete serving path:
//
//	Feature record → schema validation → scaling → classifier → label
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// The server must have a trained model loaded. Seed one with:
//
//	heron pipeline --raw testdata/online_retail.csv
//	heron train
//	heron serve
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

func baseURL() string {
	if url := os.Getenv("HERON_TEST_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

type predictRequest struct {
	CustomerID string           `json:"customerId,omitempty"`
	Records    []map[string]any `json:"records"`
}

type predictResponse struct {
	Predictions   []int     `json:"predictions"`
	Probabilities []float64 `json:"probabilities"`
	Model         string    `json:"model"`
}

// featureRecord builds a complete scoring record. Override columns via
// the overrides map.
func featureRecord(overrides map[string]any) map[string]any {
	record := map[string]any{
		"Recency":                  30.0,
		"Frequency":                12.0,
		"Monetary":                 340.5,
		"avg_quantity_per_order":   8.2,
		"max_quantity":             48.0,
		"min_quantity":             1.0,
		"std_quantity":             5.1,
		"total_items_purchased":    820.0,
		"unique_products":          42.0,
		"unique_invoices":          12.0,
		"total_revenue":            340.5,
		"avg_order_value":          28.4,
		"max_order_value":          90.0,
		"min_order_value":          4.5,
		"std_order_value":          14.2,
		"revenue_per_item":         0.42,
		"active_days":              12.0,
		"active_months":            7.0,
		"customer_tenure_days":     210.0,
		"days_since_first_purchase": 240.0,
		"purchase_span_days":       210.0,
		"avg_days_between_orders":  19.1,
		"order_consistency":        0.057,
		"spend_consistency":        1.87,
	}
	for k, v := range overrides {
		record[k] = v
	}
	return record
}

func predict(t *testing.T, path string, req predictRequest) (*http.Response, predictResponse) {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(baseURL()+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	var out predictResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp, out
}

func TestHealthEndpoint(t *testing.T) {
	resp, err := http.Get(baseURL() + "/health")
	if err != nil {
		t.Fatalf("server not reachable at %s: %v", baseURL(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health returned %d", resp.StatusCode)
	}
}

func TestPredictReturnsLabelPerRecord(t *testing.T) {
	resp, out := predict(t, "/predict", predictRequest{
		Records: []map[string]any{
			featureRecord(nil),
			featureRecord(map[string]any{"Recency": 200.0, "Frequency": 1.0}),
		},
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("predict returned %d", resp.StatusCode)
	}
	if len(out.Predictions) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(out.Predictions))
	}
	for i, label := range out.Predictions {
		if label != 0 && label != 1 {
			t.Errorf("prediction %d: label %d outside {0,1}", i, label)
		}
	}
	if out.Model == "" {
		t.Error("response missing model name")
	}
}

func TestPredictProbaReturnsProbabilities(t *testing.T) {
	resp, out := predict(t, "/predict/proba", predictRequest{
		Records: []map[string]any{featureRecord(nil)},
	})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("predict/proba returned %d", resp.StatusCode)
	}
	if len(out.Probabilities) != 1 {
		t.Fatalf("expected 1 probability, got %d", len(out.Probabilities))
	}
	if p := out.Probabilities[0]; p < 0 || p > 1 {
		t.Errorf("probability %v outside [0,1]", p)
	}
}

func TestPredictRejectsMissingColumns(t *testing.T) {
	record := featureRecord(nil)
	delete(record, "Recency")
	delete(record, "spend_consistency")

	resp, _ := predict(t, "/predict", predictRequest{
		Records: []map[string]any{record},
	})

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing columns, got %d", resp.StatusCode)
	}
}

func TestPredictRejectsEmptyBody(t *testing.T) {
	resp, _ := predict(t, "/predict", predictRequest{})

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty records, got %d", resp.StatusCode)
	}
}

func TestRunLifecycle(t *testing.T) {
	if os.Getenv("HERON_TEST_RAW") == "" {
		t.Skip("HERON_TEST_RAW not set; skipping pipeline run test")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(baseURL()+"/runs", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /runs: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var started struct {
		RunID string `json:"runId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decode run response: %v", err)
	}
	if started.RunID == "" {
		t.Fatal("run response missing runId")
	}

	// Poll until the run completes or fails.
	deadline := time.Now().Add(2 * time.Minute)
	for time.Now().Before(deadline) {
		getResp, err := client.Get(fmt.Sprintf("%s/runs/%s", baseURL(), started.RunID))
		if err != nil {
			t.Fatalf("GET /runs/%s: %v", started.RunID, err)
		}

		var run struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		}
		err = json.NewDecoder(getResp.Body).Decode(&run)
		getResp.Body.Close()
		if err != nil {
			t.Fatalf("decode run: %v", err)
		}

		switch run.Status {
		case "COMPLETED":
			return
		case "FAILED":
			t.Fatalf("run failed: %s", run.Error)
		}
		time.Sleep(2 * time.Second)
	}
	t.Fatal("run did not complete within 2 minutes")
}
