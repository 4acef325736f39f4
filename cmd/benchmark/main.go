// Benchmark tool for testing Heron against a labeled feature table.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/customer_features.csv -url http://localhost:8080
//
// This tool:
//   1. Reads a customer feature table (with churn labels)
//   2. Sends each customer to Heron for prediction
//   3. Compares Heron's label with the actual churn label
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-retail/heron/internal/domain"
	"github.com/opensource-retail/heron/internal/features"
)

// PredictRequest is the Heron API request format
type PredictRequest struct {
	CustomerID string           `json:"customerId,omitempty"`
	Records    []map[string]any `json:"records"`
}

// PredictResponse is the Heron API response format
type PredictResponse struct {
	Predictions []int  `json:"predictions"`
	Model       string `json:"model"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Churn predicted as churn
	FalsePositives int64 // Retained predicted as churn
	TrueNegatives  int64 // Retained predicted as retained
	FalseNegatives int64 // Churn predicted as retained (missed churn!)

	TotalProcessed int64
	TotalChurned   int64
	TotalRetained  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to customer feature table CSV")
	baseURL := flag.String("url", "http://localhost:8080", "Heron base URL")
	limit := flag.Int("limit", 0, "Maximum customers to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each customer result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/customer_features.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          HERON BENCHMARK - Churn Prediction Replay            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:   %s\n", *csvPath)
	fmt.Printf("Heron URL:  %s\n", *baseURL)
	fmt.Printf("Workers:    %d\n", *workers)
	fmt.Printf("Limit:      %d\n", *limit)
	fmt.Println()

	// Check Heron is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Heron not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Heron is running:")
		fmt.Println("  go run cmd/heron/main.go serve")
		os.Exit(1)
	}
	fmt.Println("✓ Heron is healthy")

	// Read feature table
	fmt.Printf("\nReading feature table from %s...\n", *csvPath)
	rows, err := features.ReadTable(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: Failed to read feature table: %v\n", err)
		os.Exit(1)
	}
	if *limit > 0 && len(rows) > *limit {
		rows = rows[:*limit]
	}
	fmt.Printf("✓ Loaded %d customers\n", len(rows))

	churned := 0
	for _, row := range rows {
		if row.Churn == 1 {
			churned++
		}
	}
	fmt.Printf("  - Churned:  %d (%.2f%%)\n", churned, 100*float64(churned)/float64(len(rows)))
	fmt.Printf("  - Retained: %d (%.2f%%)\n", len(rows)-churned, 100*float64(len(rows)-churned)/float64(len(rows)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(rows, *baseURL, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func runBenchmark(rows []domain.CustomerFeatures, baseURL string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan domain.CustomerFeatures, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for row := range work {
				start := time.Now()
				predicted, err := predictCustomer(client, baseURL, row)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", row.CustomerID, err)
					}
					continue
				}

				// Track actual labels
				actual := row.Churn == 1
				if actual {
					atomic.AddInt64(&metrics.TotalChurned, 1)
				} else {
					atomic.AddInt64(&metrics.TotalRetained, 1)
				}

				// Calculate confusion matrix
				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if predicted != actual {
						status = "✗"
					}
					fmt.Printf("%s %-12s | Recency: %4d | Frequency: %3d | Churned: %-5v | Heron: %v\n",
						status,
						row.CustomerID,
						row.Recency,
						row.Frequency,
						actual,
						predicted,
					)
				}
			}
		}()
	}

	// Send work
	for _, row := range rows {
		work <- row
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func predictCustomer(client *http.Client, baseURL string, row domain.CustomerFeatures) (bool, error) {
	req := PredictRequest{
		Records: []map[string]any{row.Record()},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return false, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, err
	}
	if len(result.Predictions) != 1 {
		return false, fmt.Errorf("expected 1 prediction, got %d", len(result.Predictions))
	}

	return result.Predictions[0] == 1, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Churned:    %d\n", m.TotalChurned)
	fmt.Printf("   Total Retained:   %d\n", m.TotalRetained)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Printf("                      Predicted Churn    Predicted Retained\n")
	fmt.Printf("   Actual Churn       %-18d %d\n", m.TruePositives, m.FalseNegatives)
	fmt.Printf("   Actual Retained    %-18d %d\n", m.FalsePositives, m.TrueNegatives)

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}
	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}
	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	accuracy := float64(0)
	if m.TotalProcessed > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(m.TotalProcessed)
	}

	fmt.Printf("\n🎯 CLASSIFICATION METRICS\n")
	fmt.Printf("   Accuracy:   %.4f\n", accuracy)
	fmt.Printf("   Precision:  %.4f\n", precision)
	fmt.Printf("   Recall:     %.4f\n", recall)
	fmt.Printf("   F1-Score:   %.4f\n", f1)

	avgMs := float64(0)
	if m.TotalProcessed > 0 {
		avgMs = float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
	}

	fmt.Printf("\n⏱  PERFORMANCE\n")
	fmt.Printf("   Total Time:       %s\n", duration.Round(time.Millisecond))
	fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
	if duration.Seconds() > 0 {
		fmt.Printf("   Throughput:       %.0f req/s\n", float64(m.TotalProcessed)/duration.Seconds())
	}
	fmt.Println()
}
