package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/opensource-retail/heron/internal/domain"
)

// WriteTransactions writes a ledger to path as CSV with the same header
// LoadTransactions expects, so the cleaned intermediate file round-trips.
func WriteTransactions(path string, txs []domain.Transaction) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &domain.ResourceError{Path: path, Err: err}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return &domain.ResourceError{Path: path, Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(requiredColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, tx := range txs {
		record := []string{
			tx.Invoice,
			tx.StockCode,
			strconv.Itoa(tx.Quantity),
			strconv.FormatFloat(tx.Price, 'g', -1, 64),
			tx.CustomerID,
			tx.InvoiceDate.Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}

	return f.Close()
}
