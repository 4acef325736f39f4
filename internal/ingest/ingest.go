// Package ingest reads the raw transaction ledger from flat files.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-retail/heron/internal/domain"
)

// Required columns of the raw ledger, by header name.
var requiredColumns = []string{
	"Invoice",
	"StockCode",
	"Quantity",
	"Price",
	"Customer ID",
	"InvoiceDate",
}

// Timestamp layouts accepted in the InvoiceDate column, tried in order.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
	"1/2/2006 15:04",
}

// LoadTransactions reads the raw ledger CSV at path and tags every row with
// the source-period label. The header must contain every required column;
// extra columns are ignored. A missing or unreadable file yields a
// ResourceError, a missing column a SchemaError.
func LoadTransactions(path, sourcePeriod string) ([]domain.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ResourceError{Path: path, Err: err}
	}
	defer f.Close()

	txs, err := ReadTransactions(f, sourcePeriod)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	slog.Info("raw ledger loaded",
		"path", path,
		"rows", len(txs),
		"source_period", sourcePeriod,
	)

	return txs, nil
}

// ReadTransactions parses ledger rows from r.
func ReadTransactions(r io.Reader, sourcePeriod string) ([]domain.Transaction, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var txs []domain.Transaction
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		tx, err := parseRow(record, idx, sourcePeriod)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		txs = append(txs, tx)
	}

	return txs, nil
}

// columnIndex maps the required columns to their positions in the header.
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.SchemaError{Missing: missing}
	}

	return idx, nil
}

func parseRow(record []string, idx map[string]int, sourcePeriod string) (domain.Transaction, error) {
	field := func(col string) string {
		i := idx[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	qty, err := parseQuantity(field("Quantity"))
	if err != nil {
		return domain.Transaction{}, err
	}

	price, err := strconv.ParseFloat(field("Price"), 64)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("invalid Price %q: %w", field("Price"), err)
	}

	ts, err := parseTimestamp(field("InvoiceDate"))
	if err != nil {
		return domain.Transaction{}, err
	}

	return domain.Transaction{
		Invoice:      field("Invoice"),
		StockCode:    field("StockCode"),
		Quantity:     qty,
		Price:        price,
		CustomerID:   normalizeCustomerID(field("Customer ID")),
		InvoiceDate:  ts,
		SourcePeriod: sourcePeriod,
	}, nil
}

func parseQuantity(s string) (int, error) {
	q, err := strconv.Atoi(s)
	if err == nil {
		return q, nil
	}
	// Some exports render integer quantities as "12.0".
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil {
		return 0, fmt.Errorf("invalid Quantity %q: %w", s, err)
	}
	return int(f), nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid InvoiceDate %q", s)
}

// normalizeCustomerID strips the ".0" suffix spreadsheet exports add to
// numeric customer identifiers. An empty field stays empty; the cleaner
// drops those rows.
func normalizeCustomerID(s string) string {
	return strings.TrimSuffix(s, ".0")
}
