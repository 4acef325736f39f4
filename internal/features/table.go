package features

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/opensource-retail/heron/internal/domain"
)

// WriteTable writes the feature table to path as CSV with the fixed header
// from domain.TableColumns. The file is the schema reference for training
// and serving; column order never varies between runs.
func WriteTable(path string, rows []domain.CustomerFeatures) error {
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
	if err := w.Write(domain.TableColumns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i := range rows {
		if err := w.Write(rows[i].Row()); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}

	return f.Close()
}

// ReadTable reads a feature table previously written by WriteTable. The
// header must match domain.TableColumns exactly; any missing column is a
// SchemaError.
func ReadTable(path string) ([]domain.CustomerFeatures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.ResourceError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, path)
	}

	if err := checkHeader(records[0]); err != nil {
		return nil, err
	}

	rows := make([]domain.CustomerFeatures, 0, len(records)-1)
	for i, record := range records[1:] {
		row, err := parseTableRow(record)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func checkHeader(header []string) error {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	var missing []string
	for _, col := range domain.TableColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &domain.SchemaError{Missing: missing}
	}
	for i, col := range domain.TableColumns {
		if i >= len(header) || header[i] != col {
			return fmt.Errorf("%w: column %d is %q, want %q", domain.ErrInvalidInput, i, header[i], col)
		}
	}
	return nil
}

func parseTableRow(record []string) (domain.CustomerFeatures, error) {
	if len(record) != len(domain.TableColumns) {
		return domain.CustomerFeatures{}, fmt.Errorf("%w: have %d fields, want %d",
			domain.ErrInvalidInput, len(record), len(domain.TableColumns))
	}

	pos := 0
	next := func() string {
		v := record[pos]
		pos++
		return v
	}

	var row domain.CustomerFeatures
	var err error

	row.CustomerID = next()

	geti := func() int {
		if err != nil {
			return 0
		}
		var v int
		v, err = strconv.Atoi(next())
		return v
	}
	getf := func() float64 {
		if err != nil {
			return 0
		}
		var v float64
		v, err = strconv.ParseFloat(next(), 64)
		return v
	}

	row.Recency = geti()
	row.Frequency = geti()
	row.Monetary = getf()
	row.Churn = geti()
	row.AvgQuantityPerOrder = getf()
	row.MaxQuantity = geti()
	row.MinQuantity = geti()
	row.StdQuantity = getf()
	row.TotalItemsPurchased = geti()
	row.UniqueProducts = geti()
	row.UniqueInvoices = geti()
	row.TotalRevenue = getf()
	row.AvgOrderValue = getf()
	row.MaxOrderValue = getf()
	row.MinOrderValue = getf()
	row.StdOrderValue = getf()
	row.RevenuePerItem = getf()
	row.ActiveDays = geti()
	row.ActiveMonths = geti()
	row.CustomerTenureDays = geti()
	row.DaysSinceFirstPurchase = geti()
	row.PurchaseSpanDays = geti()
	row.AvgDaysBetweenOrders = getf()
	row.OrderConsistency = getf()
	row.SpendConsistency = getf()

	if err != nil {
		return domain.CustomerFeatures{}, err
	}
	return row, nil
}
