// Package clean removes invalid and irrelevant rows from the raw ledger.
package clean

import (
	"log/slog"
	"math"
	"strings"

	"github.com/opensource-retail/heron/internal/domain"
)

// Clean applies the four cleaning filters in their fixed order and reports
// the row count after each stage:
//
//  1. drop rows with no customer identifier
//  2. drop cancelled invoices (identifier starts with "C")
//  3. drop exact-duplicate rows
//  4. drop rows with non-positive quantity
//
// The order matters: each count in the report is cumulative over the
// previous filters. Clean never mutates its input.
func Clean(txs []domain.Transaction) ([]domain.Transaction, domain.CleaningReport) {
	report := domain.CleaningReport{RowsBefore: len(txs)}

	kept := filter(txs, func(tx domain.Transaction) bool {
		return tx.CustomerID != ""
	})
	report.AfterCustomerFilter = len(kept)

	kept = filter(kept, func(tx domain.Transaction) bool {
		return !strings.HasPrefix(tx.Invoice, domain.CancellationPrefix)
	})
	report.AfterCancellationFilter = len(kept)

	kept = dropDuplicates(kept)
	report.AfterDuplicatesFilter = len(kept)

	kept = filter(kept, func(tx domain.Transaction) bool {
		return tx.Quantity > 0
	})
	report.AfterQuantityFilter = len(kept)

	report.RetentionPercent = retention(report.AfterQuantityFilter, report.RowsBefore)

	slog.Info("ledger cleaned",
		"rows_before", report.RowsBefore,
		"after_customer_filter", report.AfterCustomerFilter,
		"after_cancellation_filter", report.AfterCancellationFilter,
		"after_duplicates_filter", report.AfterDuplicatesFilter,
		"after_quantity_filter", report.AfterQuantityFilter,
		"retention_percent", report.RetentionPercent,
	)

	return kept, report
}

func filter(txs []domain.Transaction, keep func(domain.Transaction) bool) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// dropDuplicates removes rows equal in every field, keeping the first
// occurrence. Transaction is comparable, so full-row equality is map-key
// equality.
func dropDuplicates(txs []domain.Transaction) []domain.Transaction {
	seen := make(map[domain.Transaction]struct{}, len(txs))
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if _, ok := seen[tx]; ok {
			continue
		}
		seen[tx] = struct{}{}
		out = append(out, tx)
	}
	return out
}

// retention is final/initial as a percentage, rounded to 2 decimal places.
func retention(after, before int) float64 {
	if before == 0 {
		return 0
	}
	return math.Round(float64(after)/float64(before)*100*100) / 100
}
