package features

import (
	"time"

	"github.com/opensource-retail/heron/internal/domain"
)

// rfmRow holds the recency/frequency/monetary summary for one customer,
// with the churn label folded in.
type rfmRow struct {
	Recency   int
	Frequency int
	Monetary  float64
	Churn     int
}

// rfmGroup computes the RFM summary per customer against the shared
// reference instant. Recency is whole days from the customer's last
// purchase to the reference instant; Frequency counts distinct invoices;
// Monetary sums unit prices across line items (not price*quantity - the
// feature table contract fixes this definition).
func rfmGroup(txs []domain.Transaction, ref time.Time, churnThresholdDays int) map[string]rfmRow {
	type acc struct {
		last     time.Time
		invoices map[string]struct{}
		monetary float64
	}

	groups := make(map[string]*acc)
	for _, tx := range txs {
		g, ok := groups[tx.CustomerID]
		if !ok {
			g = &acc{invoices: make(map[string]struct{})}
			groups[tx.CustomerID] = g
		}
		if tx.InvoiceDate.After(g.last) {
			g.last = tx.InvoiceDate
		}
		g.invoices[tx.Invoice] = struct{}{}
		g.monetary += tx.Price
	}

	rows := make(map[string]rfmRow, len(groups))
	for id, g := range groups {
		recency := wholeDays(g.last, ref)
		row := rfmRow{
			Recency:   recency,
			Frequency: len(g.invoices),
			Monetary:  g.monetary,
		}
		if recency > churnThresholdDays {
			row.Churn = 1
		}
		rows[id] = row
	}
	return rows
}

// Relabel recomputes the churn column from Recency against a threshold.
// The label is a pure function of Recency: strictly greater than the
// threshold means churned. Used when re-deriving labels for evaluation.
func Relabel(rows []domain.CustomerFeatures, churnThresholdDays int) {
	for i := range rows {
		if rows[i].Recency > churnThresholdDays {
			rows[i].Churn = 1
		} else {
			rows[i].Churn = 0
		}
	}
}

// wholeDays is the number of complete days from a to b.
func wholeDays(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
