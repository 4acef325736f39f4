package features

import (
	"time"

	"github.com/opensource-retail/heron/internal/domain"
)

// temporalRow holds the lifecycle statistics for one customer.
type temporalRow struct {
	ActiveDays             int
	ActiveMonths           int
	CustomerTenureDays     int
	DaysSinceFirstPurchase int
	PurchaseSpanDays       int
	AvgDaysBetweenOrders   float64
}

// temporalGroup computes lifecycle statistics per customer against the
// shared reference instant. PurchaseSpanDays duplicates CustomerTenureDays
// by construction; both columns are part of the table contract.
// A single-invoice customer gets AvgDaysBetweenOrders = 0, never a
// propagated missing value.
func temporalGroup(txs []domain.Transaction, ref time.Time) map[string]temporalRow {
	type acc struct {
		first, last time.Time
		days        map[string]struct{}
		months      map[string]struct{}
		invoices    map[string]struct{}
	}

	groups := make(map[string]*acc)
	for _, tx := range txs {
		g, ok := groups[tx.CustomerID]
		if !ok {
			g = &acc{
				first:    tx.InvoiceDate,
				last:     tx.InvoiceDate,
				days:     make(map[string]struct{}),
				months:   make(map[string]struct{}),
				invoices: make(map[string]struct{}),
			}
			groups[tx.CustomerID] = g
		}
		if tx.InvoiceDate.Before(g.first) {
			g.first = tx.InvoiceDate
		}
		if tx.InvoiceDate.After(g.last) {
			g.last = tx.InvoiceDate
		}
		g.days[tx.InvoiceDate.Format("2006-01-02")] = struct{}{}
		g.months[tx.InvoiceDate.Format("2006-01")] = struct{}{}
		g.invoices[tx.Invoice] = struct{}{}
	}

	rows := make(map[string]temporalRow, len(groups))
	for id, g := range groups {
		span := wholeDays(g.first, g.last)
		row := temporalRow{
			ActiveDays:             len(g.days),
			ActiveMonths:           len(g.months),
			CustomerTenureDays:     span,
			DaysSinceFirstPurchase: wholeDays(g.first, ref),
			PurchaseSpanDays:       span,
		}
		if orders := len(g.invoices); orders > 1 {
			row.AvgDaysBetweenOrders = float64(span) / float64(orders-1)
		}
		rows[id] = row
	}
	return rows
}
