// Package features computes the customer feature table from the cleaned
// transaction ledger. Four feature groups are aggregated independently over
// the same input and joined on customer identity; two consistency ratios
// are derived after the join.
package features

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/opensource-retail/heron/internal/domain"
)

// ReferenceInstant is the fixed point every recency and tenure calculation
// is taken against: the maximum timestamp in the cleaned ledger plus one
// day. It must be computed once and shared by all feature groups -
// recomputing it per group would skew Recency against the temporal columns.
func ReferenceInstant(txs []domain.Transaction) time.Time {
	var max time.Time
	for _, tx := range txs {
		if tx.InvoiceDate.After(max) {
			max = tx.InvoiceDate
		}
	}
	return max.Add(24 * time.Hour)
}

// Build computes one feature row per distinct customer in the cleaned
// ledger. The four group aggregations have no mutual dependency and run
// concurrently; the merge is anchored on the RFM group and fails with an
// IntegrityError if any group disagrees on the customer key set. Output
// rows are sorted by customer identifier so repeated runs over the same
// input are byte-identical when written.
func Build(txs []domain.Transaction, churnThresholdDays int) ([]domain.CustomerFeatures, error) {
	if len(txs) == 0 {
		return nil, fmt.Errorf("%w: no transactions to aggregate", domain.ErrInvalidInput)
	}

	ref := ReferenceInstant(txs)

	var (
		rfm      map[string]rfmRow
		purchase map[string]purchaseRow
		monetary map[string]monetaryRow
		temporal map[string]temporalRow
	)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		rfm = rfmGroup(txs, ref, churnThresholdDays)
	}()
	go func() {
		defer wg.Done()
		purchase = purchaseGroup(txs)
	}()
	go func() {
		defer wg.Done()
		monetary = monetaryGroup(txs)
	}()
	go func() {
		defer wg.Done()
		temporal = temporalGroup(txs, ref)
	}()
	wg.Wait()

	rows, err := merge(rfm, purchase, monetary, temporal)
	if err != nil {
		return nil, err
	}

	slog.Info("feature table built",
		"customers", len(rows),
		"reference_instant", ref.Format(time.RFC3339),
		"churn_threshold_days", churnThresholdDays,
	)

	return rows, nil
}

// merge joins the four group tables on customer identity, anchored on RFM,
// then derives the consistency ratios that read across groups. A customer
// missing from any group, or any surplus key outside the RFM set, is a
// data-integrity violation, never silently dropped.
func merge(
	rfm map[string]rfmRow,
	purchase map[string]purchaseRow,
	monetary map[string]monetaryRow,
	temporal map[string]temporalRow,
) ([]domain.CustomerFeatures, error) {
	for _, g := range []struct {
		name string
		size int
	}{
		{"purchase", len(purchase)},
		{"monetary", len(monetary)},
		{"temporal", len(temporal)},
	} {
		if g.size != len(rfm) {
			return nil, &domain.IntegrityError{
				Detail: fmt.Sprintf("%s group has %d customers, rfm group has %d", g.name, g.size, len(rfm)),
			}
		}
	}

	ids := make([]string, 0, len(rfm))
	for id := range rfm {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]domain.CustomerFeatures, 0, len(ids))
	for _, id := range ids {
		r := rfm[id]
		p, ok := purchase[id]
		if !ok {
			return nil, &domain.IntegrityError{CustomerID: id, Detail: "missing from purchase group"}
		}
		m, ok := monetary[id]
		if !ok {
			return nil, &domain.IntegrityError{CustomerID: id, Detail: "missing from monetary group"}
		}
		t, ok := temporal[id]
		if !ok {
			return nil, &domain.IntegrityError{CustomerID: id, Detail: "missing from temporal group"}
		}

		row := domain.CustomerFeatures{
			CustomerID: id,

			Recency:   r.Recency,
			Frequency: r.Frequency,
			Monetary:  r.Monetary,
			Churn:     r.Churn,

			AvgQuantityPerOrder: p.AvgQuantityPerOrder,
			MaxQuantity:         p.MaxQuantity,
			MinQuantity:         p.MinQuantity,
			StdQuantity:         p.StdQuantity,
			TotalItemsPurchased: p.TotalItemsPurchased,
			UniqueProducts:      p.UniqueProducts,
			UniqueInvoices:      p.UniqueInvoices,

			TotalRevenue:   m.TotalRevenue,
			AvgOrderValue:  m.AvgOrderValue,
			MaxOrderValue:  m.MaxOrderValue,
			MinOrderValue:  m.MinOrderValue,
			StdOrderValue:  m.StdOrderValue,
			RevenuePerItem: m.RevenuePerItem,

			ActiveDays:             t.ActiveDays,
			ActiveMonths:           t.ActiveMonths,
			CustomerTenureDays:     t.CustomerTenureDays,
			DaysSinceFirstPurchase: t.DaysSinceFirstPurchase,
			PurchaseSpanDays:       t.PurchaseSpanDays,
			AvgDaysBetweenOrders:   t.AvgDaysBetweenOrders,
		}

		// Consistency ratios read columns from two different groups, so
		// they can only exist after the merge. A zero tenure substitutes a
		// denominator of 1 instead of dividing by zero.
		tenure := float64(row.CustomerTenureDays)
		if tenure == 0 {
			tenure = 1
		}
		row.OrderConsistency = float64(row.Frequency) / tenure
		row.SpendConsistency = row.AvgOrderValue / (row.StdOrderValue + 1)

		rows = append(rows, row)
	}

	return rows, nil
}

// ChurnRate is the fraction of rows labeled churned, as a percentage.
func ChurnRate(rows []domain.CustomerFeatures) float64 {
	if len(rows) == 0 {
		return 0
	}
	churned := 0
	for _, row := range rows {
		churned += row.Churn
	}
	return float64(churned) / float64(len(rows)) * 100
}
