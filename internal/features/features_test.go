package features

import (
	"math"
	"testing"
	"time"

	"github.com/opensource-retail/heron/internal/domain"
)

func tx(invoice, customer, stock string, qty int, price float64, when time.Time) domain.Transaction {
	return domain.Transaction{
		Invoice:     invoice,
		StockCode:   stock,
		Quantity:    qty,
		Price:       price,
		CustomerID:  customer,
		InvoiceDate: when,
	}
}

func day(d int) time.Time {
	return time.Date(2011, 1, d, 12, 0, 0, 0, time.UTC)
}

func TestReferenceInstant(t *testing.T) {
	txs := []domain.Transaction{
		tx("A1", "c1", "s1", 1, 1.0, day(3)),
		tx("A2", "c1", "s1", 1, 1.0, day(10)),
		tx("A3", "c2", "s1", 1, 1.0, day(7)),
	}
	ref := ReferenceInstant(txs)
	want := day(10).Add(24 * time.Hour)
	if !ref.Equal(want) {
		t.Errorf("reference instant = %v, want %v", ref, want)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	if _, err := Build(nil, 90); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestBuildSingleInvoiceCustomer(t *testing.T) {
	// One customer, one invoice, two line items on day 1. The reference
	// instant is day 1 + 1 day, so Recency is 1.
	txs := []domain.Transaction{
		tx("INV1", "c1", "s1", 6, 2.50, day(1)),
		tx("INV1", "c1", "s2", 2, 5.00, day(1)),
	}

	rows, err := Build(txs, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]

	if row.Recency != 1 {
		t.Errorf("Recency = %d, want 1", row.Recency)
	}
	if row.Frequency != 1 {
		t.Errorf("Frequency = %d, want 1", row.Frequency)
	}
	if row.Monetary != 7.50 {
		t.Errorf("Monetary = %v, want 7.50", row.Monetary)
	}
	if row.Churn != 0 {
		t.Errorf("Churn = %d, want 0", row.Churn)
	}

	// Single-invoice lifecycle columns collapse to zero, not NaN.
	if row.CustomerTenureDays != 0 {
		t.Errorf("customer_tenure_days = %d, want 0", row.CustomerTenureDays)
	}
	if row.PurchaseSpanDays != 0 {
		t.Errorf("purchase_span_days = %d, want 0", row.PurchaseSpanDays)
	}
	if row.AvgDaysBetweenOrders != 0 {
		t.Errorf("avg_days_between_orders = %v, want 0", row.AvgDaysBetweenOrders)
	}

	// Zero tenure uses a denominator of 1.
	if row.OrderConsistency != 1.0 {
		t.Errorf("order_consistency = %v, want 1.0", row.OrderConsistency)
	}
}

func TestBuildMultiInvoice(t *testing.T) {
	// Customer c1: invoices on day 1 and day 11 (span 10 days), last
	// purchase day 11, reference = day 11 + 1 day.
	txs := []domain.Transaction{
		tx("INV1", "c1", "s1", 4, 3.00, day(1)),
		tx("INV2", "c1", "s2", 8, 1.00, day(11)),
	}

	rows, err := Build(txs, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := rows[0]

	if row.Recency != 1 {
		t.Errorf("Recency = %d, want 1", row.Recency)
	}
	if row.Frequency != 2 {
		t.Errorf("Frequency = %d, want 2", row.Frequency)
	}
	if row.PurchaseSpanDays != 10 {
		t.Errorf("purchase_span_days = %d, want 10", row.PurchaseSpanDays)
	}
	// Two invoices over a 10-day span: one gap of 10 days.
	if row.AvgDaysBetweenOrders != 10 {
		t.Errorf("avg_days_between_orders = %v, want 10", row.AvgDaysBetweenOrders)
	}
	if row.DaysSinceFirstPurchase != 11 {
		t.Errorf("days_since_first_purchase = %d, want 11", row.DaysSinceFirstPurchase)
	}
	if row.TotalItemsPurchased != 12 {
		t.Errorf("total_items_purchased = %d, want 12", row.TotalItemsPurchased)
	}
	if row.MaxQuantity != 8 || row.MinQuantity != 4 {
		t.Errorf("quantity bounds = [%d,%d], want [4,8]", row.MinQuantity, row.MaxQuantity)
	}
	if row.UniqueProducts != 2 || row.UniqueInvoices != 2 {
		t.Errorf("unique products/invoices = %d/%d, want 2/2", row.UniqueProducts, row.UniqueInvoices)
	}
	if row.OrderConsistency != 0.2 {
		t.Errorf("order_consistency = %v, want 0.2", row.OrderConsistency)
	}
}

func TestBuildMonetaryIsSumOfUnitPrices(t *testing.T) {
	// Monetary sums the Price column directly; quantity never multiplies
	// into it. 10 units at 2.00 still contribute 2.00.
	txs := []domain.Transaction{
		tx("INV1", "c1", "s1", 10, 2.00, day(1)),
		tx("INV1", "c1", "s2", 1, 3.00, day(1)),
	}

	rows, err := Build(txs, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows[0].Monetary != 5.00 {
		t.Errorf("Monetary = %v, want 5.00", rows[0].Monetary)
	}
	if rows[0].TotalRevenue != 5.00 {
		t.Errorf("total_revenue = %v, want 5.00", rows[0].TotalRevenue)
	}
	// Revenue per item does use the quantity: 5.00 / 11 units.
	want := 5.00 / 11.0
	if math.Abs(rows[0].RevenuePerItem-want) > 1e-12 {
		t.Errorf("revenue_per_item = %v, want %v", rows[0].RevenuePerItem, want)
	}
}

func TestBuildChurnBoundary(t *testing.T) {
	// Two customers: one last active 91 days before the reference instant
	// (churned, strictly greater), one exactly 90 (retained).
	last := day(1)
	txs := []domain.Transaction{
		tx("INV1", "gone", "s1", 1, 1.0, last.Add(-90 * 24 * time.Hour)),
		tx("INV2", "edge", "s1", 1, 1.0, last.Add(-89 * 24 * time.Hour)),
		tx("INV3", "here", "s1", 1, 1.0, last),
	}

	rows, err := Build(txs, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byID := make(map[string]domain.CustomerFeatures)
	for _, r := range rows {
		byID[r.CustomerID] = r
	}

	if got := byID["gone"]; got.Recency != 91 || got.Churn != 1 {
		t.Errorf("gone: Recency=%d Churn=%d, want 91/1", got.Recency, got.Churn)
	}
	if got := byID["edge"]; got.Recency != 90 || got.Churn != 0 {
		t.Errorf("edge: Recency=%d Churn=%d, want 90/0", got.Recency, got.Churn)
	}
	if got := byID["here"]; got.Recency != 1 || got.Churn != 0 {
		t.Errorf("here: Recency=%d Churn=%d, want 1/0", got.Recency, got.Churn)
	}
}

func TestBuildRowsSortedAndFinite(t *testing.T) {
	txs := []domain.Transaction{
		tx("INV1", "zeta", "s1", 1, 1.0, day(1)),
		tx("INV2", "alpha", "s2", 3, 2.0, day(2)),
		tx("INV3", "mid", "s3", 2, 3.0, day(3)),
		tx("INV4", "alpha", "s2", 5, 2.5, day(9)),
	}

	rows, err := Build(txs, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 1; i < len(rows); i++ {
		if rows[i-1].CustomerID >= rows[i].CustomerID {
			t.Errorf("rows not sorted: %q before %q", rows[i-1].CustomerID, rows[i].CustomerID)
		}
	}

	for _, row := range rows {
		for j, v := range row.Vector() {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("customer %s column %s is %v", row.CustomerID, domain.ScoringColumns[j], v)
			}
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	txs := []domain.Transaction{
		tx("INV1", "c1", "s1", 2, 1.25, day(1)),
		tx("INV2", "c2", "s2", 4, 2.50, day(2)),
		tx("INV3", "c1", "s3", 1, 0.75, day(5)),
		tx("INV4", "c3", "s1", 9, 4.00, day(8)),
	}

	first, err := Build(txs, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Build(txs, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("row counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("row %d differs between runs", i)
		}
	}
}

func TestSampleStd(t *testing.T) {
	t.Run("SingleSample", func(t *testing.T) {
		if got := sampleStd([]float64{5}); got != 0 {
			t.Errorf("sampleStd of one value = %v, want 0", got)
		}
	})

	t.Run("KnownValue", func(t *testing.T) {
		// Sample std of {2, 4, 4, 4, 5, 5, 7, 9} with n-1 denominator.
		got := sampleStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
		want := math.Sqrt(32.0 / 7.0)
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("sampleStd = %v, want %v", got, want)
		}
	})
}

func TestRelabel(t *testing.T) {
	rows := []domain.CustomerFeatures{
		{CustomerID: "a", Recency: 120, Churn: 0},
		{CustomerID: "b", Recency: 90, Churn: 1},
		{CustomerID: "c", Recency: 91, Churn: 0},
	}
	Relabel(rows, 90)

	want := []int{1, 0, 1}
	for i, row := range rows {
		if row.Churn != want[i] {
			t.Errorf("%s: Churn = %d, want %d", row.CustomerID, row.Churn, want[i])
		}
	}
}

func TestChurnRate(t *testing.T) {
	rows := []domain.CustomerFeatures{
		{Churn: 1}, {Churn: 0}, {Churn: 1}, {Churn: 0},
	}
	if got := ChurnRate(rows); got != 50.0 {
		t.Errorf("churn rate = %v, want 50.0", got)
	}
	if got := ChurnRate(nil); got != 0 {
		t.Errorf("churn rate of empty = %v, want 0", got)
	}
}
