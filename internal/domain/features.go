package domain

import "strconv"

// CustomerFeatures is one row of the customer feature table: every
// behavioral feature derived from the cleaned ledger for one customer,
// plus the churn label.
type CustomerFeatures struct {
	CustomerID string `json:"customerId"`

	// RFM group. Monetary is the sum of unit prices across line items,
	// not price*quantity. That matches the source pipeline exactly; see
	// the feature table contract before changing it.
	Recency   int     `json:"recency"`
	Frequency int     `json:"frequency"`
	Monetary  float64 `json:"monetary"`

	// Churn is 1 when Recency strictly exceeds the configured threshold.
	Churn int `json:"churn"`

	// Purchase-shape group.
	AvgQuantityPerOrder float64 `json:"avgQuantityPerOrder"`
	MaxQuantity         int     `json:"maxQuantity"`
	MinQuantity         int     `json:"minQuantity"`
	StdQuantity         float64 `json:"stdQuantity"`
	TotalItemsPurchased int     `json:"totalItemsPurchased"`
	UniqueProducts      int     `json:"uniqueProducts"`
	UniqueInvoices      int     `json:"uniqueInvoices"`

	// Monetary-shape group.
	TotalRevenue   float64 `json:"totalRevenue"`
	AvgOrderValue  float64 `json:"avgOrderValue"`
	MaxOrderValue  float64 `json:"maxOrderValue"`
	MinOrderValue  float64 `json:"minOrderValue"`
	StdOrderValue  float64 `json:"stdOrderValue"`
	RevenuePerItem float64 `json:"revenuePerItem"`

	// Temporal group.
	ActiveDays             int     `json:"activeDays"`
	ActiveMonths           int     `json:"activeMonths"`
	CustomerTenureDays     int     `json:"customerTenureDays"`
	DaysSinceFirstPurchase int     `json:"daysSinceFirstPurchase"`
	PurchaseSpanDays       int     `json:"purchaseSpanDays"`
	AvgDaysBetweenOrders   float64 `json:"avgDaysBetweenOrders"`

	// Cross-group consistency ratios, computed after the merge.
	OrderConsistency float64 `json:"orderConsistency"`
	SpendConsistency float64 `json:"spendConsistency"`
}

// ScoringColumns is the ordered list of feature columns the trained model
// consumes. Training and serving must both produce vectors in exactly this
// order; the contract validator enforces it at the serving boundary.
var ScoringColumns = []string{
	"Recency",
	"Frequency",
	"Monetary",
	"avg_quantity_per_order",
	"max_quantity",
	"min_quantity",
	"std_quantity",
	"total_items_purchased",
	"unique_products",
	"unique_invoices",
	"total_revenue",
	"avg_order_value",
	"max_order_value",
	"min_order_value",
	"std_order_value",
	"revenue_per_item",
	"active_days",
	"active_months",
	"customer_tenure_days",
	"days_since_first_purchase",
	"purchase_span_days",
	"avg_days_between_orders",
	"order_consistency",
	"spend_consistency",
}

// TableColumns is the ordered header of the persisted feature table:
// identity, RFM, label, then the scoring columns that follow Monetary.
var TableColumns = []string{
	"Customer ID",
	"Recency",
	"Frequency",
	"Monetary",
	"Churn",
	"avg_quantity_per_order",
	"max_quantity",
	"min_quantity",
	"std_quantity",
	"total_items_purchased",
	"unique_products",
	"unique_invoices",
	"total_revenue",
	"avg_order_value",
	"max_order_value",
	"min_order_value",
	"std_order_value",
	"revenue_per_item",
	"active_days",
	"active_months",
	"customer_tenure_days",
	"days_since_first_purchase",
	"purchase_span_days",
	"avg_days_between_orders",
	"order_consistency",
	"spend_consistency",
}

// Vector returns the feature values in ScoringColumns order.
func (f *CustomerFeatures) Vector() []float64 {
	return []float64{
		float64(f.Recency),
		float64(f.Frequency),
		f.Monetary,
		f.AvgQuantityPerOrder,
		float64(f.MaxQuantity),
		float64(f.MinQuantity),
		f.StdQuantity,
		float64(f.TotalItemsPurchased),
		float64(f.UniqueProducts),
		float64(f.UniqueInvoices),
		f.TotalRevenue,
		f.AvgOrderValue,
		f.MaxOrderValue,
		f.MinOrderValue,
		f.StdOrderValue,
		f.RevenuePerItem,
		float64(f.ActiveDays),
		float64(f.ActiveMonths),
		float64(f.CustomerTenureDays),
		float64(f.DaysSinceFirstPurchase),
		float64(f.PurchaseSpanDays),
		f.AvgDaysBetweenOrders,
		f.OrderConsistency,
		f.SpendConsistency,
	}
}

// Record returns the scoring features as a column-name keyed map. Used to
// feed a feature row back through the serving-side contract validator.
func (f *CustomerFeatures) Record() map[string]any {
	vec := f.Vector()
	rec := make(map[string]any, len(ScoringColumns))
	for i, col := range ScoringColumns {
		rec[col] = vec[i]
	}
	return rec
}

// Row returns the feature row formatted for the flat-file table, in
// TableColumns order. Integers render without a decimal point and floats
// use the shortest exact representation, so rewriting the same rows
// produces byte-identical files.
func (f *CustomerFeatures) Row() []string {
	return []string{
		f.CustomerID,
		strconv.Itoa(f.Recency),
		strconv.Itoa(f.Frequency),
		formatFloat(f.Monetary),
		strconv.Itoa(f.Churn),
		formatFloat(f.AvgQuantityPerOrder),
		strconv.Itoa(f.MaxQuantity),
		strconv.Itoa(f.MinQuantity),
		formatFloat(f.StdQuantity),
		strconv.Itoa(f.TotalItemsPurchased),
		strconv.Itoa(f.UniqueProducts),
		strconv.Itoa(f.UniqueInvoices),
		formatFloat(f.TotalRevenue),
		formatFloat(f.AvgOrderValue),
		formatFloat(f.MaxOrderValue),
		formatFloat(f.MinOrderValue),
		formatFloat(f.StdOrderValue),
		formatFloat(f.RevenuePerItem),
		strconv.Itoa(f.ActiveDays),
		strconv.Itoa(f.ActiveMonths),
		strconv.Itoa(f.CustomerTenureDays),
		strconv.Itoa(f.DaysSinceFirstPurchase),
		strconv.Itoa(f.PurchaseSpanDays),
		formatFloat(f.AvgDaysBetweenOrders),
		formatFloat(f.OrderConsistency),
		formatFloat(f.SpendConsistency),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
