package features

import (
	"github.com/opensource-retail/heron/internal/domain"
)

// monetaryRow holds the monetary-shape statistics for one customer.
type monetaryRow struct {
	TotalRevenue   float64
	AvgOrderValue  float64
	MaxOrderValue  float64
	MinOrderValue  float64
	StdOrderValue  float64
	RevenuePerItem float64
}

// monetaryGroup computes price-shape statistics per customer. Revenue per
// item divides total revenue by total quantity; cleaning guarantees
// positive quantities, so the denominator is never zero for a customer
// that exists at all.
func monetaryGroup(txs []domain.Transaction) map[string]monetaryRow {
	type acc struct {
		prices     []float64
		totalItems int
	}

	groups := make(map[string]*acc)
	for _, tx := range txs {
		g, ok := groups[tx.CustomerID]
		if !ok {
			g = &acc{}
			groups[tx.CustomerID] = g
		}
		g.prices = append(g.prices, tx.Price)
		g.totalItems += tx.Quantity
	}

	rows := make(map[string]monetaryRow, len(groups))
	for id, g := range groups {
		total := sum(g.prices)
		row := monetaryRow{
			TotalRevenue:  total,
			AvgOrderValue: mean(g.prices),
			MaxOrderValue: maxOf(g.prices),
			MinOrderValue: minOf(g.prices),
			StdOrderValue: sampleStd(g.prices),
		}
		if g.totalItems != 0 {
			row.RevenuePerItem = total / float64(g.totalItems)
		}
		rows[id] = row
	}
	return rows
}
