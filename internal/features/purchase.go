package features

import (
	"github.com/opensource-retail/heron/internal/domain"
)

// purchaseRow holds the purchase-shape statistics for one customer.
type purchaseRow struct {
	AvgQuantityPerOrder float64
	MaxQuantity         int
	MinQuantity         int
	StdQuantity         float64
	TotalItemsPurchased int
	UniqueProducts      int
	UniqueInvoices      int
}

// purchaseGroup computes quantity-shape statistics per customer.
// UniqueInvoices duplicates the RFM Frequency by construction; both are
// kept because the trained model artifacts expect both columns.
func purchaseGroup(txs []domain.Transaction) map[string]purchaseRow {
	type acc struct {
		quantities []float64
		total      int
		max, min   int
		products   map[string]struct{}
		invoices   map[string]struct{}
	}

	groups := make(map[string]*acc)
	for _, tx := range txs {
		g, ok := groups[tx.CustomerID]
		if !ok {
			g = &acc{
				max:      tx.Quantity,
				min:      tx.Quantity,
				products: make(map[string]struct{}),
				invoices: make(map[string]struct{}),
			}
			groups[tx.CustomerID] = g
		}
		g.quantities = append(g.quantities, float64(tx.Quantity))
		g.total += tx.Quantity
		if tx.Quantity > g.max {
			g.max = tx.Quantity
		}
		if tx.Quantity < g.min {
			g.min = tx.Quantity
		}
		g.products[tx.StockCode] = struct{}{}
		g.invoices[tx.Invoice] = struct{}{}
	}

	rows := make(map[string]purchaseRow, len(groups))
	for id, g := range groups {
		rows[id] = purchaseRow{
			AvgQuantityPerOrder: mean(g.quantities),
			MaxQuantity:         g.max,
			MinQuantity:         g.min,
			StdQuantity:         sampleStd(g.quantities),
			TotalItemsPurchased: g.total,
			UniqueProducts:      len(g.products),
			UniqueInvoices:      len(g.invoices),
		}
	}
	return rows
}
