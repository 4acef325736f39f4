// Package domain defines the core types and interfaces for Heron.
package domain

import (
	"time"
)

// CancellationPrefix marks a cancelled invoice. Invoice identifiers that
// start with this prefix are removed during cleaning.
const CancellationPrefix = "C"

// Transaction is one line item of the raw transaction ledger: a single
// product entry on a single invoice.
type Transaction struct {
	// Invoice is the invoice identifier. A leading "C" denotes a cancellation.
	Invoice string `json:"invoice"`

	// StockCode identifies the product.
	StockCode string `json:"stockCode"`

	// Quantity is the number of units on this line. Signed: cancellations
	// and corrections carry negative quantities in the raw ledger.
	Quantity int `json:"quantity"`

	// Price is the unit price for this line item.
	Price float64 `json:"price"`

	// CustomerID identifies the customer. Empty when the ledger row had no
	// customer attached.
	CustomerID string `json:"customerId"`

	// InvoiceDate is the timestamp of the invoice.
	InvoiceDate time.Time `json:"invoiceDate"`

	// SourcePeriod labels which source period (e.g. "Year 2010-2011") the
	// row was ingested from.
	SourcePeriod string `json:"sourcePeriod"`
}

// CleaningReport records the row counts after each cleaning stage.
// The counts are cumulative: each stage filters the output of the previous
// one, so rows_before >= after_customer_filter >= ... >= after_quantity_filter.
type CleaningReport struct {
	RowsBefore              int     `json:"rows_before"`
	AfterCustomerFilter     int     `json:"after_customer_filter"`
	AfterCancellationFilter int     `json:"after_cancellation_filter"`
	AfterDuplicatesFilter   int     `json:"after_duplicates_filter"`
	AfterQuantityFilter     int     `json:"after_quantity_filter"`
	RetentionPercent        float64 `json:"retention_percent"`
}
