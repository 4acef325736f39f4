package domain

import (
	"time"
)

// SegmentRule tags customers whose feature row satisfies a CEL expression
// over the scoring columns, e.g.
//
//	Recency > 60 && Monetary > 1000.0
//
// Rules are stored in the repository and evaluated after every pipeline run.
type SegmentRule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Expression  string    `json:"expression"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
