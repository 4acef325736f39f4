package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SchemaError reports required columns absent from raw or scoring input.
// It always enumerates every missing column name.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// CoercionError reports a value that could not be converted to a numeric
// feature at the serving boundary.
type CoercionError struct {
	Column string
	Value  any
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("column %q: cannot coerce %v (%T) to numeric", e.Column, e.Value, e.Value)
}

// IntegrityError reports an inconsistency between the aggregation groups:
// a customer present in one group but missing from another, or a duplicate
// customer identifier in the merged output. These indicate a pipeline bug,
// never bad input, and are fatal to the run.
type IntegrityError struct {
	CustomerID string
	Detail     string
}

func (e *IntegrityError) Error() string {
	if e.CustomerID == "" {
		return "feature table integrity violation: " + e.Detail
	}
	return fmt.Sprintf("feature table integrity violation for customer %s: %s", e.CustomerID, e.Detail)
}

// ResourceError reports an input or output file that could not be accessed.
type ResourceError struct {
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s: %v", e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }
