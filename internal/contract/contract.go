// Package contract enforces the feature schema at the serving boundary.
// Any input headed for the trained model must carry every scoring column
// and coerce cleanly to numeric; training-time and serving-time vectors
// are structurally identical by construction.
package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/opensource-retail/heron/internal/domain"
)

// Record is one scoring input: feature column name to value.
type Record = map[string]any

// Columns returns the required scoring columns in contract order.
func Columns() []string {
	cols := make([]string, len(domain.ScoringColumns))
	copy(cols, domain.ScoringColumns)
	return cols
}

// Normalize accepts the input shapes the scoring interface supports - a
// single record, a slice of records, or a pre-built feature row - and
// returns a uniform record slice.
func Normalize(input any) ([]Record, error) {
	switch v := input.(type) {
	case Record:
		return []Record{v}, nil
	case []Record:
		return v, nil
	case []any:
		records := make([]Record, 0, len(v))
		for i, item := range v {
			rec, ok := item.(Record)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T, want a record", domain.ErrInvalidInput, i, item)
			}
			records = append(records, rec)
		}
		return records, nil
	case domain.CustomerFeatures:
		return []Record{v.Record()}, nil
	case *domain.CustomerFeatures:
		return []Record{v.Record()}, nil
	case []domain.CustomerFeatures:
		records := make([]Record, 0, len(v))
		for i := range v {
			records = append(records, v[i].Record())
		}
		return records, nil
	default:
		return nil, fmt.Errorf("%w: unsupported scoring input type %T", domain.ErrInvalidInput, input)
	}
}

// Vectors validates records against the contract and returns one numeric
// vector per record, in Columns order. Missing columns yield a SchemaError
// enumerating every absent name; values that cannot be coerced to a finite
// number yield a CoercionError. Extra columns are ignored.
func Vectors(records []Record) ([][]float64, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records to score", domain.ErrInvalidInput)
	}

	vectors := make([][]float64, 0, len(records))
	for i, rec := range records {
		vec, err := vector(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// Validate is Normalize followed by Vectors.
func Validate(input any) ([][]float64, error) {
	records, err := Normalize(input)
	if err != nil {
		return nil, err
	}
	return Vectors(records)
}

func vector(rec Record) ([]float64, error) {
	var missing []string
	for _, col := range domain.ScoringColumns {
		if _, ok := rec[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &domain.SchemaError{Missing: missing}
	}

	vec := make([]float64, len(domain.ScoringColumns))
	for i, col := range domain.ScoringColumns {
		f, err := coerce(col, rec[col])
		if err != nil {
			return nil, err
		}
		vec[i] = f
	}
	return vec, nil
}

// coerce converts a record value to a finite float64. JSON decoding hands
// us float64 or json.Number; CSV-derived inputs hand us strings.
func coerce(col string, v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, &domain.CoercionError{Column: col, Value: v}
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, &domain.CoercionError{Column: col, Value: v}
		}
		f = parsed
	default:
		return 0, &domain.CoercionError{Column: col, Value: v}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &domain.CoercionError{Column: col, Value: v}
	}
	return f, nil
}
