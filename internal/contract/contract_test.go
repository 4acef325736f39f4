package contract

import (
	"errors"
	"math"
	"testing"

	"github.com/opensource-retail/heron/internal/domain"
)

// fullRecord builds a record carrying every scoring column.
func fullRecord() Record {
	rec := make(Record, len(domain.ScoringColumns))
	for i, col := range domain.ScoringColumns {
		rec[col] = float64(i + 1)
	}
	return rec
}

func TestValidateSingleRecord(t *testing.T) {
	vecs, err := Validate(fullRecord())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 1 {
		t.Fatalf("got %d vectors, want 1", len(vecs))
	}
	if len(vecs[0]) != len(domain.ScoringColumns) {
		t.Fatalf("vector has %d columns, want %d", len(vecs[0]), len(domain.ScoringColumns))
	}
	// Values come back in contract column order.
	for i, v := range vecs[0] {
		if v != float64(i+1) {
			t.Errorf("column %d = %v, want %v", i, v, float64(i+1))
		}
	}
}

func TestValidateRecordSlice(t *testing.T) {
	vecs, err := Validate([]Record{fullRecord(), fullRecord()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
}

func TestValidateFeatureRows(t *testing.T) {
	rows := []domain.CustomerFeatures{
		{CustomerID: "c1", Recency: 30, Frequency: 5, Monetary: 120.5},
		{CustomerID: "c2", Recency: 200, Frequency: 1, Monetary: 8.0},
	}
	vecs, err := Validate(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	if vecs[0][0] != 30 || vecs[1][0] != 200 {
		t.Errorf("Recency column = %v/%v, want 30/200", vecs[0][0], vecs[1][0])
	}
}

func TestValidateMissingColumns(t *testing.T) {
	rec := fullRecord()
	delete(rec, "Recency")
	delete(rec, "spend_consistency")

	_, err := Validate(rec)
	var schemaErr *domain.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(schemaErr.Missing) != 2 {
		t.Errorf("SchemaError names %d columns, want 2: %v", len(schemaErr.Missing), schemaErr.Missing)
	}
}

func TestValidateExtraColumnsIgnored(t *testing.T) {
	rec := fullRecord()
	rec["Customer ID"] = "12345"
	rec["Churn"] = 1

	if _, err := Validate(rec); err != nil {
		t.Fatalf("extra columns should be ignored, got %v", err)
	}
}

func TestValidateEmpty(t *testing.T) {
	if _, err := Validate([]Record{}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestValidateUnsupportedType(t *testing.T) {
	if _, err := Validate(42); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  float64
		bad   bool
	}{
		{name: "Float", value: 3.5, want: 3.5},
		{name: "Int", value: 7, want: 7},
		{name: "Int64", value: int64(9), want: 9},
		{name: "NumericString", value: "12.25", want: 12.25},
		{name: "NonNumericString", value: "twelve", bad: true},
		{name: "NaN", value: math.NaN(), bad: true},
		{name: "Inf", value: math.Inf(1), bad: true},
		{name: "Nil", value: nil, bad: true},
		{name: "Bool", value: true, bad: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := fullRecord()
			rec["Recency"] = tc.value

			vecs, err := Validate(rec)
			if tc.bad {
				var coercionErr *domain.CoercionError
				if !errors.As(err, &coercionErr) {
					t.Fatalf("expected CoercionError, got %v", err)
				}
				if coercionErr.Column != "Recency" {
					t.Errorf("CoercionError column = %q, want Recency", coercionErr.Column)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if vecs[0][0] != tc.want {
				t.Errorf("Recency = %v, want %v", vecs[0][0], tc.want)
			}
		})
	}
}
