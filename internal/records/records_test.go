package records

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseArray(t *testing.T) {
	recs, err := Parse([]byte(`[
		{"transaction_id": "TXN-1", "quantity": 2, "unit_price": 9.99},
		{"transaction_id": "TXN-2"}
	]`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if _, ok := recs[0]["quantity"].(json.Number); !ok {
		t.Fatalf("quantity decoded as %T, want json.Number", recs[0]["quantity"])
	}
}

func TestParseRejectsNonArray(t *testing.T) {
	for _, body := range []string{
		`{"transaction_id": "TXN-1"}`,
		`"just a string"`,
		`42`,
		`not json at all`,
		`null`,
		`[{"a":1}] trailing`,
	} {
		if _, err := Parse([]byte(body)); err == nil {
			t.Fatalf("Parse(%q) accepted a non-array payload", body)
		}
	}
}

func TestParseEmptyArray(t *testing.T) {
	recs, err := Parse([]byte(`[]`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("got %d records, want 0", len(recs))
	}
}

func TestValidateRequiredFields(t *testing.T) {
	full := Record{
		"transaction_date": "2024-01-06",
		"transaction_id":   "TXN-1",
		"product_id":       "SKU-1",
		"product_name":     "Widget",
		"quantity":         json.Number("2"),
		"unit_price":       json.Number("9.99"),
		"total_amount":     json.Number("19.98"),
		"retailer_id":      "retailer_1",
	}
	if err := Validate(full); err != nil {
		t.Fatalf("complete record rejected: %v", err)
	}

	for _, field := range RequiredFields {
		rec := Record{}
		for k, v := range full {
			rec[k] = v
		}
		delete(rec, field)

		err := Validate(rec)
		if err == nil {
			t.Fatalf("record without %s accepted", field)
		}
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error %q does not name the missing field %s", err, field)
		}
	}
}

func TestValidateTreatsNullAndBlankAsMissing(t *testing.T) {
	rec := Record{"transaction_id": nil, "product_id": "  "}
	err := Validate(rec)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, field := range []string{"transaction_id", "product_id"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error %q does not name %s", err, field)
		}
	}
}

func TestTypedAccessors(t *testing.T) {
	rec := Record{
		"quantity":   json.Number("3"),
		"unit_price": json.Number("10.50"),
		"count_str":  "7",
		"bad":        json.Number("2.5"),
	}

	q, err := rec.Int("quantity")
	if err != nil || q != 3 {
		t.Fatalf("Int(quantity) = %d, %v", q, err)
	}
	if _, err := rec.Int("bad"); err == nil {
		t.Fatal("fractional quantity accepted as integer")
	}
	if c, err := rec.Int("count_str"); err != nil || c != 7 {
		t.Fatalf("Int(count_str) = %d, %v", c, err)
	}

	p, err := rec.Decimal("unit_price")
	if err != nil {
		t.Fatalf("Decimal: %v", err)
	}
	if p.String() != "10.5" {
		t.Fatalf("Decimal = %s, want 10.5", p)
	}
	if _, err := rec.Int("missing"); err == nil {
		t.Fatal("missing field accepted")
	}
}

func TestDateAccessor(t *testing.T) {
	rec := Record{
		"plain":    "2024-01-06",
		"ts":       "2024-01-06T15:04:05Z",
		"naive":    "2024-01-06T15:04:05",
		"naive_us": "2024-01-06T15:04:05.123456",
		"bad":      "06/01/2024",
	}

	want := time.Date(2024, time.January, 6, 0, 0, 0, 0, time.UTC)

	for _, field := range []string{"plain", "ts", "naive", "naive_us"} {
		got, err := rec.Date(field)
		if err != nil || !got.Equal(want) {
			t.Fatalf("Date(%s) = %v, %v", field, got, err)
		}
	}

	if _, err := rec.Date("bad"); err == nil {
		t.Fatal("ambiguous date format accepted")
	}
}
