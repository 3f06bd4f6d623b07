// Package records models the raw retailer sales payloads: heterogeneous JSON
// objects that share a required core of fields plus optional extras that vary
// per retailer.
package records

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Record is one raw sales record as decoded from a partition file. It keeps
// the original JSON shape (numbers as json.Number) so validation can
// distinguish an absent field from a zero value, which a typed struct cannot.
type Record map[string]any

// Field names of the required core.
const (
	FieldTransactionDate = "transaction_date"
	FieldTransactionID   = "transaction_id"
	FieldProductID       = "product_id"
	FieldProductName     = "product_name"
	FieldQuantity        = "quantity"
	FieldUnitPrice       = "unit_price"
	FieldTotalAmount     = "total_amount"
	FieldRetailerID      = "retailer_id"
)

// Optional fields.
const (
	FieldCustomerID = "customer_id"
	FieldStoreID    = "store_id"
	FieldCategory   = "category"
)

// String returns the field as a trimmed string. Non-string values are
// stringified via their JSON form, so numeric ids survive either encoding.
func (r Record) String(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// OptionalString returns the field as a string, or "" when absent, null or
// blank. Used for customer_id and store_id, where blank means "not captured
// by this retailer".
func (r Record) OptionalString(field string) string {
	return r.String(field)
}

// Int returns the field as an integer.
func (r Record) Int(field string) (int64, error) {
	v, ok := r[field]
	if !ok || v == nil {
		return 0, fmt.Errorf("field %q is missing", field)
	}
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("field %q: %q is not an integer", field, n.String())
		}
		return i, nil
	case string:
		i, err := json.Number(strings.TrimSpace(n)).Int64()
		if err != nil {
			return 0, fmt.Errorf("field %q: %q is not an integer", field, n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("field %q: unexpected type %T", field, v)
	}
}

// Decimal returns the field as an exact decimal. Money fields go through this
// accessor so float rounding never reaches the warehouse.
func (r Record) Decimal(field string) (decimal.Decimal, error) {
	v, ok := r[field]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("field %q is missing", field)
	}
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %q is not a number", field, n.String())
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: %q is not a number", field, n)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("field %q: unexpected type %T", field, v)
	}
}

// dateLayouts are the transaction_date shapes seen across retailers: bare
// dates, offset-less ISO 8601 timestamps as emitted by the ingestion jobs,
// and full RFC 3339. time.Parse accepts fractional seconds after the seconds
// field regardless of layout, so microsecond timestamps need no extra entry.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Date parses the field as a calendar date. Timestamps are truncated to
// their date part.
func (r Record) Date(field string) (time.Time, error) {
	s := r.String(field)
	if s == "" {
		return time.Time{}, fmt.Errorf("field %q is missing", field)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("field %q: %q is not a date", field, s)
}
