// Package starschema resolves raw retailer sales records into the warehouse
// star schema: dimension keys are looked up or created per record, then the
// fact row is inserted idempotently.
package starschema

import "time"

// DateAttrs are the derived calendar attributes stored on dim_date.
type DateAttrs struct {
	Year      int
	Quarter   int
	Month     int
	Week      int // ISO 8601 week number
	Day       int
	DayOfWeek int // Monday=1 .. Sunday=7
	DayName   string
	IsWeekend bool
}

// DeriveDateAttrs computes the dim_date attributes for a calendar date.
func DeriveDateAttrs(t time.Time) DateAttrs {
	// time.Weekday counts Sunday=0; shift to ISO Monday=1..Sunday=7.
	dow := (int(t.Weekday())+6)%7 + 1
	_, week := t.ISOWeek()

	return DateAttrs{
		Year:      t.Year(),
		Quarter:   (int(t.Month())-1)/3 + 1,
		Month:     int(t.Month()),
		Week:      week,
		Day:       t.Day(),
		DayOfWeek: dow,
		DayName:   t.Weekday().String(),
		IsWeekend: dow >= 6,
	}
}
