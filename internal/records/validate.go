package records

import (
	"fmt"
	"strings"
)

// RequiredFields is the core every retailer payload must carry. Records
// missing any of them cannot be resolved into the star schema and are
// rejected record-by-record, never aborting the partition.
var RequiredFields = []string{
	FieldTransactionDate,
	FieldTransactionID,
	FieldProductID,
	FieldProductName,
	FieldQuantity,
	FieldUnitPrice,
	FieldTotalAmount,
	FieldRetailerID,
}

// Validate checks that every required field is present and non-blank.
// Presence is judged on the raw map, so an explicit null or empty string
// fails the same way a missing key does.
func Validate(r Record) error {
	var missing []string
	for _, f := range RequiredFields {
		if r.String(f) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
