package records

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Parse decodes a partition file: a JSON array of record objects. Any other
// top-level shape is a malformed partition and fails as a whole.
//
// Numbers decode as json.Number so quantities and amounts keep their exact
// textual form until a typed accessor interprets them.
func Parse(body []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var recs []Record
	if err := dec.Decode(&recs); err != nil {
		return nil, fmt.Errorf("records: payload is not a JSON array of objects: %w", err)
	}
	// A JSON null decodes into a nil slice without error; it is not an
	// empty partition.
	if recs == nil {
		return nil, fmt.Errorf("records: payload is not a JSON array of objects: got null")
	}
	if dec.More() {
		return nil, fmt.Errorf("records: trailing data after JSON array")
	}
	return recs, nil
}
