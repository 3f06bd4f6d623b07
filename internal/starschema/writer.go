package starschema

import (
	"context"
	"encoding/json"
	"strings"

	"retailetl/internal/objectstore"
	"retailetl/internal/records"
)

// Writer archives cleaned records under processed/, mirroring the raw
// partition layout. The processed copy holds the records that passed
// required-field validation, so downstream consumers never see malformed
// records but still see everything the run attempted to load.
type Writer struct {
	store  objectstore.Store
	bucket string
}

// NewWriter builds a Writer. An empty bucket disables archiving; Write then
// reports false without touching the store.
func NewWriter(store objectstore.Store, bucket string) *Writer {
	return &Writer{store: store, bucket: bucket}
}

// Write uploads the cleaned records of one partition file to the processed
// mirror of rawKey. It returns true when a copy was written, false when
// archiving is disabled or there is nothing to archive.
func (w *Writer) Write(ctx context.Context, rawKey string, cleaned []records.Record) (bool, error) {
	if w.bucket == "" || len(cleaned) == 0 {
		return false, nil
	}

	body, err := json.Marshal(cleaned)
	if err != nil {
		return false, err
	}

	key := processedKey(rawKey)
	if err := w.store.Put(ctx, w.bucket, key, body); err != nil {
		return false, err
	}
	return true, nil
}

// processedKey maps raw/... to processed/...; keys outside raw/ are mirrored
// under processed/ unchanged.
func processedKey(rawKey string) string {
	if rest, ok := strings.CutPrefix(rawKey, "raw/"); ok {
		return "processed/" + rest
	}
	return "processed/" + rawKey
}
