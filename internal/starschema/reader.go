package starschema

import (
	"context"
	"fmt"
	"strings"
	"time"

	"retailetl/internal/objectstore"
	"retailetl/internal/records"
)

// PartitionPrefix returns the Hive-style lake prefix for one source and date:
// raw/<source>/year=YYYY/month=MM/day=DD/.
func PartitionPrefix(source string, date time.Time) string {
	return fmt.Sprintf("raw/%s/year=%04d/month=%02d/day=%02d/",
		source, date.Year(), int(date.Month()), date.Day())
}

// Reader lists and decodes raw partition files for a run.
type Reader struct {
	store  objectstore.Store
	bucket string
}

func NewReader(store objectstore.Store, bucket string) *Reader {
	return &Reader{store: store, bucket: bucket}
}

// ListPartitions returns the JSON partition files for one source and date.
// Non-JSON keys under the prefix (markers, manifests) are ignored. An empty
// partition is a normal outcome, not an error.
func (r *Reader) ListPartitions(ctx context.Context, source string, date time.Time) ([]string, error) {
	keys, err := r.store.List(ctx, r.bucket, PartitionPrefix(source, date))
	if err != nil {
		return nil, err
	}

	var files []string
	for _, k := range keys {
		if strings.HasSuffix(k, ".json") {
			files = append(files, k)
		}
	}
	return files, nil
}

// Read downloads and parses one partition file.
func (r *Reader) Read(ctx context.Context, key string) ([]records.Record, error) {
	body, err := r.store.Get(ctx, r.bucket, key)
	if err != nil {
		return nil, err
	}
	recs, err := records.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return recs, nil
}
