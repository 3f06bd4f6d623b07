// Package objectstore abstracts the data-lake buckets the pipeline reads raw
// partitions from and writes processed copies to.
package objectstore

import (
	"context"
	"fmt"
)

// Store is the minimal object API the pipeline needs. Implementations must be
// safe for concurrent use.
type Store interface {
	// List returns the keys under prefix in the given bucket, in lexical
	// order. A missing prefix yields an empty slice, not an error.
	List(ctx context.Context, bucket, prefix string) ([]string, error)

	// Get returns the full contents of the object at key.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Put writes body to key, overwriting any existing object.
	Put(ctx context.Context, bucket, key string, body []byte) error
}

// Config selects and parametrizes a Store implementation.
type Config struct {
	// Kind is "s3" or "memory".
	Kind string

	// Region is the AWS region for the s3 backend.
	Region string

	// Endpoint optionally overrides the S3 endpoint, for MinIO/LocalStack
	// style deployments.
	Endpoint string
}

// New builds the Store named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Kind {
	case "s3":
		return NewS3(ctx, cfg)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("objectstore: unknown kind: %q", cfg.Kind)
	}
}
