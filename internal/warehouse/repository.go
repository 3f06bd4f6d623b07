package warehouse

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to create a Repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// ErrUnknownRetailer is returned by LookupDimensionKey callers resolving a
// retailer code that has no pre-existing dim_retailer row. The retailer
// dimension is seeded out of band; the transformation never creates it.
var ErrUnknownRetailer = errors.New("warehouse: unknown retailer code")

// Repository is a backend-agnostic interface over the star schema.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the transformation needs. Each backend implements these
// semantics in its own idiomatic way (Postgres ON CONFLICT, SQLite
// OR IGNORE, SQL Server conditional INSERT).
//
// Transaction model: every method is its own transaction boundary. There is
// deliberately no batch-spanning transaction: if a run dies mid-batch,
// already-resolved dimensions stay committed and the run is safely
// re-executable, because every write here is idempotent. Wrapping a whole
// batch in one transaction would silently change those failure semantics.
type Repository interface {
	// Close releases backend resources. Call once at process shutdown.
	Close()

	// EnsureSchema creates the star-schema tables and constraints as needed
	// (create-if-not-exists semantics; safe to call repeatedly).
	EnsureSchema(ctx context.Context) error

	// SeedRetailers makes sure a dim_retailer row exists per code. It is an
	// init-time operation; the transformation path never creates retailers.
	SeedRetailers(ctx context.Context, codes []string) error

	// UpsertDimension resolves a natural key to its surrogate key, creating
	// the dimension row on first sight.
	//
	// Behavior:
	//   - If d.UpdateOnConflict is false, an existing row is returned
	//     unchanged (insert-once).
	//   - If d.UpdateOnConflict is true, d.AttrColumns are overwritten
	//     unconditionally on every sighting (type-1 semantics).
	//   - attrs must align with d.AttrColumns.
	//
	// Concurrency: a race between two processes creating the same key is
	// resolved by the dimension's unique constraint; when the insert is
	// suppressed by a concurrent winner, the surrogate key is re-read rather
	// than surfacing the conflict.
	UpsertDimension(ctx context.Context, d DimensionSpec, key any, attrs []any) (int64, error)

	// LookupDimensionKey resolves a natural key without creating anything.
	// The boolean reports whether the key exists.
	LookupDimensionKey(ctx context.Context, d DimensionSpec, key any) (int64, bool, error)

	// InsertFact inserts one fact row with the natural-key conflict policy
	// "do nothing". The boolean is true when a row was actually inserted and
	// false when the row already existed (the sole dedup mechanism).
	InsertFact(ctx context.Context, f FactSpec, row []any) (bool, error)
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package. Registering the
// same kind twice panics; this is intentional to fail fast and avoid
// ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("warehouse: Register called with empty kind")
	}
	if f == nil {
		panic("warehouse: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("warehouse: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns (a factory that
//     cannot reach its backing store fails here, before any date processing
//     starts, which is the one fatal error class of a run).
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("warehouse: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("warehouse: unsupported kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
