package starschema

import (
	"context"
	"fmt"
	"time"

	"retailetl/internal/warehouse"
)

// Resolver maps business keys to dimension surrogate keys, creating dimension
// rows on first sight. Each resolution is its own short statement against the
// warehouse, so a run killed mid-partition leaves only committed dimension
// rows behind and can simply be rerun.
//
// A Resolver is scoped to one run and is not safe for concurrent use.
type Resolver struct {
	repo warehouse.Repository

	// Per-run caches. Dates are immutable once written and retailers are
	// read-only, so both are safe to memoize. Products are NOT cached:
	// every sighting must reach the warehouse so the latest name and
	// category win.
	dateIDs     map[string]int64
	retailerIDs map[string]int64
}

func NewResolver(repo warehouse.Repository) *Resolver {
	return &Resolver{
		repo:        repo,
		dateIDs:     make(map[string]int64),
		retailerIDs: make(map[string]int64),
	}
}

// ResolveDate returns the dim_date key for the calendar date, deriving and
// inserting its attributes on first sight.
func (r *Resolver) ResolveDate(ctx context.Context, t time.Time) (int64, error) {
	key := t.Format("2006-01-02")
	if id, ok := r.dateIDs[key]; ok {
		return id, nil
	}

	a := DeriveDateAttrs(t)
	id, err := r.repo.UpsertDimension(ctx, warehouse.DateDim, key, []any{
		a.Year, a.Quarter, a.Month, a.Week, a.Day, a.DayOfWeek, a.DayName, a.IsWeekend,
	})
	if err != nil {
		return 0, fmt.Errorf("resolve date %s: %w", key, err)
	}
	r.dateIDs[key] = id
	return id, nil
}

// ResolveProduct returns the dim_product key for the SKU. Name and category
// overwrite whatever the dimension currently holds, so the most recently
// processed record wins.
func (r *Resolver) ResolveProduct(ctx context.Context, sku, name, category string) (int64, error) {
	var cat any
	if category != "" {
		cat = category
	}

	id, err := r.repo.UpsertDimension(ctx, warehouse.ProductDim, sku, []any{name, cat})
	if err != nil {
		return 0, fmt.Errorf("resolve product %s: %w", sku, err)
	}
	return id, nil
}

// ResolveCustomer returns the dim_customer key, or nil when the record
// carries no customer id. The dimension row is insert-once.
func (r *Resolver) ResolveCustomer(ctx context.Context, externalID string) (*int64, error) {
	if externalID == "" {
		return nil, nil
	}
	id, err := r.repo.UpsertDimension(ctx, warehouse.CustomerDim, externalID, nil)
	if err != nil {
		return nil, fmt.Errorf("resolve customer %s: %w", externalID, err)
	}
	return &id, nil
}

// ResolveStore returns the dim_store key, or nil when the record carries no
// store id. The dimension row is insert-once.
func (r *Resolver) ResolveStore(ctx context.Context, externalID string) (*int64, error) {
	if externalID == "" {
		return nil, nil
	}
	id, err := r.repo.UpsertDimension(ctx, warehouse.StoreDim, externalID, nil)
	if err != nil {
		return nil, fmt.Errorf("resolve store %s: %w", externalID, err)
	}
	return &id, nil
}

// ResolveRetailer returns the dim_retailer key for a retailer code. The
// retailer dimension is reference data seeded out of band; an unknown code is
// a data error reported as warehouse.ErrUnknownRetailer, never an insert.
func (r *Resolver) ResolveRetailer(ctx context.Context, code string) (int64, error) {
	if id, ok := r.retailerIDs[code]; ok {
		return id, nil
	}

	id, ok, err := r.repo.LookupDimensionKey(ctx, warehouse.RetailerDim, code)
	if err != nil {
		return 0, fmt.Errorf("resolve retailer %s: %w", code, err)
	}
	if !ok {
		return 0, fmt.Errorf("retailer %q: %w", code, warehouse.ErrUnknownRetailer)
	}
	r.retailerIDs[code] = id
	return id, nil
}
