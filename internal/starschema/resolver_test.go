package starschema

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"retailetl/internal/warehouse"
)

// fakeRepo is an in-memory warehouse.Repository that records calls. Shared by
// the resolver and loader tests.
type fakeRepo struct {
	nextID int64
	ids    map[string]int64 // "table\x00key" -> surrogate id

	upsertCalls map[string]int // table -> call count
	lookupCalls map[string]int

	facts     [][]any
	factSeen  map[string]bool
	failFacts bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		ids:         make(map[string]int64),
		upsertCalls: make(map[string]int),
		lookupCalls: make(map[string]int),
		factSeen:    make(map[string]bool),
	}
}

func (f *fakeRepo) Close() {}

func (f *fakeRepo) EnsureSchema(context.Context) error { return nil }

func (f *fakeRepo) SeedRetailers(_ context.Context, codes []string) error {
	for _, c := range codes {
		f.key(warehouse.RetailerDim.Table, c)
	}
	return nil
}

func (f *fakeRepo) key(table string, key any) int64 {
	k := table + "\x00" + fmt.Sprint(key)
	if id, ok := f.ids[k]; ok {
		return id
	}
	f.nextID++
	f.ids[k] = f.nextID
	return f.nextID
}

func (f *fakeRepo) UpsertDimension(_ context.Context, d warehouse.DimensionSpec, key any, _ []any) (int64, error) {
	f.upsertCalls[d.Table]++
	return f.key(d.Table, key), nil
}

func (f *fakeRepo) LookupDimensionKey(_ context.Context, d warehouse.DimensionSpec, key any) (int64, bool, error) {
	f.lookupCalls[d.Table]++
	id, ok := f.ids[d.Table+"\x00"+fmt.Sprint(key)]
	return id, ok, nil
}

func (f *fakeRepo) InsertFact(_ context.Context, fs warehouse.FactSpec, row []any) (bool, error) {
	if f.failFacts {
		return false, errors.New("fact insert refused")
	}

	var dedupe string
	for _, col := range fs.DedupeColumns {
		for i, c := range fs.Columns {
			if c == col {
				dedupe += fmt.Sprint(row[i]) + "\x00"
			}
		}
	}
	if f.factSeen[dedupe] {
		return false, nil
	}
	f.factSeen[dedupe] = true
	f.facts = append(f.facts, row)
	return true, nil
}

func TestResolveCustomerAndStoreNullSafe(t *testing.T) {
	repo := newFakeRepo()
	r := NewResolver(repo)
	ctx := context.Background()

	custID, err := r.ResolveCustomer(ctx, "")
	if err != nil {
		t.Fatalf("ResolveCustomer: %v", err)
	}
	if custID != nil {
		t.Fatalf("empty customer resolved to %d, want nil", *custID)
	}

	storeID, err := r.ResolveStore(ctx, "")
	if err != nil {
		t.Fatalf("ResolveStore: %v", err)
	}
	if storeID != nil {
		t.Fatalf("empty store resolved to %d, want nil", *storeID)
	}

	if n := repo.upsertCalls["dim_customer"] + repo.upsertCalls["dim_store"]; n != 0 {
		t.Fatalf("blank ids caused %d dimension writes", n)
	}

	custID, err = r.ResolveCustomer(ctx, "CUST-9")
	if err != nil {
		t.Fatalf("ResolveCustomer: %v", err)
	}
	if custID == nil || *custID == 0 {
		t.Fatal("present customer id did not resolve")
	}
}

func TestResolveDateCachedPerRun(t *testing.T) {
	repo := newFakeRepo()
	r := NewResolver(repo)
	ctx := context.Background()
	day := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	id1, err := r.ResolveDate(ctx, day)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	id2, err := r.ResolveDate(ctx, day)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("ids differ: %d vs %d", id1, id2)
	}
	if repo.upsertCalls["dim_date"] != 1 {
		t.Fatalf("date upserted %d times, want 1", repo.upsertCalls["dim_date"])
	}
}

func TestResolveProductNotCached(t *testing.T) {
	repo := newFakeRepo()
	r := NewResolver(repo)
	ctx := context.Background()

	// The latest name must always reach the warehouse, so every sighting
	// is a write.
	if _, err := r.ResolveProduct(ctx, "SKU-1", "Name A", ""); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if _, err := r.ResolveProduct(ctx, "SKU-1", "Name B", ""); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if repo.upsertCalls["dim_product"] != 2 {
		t.Fatalf("product upserted %d times, want 2", repo.upsertCalls["dim_product"])
	}
}

func TestResolveRetailerUnknown(t *testing.T) {
	repo := newFakeRepo()
	r := NewResolver(repo)

	_, err := r.ResolveRetailer(context.Background(), "retailer_99")
	if !errors.Is(err, warehouse.ErrUnknownRetailer) {
		t.Fatalf("got %v, want ErrUnknownRetailer", err)
	}
	if repo.upsertCalls["dim_retailer"] != 0 {
		t.Fatal("unknown retailer caused a dimension write")
	}
}

func TestResolveRetailerCached(t *testing.T) {
	repo := newFakeRepo()
	if err := repo.SeedRetailers(context.Background(), []string{"retailer_1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := NewResolver(repo)
	ctx := context.Background()

	if _, err := r.ResolveRetailer(ctx, "retailer_1"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if _, err := r.ResolveRetailer(ctx, "retailer_1"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if repo.lookupCalls["dim_retailer"] != 1 {
		t.Fatalf("retailer looked up %d times, want 1", repo.lookupCalls["dim_retailer"])
	}
}
