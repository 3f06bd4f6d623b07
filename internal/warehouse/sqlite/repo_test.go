package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"retailetl/internal/warehouse"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "warehouse.db")
	repo, err := New(context.Background(), warehouse.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(repo.Close)

	r := repo.(*Repo)
	if err := r.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return r
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	r := newTestRepo(t)
	if err := r.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}
}

func TestDimensionInsertOnce(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	id1, err := r.UpsertDimension(ctx, warehouse.CustomerDim, "CUST-1", nil)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	id2, err := r.UpsertDimension(ctx, warehouse.CustomerDim, "CUST-1", nil)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("ids differ: %d vs %d", id1, id2)
	}

	var count int
	if err := r.DB().QueryRow(`SELECT COUNT(*) FROM dim_customer`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d rows, want 1", count)
	}
}

func TestProductAttributesOverwrite(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	id1, err := r.UpsertDimension(ctx, warehouse.ProductDim, "SKU-1", []any{"Old Name", "toys"})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	id2, err := r.UpsertDimension(ctx, warehouse.ProductDim, "SKU-1", []any{"New Name", "games"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("surrogate key changed on overwrite: %d vs %d", id1, id2)
	}

	var name, category string
	err = r.DB().QueryRow(`SELECT product_name, category FROM dim_product WHERE product_sku = 'SKU-1'`).Scan(&name, &category)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if name != "New Name" || category != "games" {
		t.Fatalf("got %q/%q, want latest attributes", name, category)
	}
}

func TestFactInsertDeduplicates(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	dateID, err := r.UpsertDimension(ctx, warehouse.DateDim, "2024-01-06",
		[]any{2024, 1, 1, 1, 6, 6, "Saturday", true})
	if err != nil {
		t.Fatalf("date: %v", err)
	}
	productID, err := r.UpsertDimension(ctx, warehouse.ProductDim, "SKU-1", []any{"Thing", nil})
	if err != nil {
		t.Fatalf("product: %v", err)
	}
	if err := r.SeedRetailers(ctx, []string{"retailer_1"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	retailerID, ok, err := r.LookupDimensionKey(ctx, warehouse.RetailerDim, "retailer_1")
	if err != nil || !ok {
		t.Fatalf("retailer lookup: ok=%v err=%v", ok, err)
	}

	row := []any{dateID, productID, nil, nil, retailerID, "TXN-1", int64(2), "9.99", "19.98"}

	inserted, err := r.InsertFact(ctx, warehouse.SalesFact, row)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !inserted {
		t.Fatal("first insert reported skipped")
	}

	inserted, err = r.InsertFact(ctx, warehouse.SalesFact, row)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Fatal("duplicate natural key was inserted")
	}

	var count int
	if err := r.DB().QueryRow(`SELECT COUNT(*) FROM fact_sales`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d fact rows, want 1", count)
	}
}

func TestSeedRetailersIdempotent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	codes := []string{"retailer_1", "retailer_2"}
	if err := r.SeedRetailers(ctx, codes); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if err := r.SeedRetailers(ctx, codes); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	var count int
	if err := r.DB().QueryRow(`SELECT COUNT(*) FROM dim_retailer`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("got %d retailers, want 2", count)
	}
}

func TestLookupMissingKey(t *testing.T) {
	r := newTestRepo(t)

	_, ok, err := r.LookupDimensionKey(context.Background(), warehouse.RetailerDim, "nope")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if ok {
		t.Fatal("missing key reported found")
	}
}
