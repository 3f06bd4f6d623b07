package postgres

import (
	"strings"
	"testing"

	"retailetl/internal/warehouse"
)

func TestBuildUpsertSQLInsertOnce(t *testing.T) {
	got := buildUpsertSQL(warehouse.CustomerDim)
	want := `INSERT INTO dim_customer ("customer_external_id") VALUES ($1) ON CONFLICT ("customer_external_id") DO NOTHING RETURNING "customer_id"`
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildUpsertSQLTypeOne(t *testing.T) {
	got := buildUpsertSQL(warehouse.ProductDim)
	want := `INSERT INTO dim_product ("product_sku", "product_name", "category") VALUES ($1, $2, $3)` +
		` ON CONFLICT ("product_sku") DO UPDATE SET "product_name" = EXCLUDED."product_name", "category" = EXCLUDED."category"` +
		` RETURNING "product_id"`
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildFactInsertSQL(t *testing.T) {
	got := buildFactInsertSQL(warehouse.SalesFact)

	if !strings.HasPrefix(got, `INSERT INTO fact_sales ("date_id", "product_id", "customer_id", "store_id", "retailer_id", "transaction_id", "quantity", "unit_price", "total_amount") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`) {
		t.Fatalf("unexpected insert prefix:\n%s", got)
	}
	if !strings.HasSuffix(got, `ON CONFLICT ("transaction_id", "product_id", "retailer_id") DO NOTHING`) {
		t.Fatalf("missing dedupe conflict clause:\n%s", got)
	}
}

func TestBuildCreateSQL(t *testing.T) {
	var factSpec warehouse.TableSpec
	for _, spec := range warehouse.StarSchema() {
		if spec.Name == "fact_sales" {
			factSpec = spec
		}
	}
	if factSpec.Name == "" {
		t.Fatal("fact_sales missing from schema")
	}

	got, err := buildCreateSQL(factSpec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}

	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS fact_sales`,
		`"sales_id" bigserial PRIMARY KEY`,
		`"customer_id" int REFERENCES dim_customer`,
		`"quantity" int NOT NULL`,
		`UNIQUE ("transaction_id", "product_id", "retailer_id")`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("DDL missing %q:\n%s", want, got)
		}
	}

	// customer_id and store_id are optional in the source data.
	if strings.Contains(got, `"customer_id" int NOT NULL`) {
		t.Fatalf("customer_id must be nullable:\n%s", got)
	}
}

func TestBuildCreateSQLRejectsUnknownConstraint(t *testing.T) {
	_, err := buildCreateSQL(warehouse.TableSpec{
		Name:        "x",
		Columns:     []warehouse.ColumnSpec{{Name: "a", Type: "int"}},
		Constraints: []warehouse.ConstraintSpec{{Kind: "check", Columns: []string{"a"}}},
	})
	if err == nil {
		t.Fatal("expected error for unsupported constraint kind")
	}
}
