// Table and load specs live here so backend packages can import them without
// circular deps.
package warehouse

// TableSpec describes one star-schema table for DDL generation.
//
// Column types are declared in Postgres dialect; backends translate where
// their engine differs (e.g. serial -> INTEGER PRIMARY KEY AUTOINCREMENT on
// SQLite, INT IDENTITY on SQL Server).
type TableSpec struct {
	Name        string
	PrimaryKey  *PrimaryKeySpec
	Columns     []ColumnSpec
	Constraints []ConstraintSpec
}

type PrimaryKeySpec struct {
	Name string
	Type string // "serial" / "bigserial"
}

type ColumnSpec struct {
	Name       string
	Type       string
	References string
	Nullable   bool
}

type ConstraintSpec struct {
	Kind    string // "unique"
	Columns []string
}

// DimensionSpec parametrizes the shared lookup-or-create path over one
// dimension table. The four creating dimensions differ only in their natural
// key column, attribute columns and conflict policy, so a single keyed-upsert
// implementation per backend covers all of them.
type DimensionSpec struct {
	// Table is the dimension table name.
	Table string

	// IDColumn is the surrogate key column.
	IDColumn string

	// KeyColumn is the natural/business key column (unique).
	KeyColumn string

	// AttrColumns are non-key columns populated at insert time.
	AttrColumns []string

	// UpdateOnConflict selects type-1 semantics: when true, AttrColumns are
	// overwritten on every sighting of an existing key; when false the row
	// is immutable after creation.
	UpdateOnConflict bool
}

// FactSpec parametrizes the idempotent fact insert.
type FactSpec struct {
	Table string

	// Columns is the insert column list; rows passed to InsertFact align
	// with it positionally.
	Columns []string

	// DedupeColumns form the natural-key conflict target. An insert whose
	// dedupe tuple already exists is silently suppressed.
	DedupeColumns []string
}

// Star-schema specs shared by all backends and by the resolver/loader.
var (
	DateDim = DimensionSpec{
		Table:       "dim_date",
		IDColumn:    "date_id",
		KeyColumn:   "date",
		AttrColumns: []string{"year", "quarter", "month", "week", "day", "day_of_week", "day_name", "is_weekend"},
	}

	ProductDim = DimensionSpec{
		Table:            "dim_product",
		IDColumn:         "product_id",
		KeyColumn:        "product_sku",
		AttrColumns:      []string{"product_name", "category"},
		UpdateOnConflict: true,
	}

	CustomerDim = DimensionSpec{
		Table:     "dim_customer",
		IDColumn:  "customer_id",
		KeyColumn: "customer_external_id",
	}

	StoreDim = DimensionSpec{
		Table:     "dim_store",
		IDColumn:  "store_id",
		KeyColumn: "store_external_id",
	}

	RetailerDim = DimensionSpec{
		Table:     "dim_retailer",
		IDColumn:  "retailer_id",
		KeyColumn: "retailer_code",
	}

	SalesFact = FactSpec{
		Table: "fact_sales",
		Columns: []string{
			"date_id", "product_id", "customer_id", "store_id", "retailer_id",
			"transaction_id", "quantity", "unit_price", "total_amount",
		},
		DedupeColumns: []string{"transaction_id", "product_id", "retailer_id"},
	}
)

// StarSchema returns the DDL specs for every table this module owns.
// dim_retailer is included so init can create it, even though the
// transformation path treats it as read-only.
func StarSchema() []TableSpec {
	return []TableSpec{
		{
			Name:       "dim_date",
			PrimaryKey: &PrimaryKeySpec{Name: "date_id", Type: "serial"},
			Columns: []ColumnSpec{
				{Name: "date", Type: "date"},
				{Name: "year", Type: "int"},
				{Name: "quarter", Type: "int"},
				{Name: "month", Type: "int"},
				{Name: "week", Type: "int"},
				{Name: "day", Type: "int"},
				{Name: "day_of_week", Type: "int"},
				{Name: "day_name", Type: "varchar(16)"},
				{Name: "is_weekend", Type: "boolean"},
			},
			Constraints: []ConstraintSpec{{Kind: "unique", Columns: []string{"date"}}},
		},
		{
			Name:       "dim_product",
			PrimaryKey: &PrimaryKeySpec{Name: "product_id", Type: "serial"},
			Columns: []ColumnSpec{
				{Name: "product_sku", Type: "varchar(128)"},
				{Name: "product_name", Type: "varchar(400)"},
				{Name: "category", Type: "varchar(128)", Nullable: true},
			},
			Constraints: []ConstraintSpec{{Kind: "unique", Columns: []string{"product_sku"}}},
		},
		{
			Name:       "dim_customer",
			PrimaryKey: &PrimaryKeySpec{Name: "customer_id", Type: "serial"},
			Columns: []ColumnSpec{
				{Name: "customer_external_id", Type: "varchar(128)"},
			},
			Constraints: []ConstraintSpec{{Kind: "unique", Columns: []string{"customer_external_id"}}},
		},
		{
			Name:       "dim_store",
			PrimaryKey: &PrimaryKeySpec{Name: "store_id", Type: "serial"},
			Columns: []ColumnSpec{
				{Name: "store_external_id", Type: "varchar(128)"},
			},
			Constraints: []ConstraintSpec{{Kind: "unique", Columns: []string{"store_external_id"}}},
		},
		{
			Name:       "dim_retailer",
			PrimaryKey: &PrimaryKeySpec{Name: "retailer_id", Type: "serial"},
			Columns: []ColumnSpec{
				{Name: "retailer_code", Type: "varchar(64)"},
			},
			Constraints: []ConstraintSpec{{Kind: "unique", Columns: []string{"retailer_code"}}},
		},
		{
			Name:       "fact_sales",
			PrimaryKey: &PrimaryKeySpec{Name: "sales_id", Type: "bigserial"},
			Columns: []ColumnSpec{
				{Name: "date_id", Type: "int", References: "dim_date"},
				{Name: "product_id", Type: "int", References: "dim_product"},
				{Name: "customer_id", Type: "int", References: "dim_customer", Nullable: true},
				{Name: "store_id", Type: "int", References: "dim_store", Nullable: true},
				{Name: "retailer_id", Type: "int", References: "dim_retailer"},
				{Name: "transaction_id", Type: "varchar(128)"},
				{Name: "quantity", Type: "int"},
				{Name: "unit_price", Type: "numeric(12,2)"},
				{Name: "total_amount", Type: "numeric(12,2)"},
			},
			Constraints: []ConstraintSpec{
				{Kind: "unique", Columns: []string{"transaction_id", "product_id", "retailer_id"}},
			},
		},
	}
}
