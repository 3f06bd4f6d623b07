// Package views owns the reporting materialized views built over the star
// schema and their post-load refresh.
package views

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"retailetl/internal/logging"
)

// Execer is the statement surface view maintenance needs. *pgxpool.Pool
// satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Names lists every materialized view this module maintains, in refresh
// order.
var Names = []string{
	"mv_daily_sales_summary",
	"mv_monthly_sales_by_category",
	"mv_top_products_by_revenue",
	"mv_weekly_sales_trends",
	"mv_quarterly_sales_summary",
	"mv_daily_sales_by_product",
}

// definitions maps each view to its SELECT body. Each view carries a unique
// index over its grouping key so REFRESH CONCURRENTLY is possible.
var definitions = map[string]struct {
	query     string
	indexCols string
}{
	"mv_daily_sales_summary": {
		query: `
			SELECT dd.date, COUNT(*) AS transactions,
			       SUM(fs.quantity) AS units_sold,
			       SUM(fs.total_amount) AS revenue
			FROM fact_sales fs
			JOIN dim_date dd ON fs.date_id = dd.date_id
			GROUP BY dd.date`,
		indexCols: "date",
	},
	"mv_monthly_sales_by_category": {
		query: `
			SELECT dd.year, dd.month, COALESCE(dp.category, 'uncategorized') AS category,
			       SUM(fs.quantity) AS units_sold,
			       SUM(fs.total_amount) AS revenue
			FROM fact_sales fs
			JOIN dim_date dd ON fs.date_id = dd.date_id
			JOIN dim_product dp ON fs.product_id = dp.product_id
			GROUP BY dd.year, dd.month, COALESCE(dp.category, 'uncategorized')`,
		indexCols: "year, month, category",
	},
	"mv_top_products_by_revenue": {
		query: `
			SELECT dp.product_sku, dp.product_name,
			       SUM(fs.quantity) AS units_sold,
			       SUM(fs.total_amount) AS revenue
			FROM fact_sales fs
			JOIN dim_product dp ON fs.product_id = dp.product_id
			GROUP BY dp.product_sku, dp.product_name
			ORDER BY revenue DESC`,
		indexCols: "product_sku",
	},
	"mv_weekly_sales_trends": {
		query: `
			SELECT dd.year, dd.week,
			       COUNT(*) AS transactions,
			       SUM(fs.total_amount) AS revenue
			FROM fact_sales fs
			JOIN dim_date dd ON fs.date_id = dd.date_id
			GROUP BY dd.year, dd.week`,
		indexCols: "year, week",
	},
	"mv_quarterly_sales_summary": {
		query: `
			SELECT dd.year, dd.quarter,
			       COUNT(*) AS transactions,
			       SUM(fs.quantity) AS units_sold,
			       SUM(fs.total_amount) AS revenue
			FROM fact_sales fs
			JOIN dim_date dd ON fs.date_id = dd.date_id
			GROUP BY dd.year, dd.quarter`,
		indexCols: "year, quarter",
	},
	"mv_daily_sales_by_product": {
		query: `
			SELECT dd.date, dp.product_sku,
			       SUM(fs.quantity) AS units_sold,
			       SUM(fs.total_amount) AS revenue
			FROM fact_sales fs
			JOIN dim_date dd ON fs.date_id = dd.date_id
			JOIN dim_product dp ON fs.product_id = dp.product_id
			GROUP BY dd.date, dp.product_sku`,
		indexCols: "date, product_sku",
	},
}

// EnsureAll creates every materialized view and its unique index. Idempotent;
// meant for init alongside schema creation. Postgres only.
func EnsureAll(ctx context.Context, db Execer) error {
	for _, name := range Names {
		def := definitions[name]
		ddl := fmt.Sprintf("CREATE MATERIALIZED VIEW IF NOT EXISTS %s AS%s", name, def.query)
		if _, err := db.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("views: create %s: %w", name, err)
		}
		idx := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s_key ON %s (%s)", name, name, def.indexCols)
		if _, err := db.Exec(ctx, idx); err != nil {
			return fmt.Errorf("views: index %s: %w", name, err)
		}
	}
	return nil
}

// RefreshAll refreshes every view, preferring REFRESH CONCURRENTLY so readers
// are not blocked; a view that cannot refresh concurrently (typically first
// refresh after creation) falls back to a plain refresh.
//
// Views are independent, so one failure does not stop the rest; the first
// error is returned after all views were attempted.
func RefreshAll(ctx context.Context, db Execer) error {
	var firstErr error
	for _, name := range Names {
		if err := refreshOne(ctx, db, name); err != nil {
			logging.Error().Str("view", name).Err(err).Msg("refresh failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		logging.Info().Str("view", name).Msg("view refreshed")
	}
	return firstErr
}

func refreshOne(ctx context.Context, db Execer, name string) error {
	if _, err := db.Exec(ctx, "REFRESH MATERIALIZED VIEW CONCURRENTLY "+name); err == nil {
		return nil
	}
	_, err := db.Exec(ctx, "REFRESH MATERIALIZED VIEW "+name)
	if err != nil {
		return fmt.Errorf("views: refresh %s: %w", name, err)
	}
	return nil
}
