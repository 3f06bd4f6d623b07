// Package quality validates the star schema after a daily load: volume,
// completeness, business rules, referential integrity and freshness.
package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"retailetl/internal/logging"
)

// Querier is the read surface checks need. *pgxpool.Pool satisfies it, and
// tests fake it with canned rows.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Result is the outcome of one quality check.
type Result struct {
	Check   string
	Passed  bool
	Message string
}

// Checker runs the post-load validations for one warehouse.
type Checker struct {
	q Querier

	// now is swappable in tests of the freshness check.
	now func() time.Time
}

func NewChecker(q Querier) *Checker {
	return &Checker{q: q, now: time.Now}
}

// maxDataAgeDays bounds the freshness check: a daily pipeline should never be
// validating data older than a week.
const maxDataAgeDays = 7

// RunAll runs every check for one load date and logs each outcome. A failing
// check, including one whose query errored, is a result, never a panic or an
// early return.
func (c *Checker) RunAll(ctx context.Context, date time.Time) []Result {
	dateStr := date.Format("2006-01-02")

	results := []Result{
		c.checkRecordCount(ctx, dateStr),
		c.checkCompleteness(ctx, dateStr),
		c.checkBusinessRules(ctx, dateStr),
		c.checkReferentialIntegrity(ctx, dateStr),
		c.checkFreshness(date),
	}

	for _, r := range results {
		ev := logging.Info()
		if !r.Passed {
			ev = logging.Warn()
		}
		ev.Str("check", r.Check).Bool("passed", r.Passed).Str("date", dateStr).Msg(r.Message)
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// checkRecordCount verifies at least one fact row was loaded for the date.
func (c *Checker) checkRecordCount(ctx context.Context, dateStr string) Result {
	const q = `
		SELECT COUNT(*)
		FROM fact_sales fs
		JOIN dim_date dd ON fs.date_id = dd.date_id
		WHERE dd.date = $1`

	var count int64
	if err := c.q.QueryRow(ctx, q, dateStr).Scan(&count); err != nil {
		return failed("record_count", err)
	}
	return Result{
		Check:   "record_count",
		Passed:  count > 0,
		Message: fmt.Sprintf("%d fact rows for %s", count, dateStr),
	}
}

// checkCompleteness looks for NULLs in the measure and mandatory key columns.
func (c *Checker) checkCompleteness(ctx context.Context, dateStr string) Result {
	const q = `
		SELECT
			COUNT(*),
			SUM(CASE WHEN fs.quantity IS NULL THEN 1 ELSE 0 END),
			SUM(CASE WHEN fs.unit_price IS NULL THEN 1 ELSE 0 END),
			SUM(CASE WHEN fs.total_amount IS NULL THEN 1 ELSE 0 END),
			SUM(CASE WHEN fs.product_id IS NULL THEN 1 ELSE 0 END),
			SUM(CASE WHEN fs.retailer_id IS NULL THEN 1 ELSE 0 END)
		FROM fact_sales fs
		JOIN dim_date dd ON fs.date_id = dd.date_id
		WHERE dd.date = $1`

	var total, nullQty, nullPrice, nullAmount, nullProduct, nullRetailer int64
	err := c.q.QueryRow(ctx, q, dateStr).Scan(&total, &nullQty, &nullPrice, &nullAmount, &nullProduct, &nullRetailer)
	if err != nil {
		return failed("data_completeness", err)
	}
	if total == 0 {
		return Result{Check: "data_completeness", Passed: false, Message: "no fact rows for date"}
	}

	nulls := nullQty + nullPrice + nullAmount + nullProduct + nullRetailer
	if nulls > 0 {
		return Result{
			Check:  "data_completeness",
			Passed: false,
			Message: fmt.Sprintf(
				"nulls in critical columns: quantity=%d unit_price=%d total_amount=%d product_id=%d retailer_id=%d",
				nullQty, nullPrice, nullAmount, nullProduct, nullRetailer,
			),
		}
	}
	return Result{
		Check:   "data_completeness",
		Passed:  true,
		Message: fmt.Sprintf("%d rows, no nulls in critical columns", total),
	}
}

// checkBusinessRules verifies total_amount equals quantity * unit_price
// within a one-cent rounding tolerance.
func (c *Checker) checkBusinessRules(ctx context.Context, dateStr string) Result {
	const q = `
		SELECT
			COUNT(*),
			SUM(CASE WHEN ABS(fs.total_amount - (fs.quantity * fs.unit_price)) > 0.01 THEN 1 ELSE 0 END)
		FROM fact_sales fs
		JOIN dim_date dd ON fs.date_id = dd.date_id
		WHERE dd.date = $1`

	var total, violations int64
	if err := c.q.QueryRow(ctx, q, dateStr).Scan(&total, &violations); err != nil {
		return failed("business_rules", err)
	}
	if total == 0 {
		return Result{Check: "business_rules", Passed: false, Message: "no fact rows for date"}
	}
	return Result{
		Check:   "business_rules",
		Passed:  violations == 0,
		Message: fmt.Sprintf("%d rows, %d amount mismatches", total, violations),
	}
}

// checkReferentialIntegrity looks for fact rows whose product or retailer key
// has no dimension row.
func (c *Checker) checkReferentialIntegrity(ctx context.Context, dateStr string) Result {
	const q = `
		SELECT
			COUNT(*),
			SUM(CASE WHEN dp.product_id IS NULL THEN 1 ELSE 0 END),
			SUM(CASE WHEN dr.retailer_id IS NULL THEN 1 ELSE 0 END)
		FROM fact_sales fs
		JOIN dim_date dd ON fs.date_id = dd.date_id AND dd.date = $1
		LEFT JOIN dim_product dp ON fs.product_id = dp.product_id
		LEFT JOIN dim_retailer dr ON fs.retailer_id = dr.retailer_id`

	var total, orphanProduct, orphanRetailer int64
	if err := c.q.QueryRow(ctx, q, dateStr).Scan(&total, &orphanProduct, &orphanRetailer); err != nil {
		return failed("referential_integrity", err)
	}
	if total == 0 {
		return Result{Check: "referential_integrity", Passed: false, Message: "no fact rows for date"}
	}
	if orphanProduct > 0 || orphanRetailer > 0 {
		return Result{
			Check:   "referential_integrity",
			Passed:  false,
			Message: fmt.Sprintf("orphaned keys: product=%d retailer=%d", orphanProduct, orphanRetailer),
		}
	}
	return Result{
		Check:   "referential_integrity",
		Passed:  true,
		Message: fmt.Sprintf("%d rows, all foreign keys resolve", total),
	}
}

// checkFreshness verifies the load date is recent enough for a daily cadence.
func (c *Checker) checkFreshness(date time.Time) Result {
	age := int(c.now().Sub(date).Hours() / 24)
	return Result{
		Check:   "data_freshness",
		Passed:  age <= maxDataAgeDays,
		Message: fmt.Sprintf("data is %d days old (max %d)", age, maxDataAgeDays),
	}
}

func failed(check string, err error) Result {
	return Result{Check: check, Passed: false, Message: fmt.Sprintf("check failed: %v", err)}
}
