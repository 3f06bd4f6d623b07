package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"retailetl/internal/warehouse"
)

// Repo implements warehouse.Repository for Postgres.
//
// All idempotence is pushed into SQL: dimension upserts use ON CONFLICT and
// fact inserts use ON CONFLICT DO NOTHING, so concurrent runs serialize on
// the unique constraints instead of application locks.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	warehouse.Register("postgres", New)
}

// New creates a new Postgres-backed Repo and verifies connectivity.
func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// Pool exposes the underlying pool for read-only consumers (quality checks,
// view refresh) that need SQL beyond the Repository surface.
func (r *Repo) Pool() *pgxpool.Pool {
	return r.pool
}

// EnsureSchema creates the star-schema tables. Idempotent.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range warehouse.StarSchema() {
		ddl, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// SeedRetailers inserts missing retailer codes. Existing codes are untouched.
func (r *Repo) SeedRetailers(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO dim_retailer (retailer_code) VALUES ")

	args := make([]any, 0, len(codes))
	for i, c := range codes {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "($%d)", i+1)
		args = append(args, c)
	}
	b.WriteString(" ON CONFLICT (retailer_code) DO NOTHING")

	if _, err := r.pool.Exec(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("seed dim_retailer: %w", err)
	}
	return nil
}

// UpsertDimension resolves key to its surrogate id, creating the row on first
// sight.
//
// Type-1 dimensions (UpdateOnConflict) run a single
// INSERT ... ON CONFLICT DO UPDATE ... RETURNING, which both overwrites the
// attributes and returns the id in one round trip.
//
// Insert-once dimensions run INSERT ... ON CONFLICT DO NOTHING RETURNING;
// when the insert was suppressed (row already present, possibly created by a
// concurrent run a moment ago) the id is re-read by key.
func (r *Repo) UpsertDimension(ctx context.Context, d warehouse.DimensionSpec, key any, attrs []any) (int64, error) {
	if len(attrs) != len(d.AttrColumns) {
		return 0, fmt.Errorf("postgres: %s: got %d attrs, want %d", d.Table, len(attrs), len(d.AttrColumns))
	}

	sql := buildUpsertSQL(d)
	args := make([]any, 0, 1+len(attrs))
	args = append(args, key)
	args = append(args, attrs...)

	var id int64
	err := r.pool.QueryRow(ctx, sql, args...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("postgres: upsert %s: %w", d.Table, err)
	}

	// DO NOTHING suppressed the insert: someone already created this key.
	id, ok, err := r.LookupDimensionKey(ctx, d, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("postgres: %s: key vanished after conflicting insert", d.Table)
	}
	return id, nil
}

// LookupDimensionKey resolves key without creating anything.
func (r *Repo) LookupDimensionKey(ctx context.Context, d warehouse.DimensionSpec, key any) (int64, bool, error) {
	q := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = $1`,
		pgIdent(d.IDColumn), d.Table, pgIdent(d.KeyColumn),
	)

	var id int64
	err := r.pool.QueryRow(ctx, q, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("postgres: lookup %s: %w", d.Table, err)
	}
	return id, true, nil
}

// InsertFact performs the idempotent fact insert. The natural-key conflict
// policy is DO NOTHING; a suppressed insert reports inserted=false.
func (r *Repo) InsertFact(ctx context.Context, f warehouse.FactSpec, row []any) (bool, error) {
	if len(row) != len(f.Columns) {
		return false, fmt.Errorf("postgres: %s: got %d values, want %d", f.Table, len(row), len(f.Columns))
	}

	sql := buildFactInsertSQL(f)
	cmd, err := r.pool.Exec(ctx, sql, row...)
	if err != nil {
		return false, fmt.Errorf("postgres: insert %s: %w", f.Table, err)
	}
	return cmd.RowsAffected() == 1, nil
}

// ---- SQL builders ----
//
// These are pure and deterministic so correctness (especially ON CONFLICT
// behavior and placeholder numbering) can be unit tested without a database.

func buildUpsertSQL(d warehouse.DimensionSpec) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.Table)
	b.WriteString(" (")
	b.WriteString(pgIdent(d.KeyColumn))
	for _, c := range d.AttrColumns {
		b.WriteString(", ")
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ($1")
	for i := range d.AttrColumns {
		fmt.Fprintf(&b, ", $%d", i+2)
	}
	b.WriteString(") ON CONFLICT (")
	b.WriteString(pgIdent(d.KeyColumn))
	b.WriteString(")")

	if d.UpdateOnConflict && len(d.AttrColumns) > 0 {
		b.WriteString(" DO UPDATE SET ")
		for i, c := range d.AttrColumns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(pgIdent(c))
			b.WriteString(" = EXCLUDED.")
			b.WriteString(pgIdent(c))
		}
	} else {
		b.WriteString(" DO NOTHING")
	}

	b.WriteString(" RETURNING ")
	b.WriteString(pgIdent(d.IDColumn))
	return b.String()
}

func buildFactInsertSQL(f warehouse.FactSpec) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(f.Table)
	b.WriteString(" (")
	for i, c := range f.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range f.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i+1)
	}
	b.WriteString(")")

	if len(f.DedupeColumns) > 0 {
		b.WriteString(" ON CONFLICT (")
		for i, c := range f.DedupeColumns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(pgIdent(c))
		}
		b.WriteString(") DO NOTHING")
	}
	return b.String()
}

// buildCreateSQL generates CREATE TABLE IF NOT EXISTS DDL for one table.
func buildCreateSQL(t warehouse.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("postgres: table name is empty")
	}

	cols := make([]string, 0, len(t.Columns)+1)

	if t.PrimaryKey != nil {
		cols = append(cols, fmt.Sprintf(`%s %s PRIMARY KEY`, pgIdent(t.PrimaryKey.Name), t.PrimaryKey.Type))
	}

	for _, c := range t.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return "", fmt.Errorf("postgres: table %s: %w", t.Name, err)
		}
		cols = append(cols, def)
	}

	for _, con := range t.Constraints {
		if con.Kind != "unique" {
			return "", fmt.Errorf("postgres: table %s: unsupported constraint kind %q", t.Name, con.Kind)
		}
		quoted := make([]string, 0, len(con.Columns))
		for _, c := range con.Columns {
			quoted = append(quoted, pgIdent(c))
		}
		cols = append(cols, fmt.Sprintf("UNIQUE (%s)", strings.Join(quoted, ", ")))
	}

	if len(cols) == 0 {
		return "", fmt.Errorf("postgres: table %s: no columns", t.Name)
	}

	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s);`, t.Name, strings.Join(cols, ", ")), nil
}

func buildColumnDef(c warehouse.ColumnSpec) (string, error) {
	name := strings.TrimSpace(c.Name)
	typ := strings.TrimSpace(c.Type)
	if name == "" || typ == "" {
		return "", fmt.Errorf("column name/type must be set")
	}

	var b strings.Builder
	b.WriteString(pgIdent(name))
	b.WriteString(" ")
	b.WriteString(typ)

	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if ref := strings.TrimSpace(c.References); ref != "" {
		b.WriteString(" REFERENCES ")
		b.WriteString(ref)
	}
	return b.String(), nil
}

func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
