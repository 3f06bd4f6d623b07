package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"retailetl/internal/warehouse"
)

// Repo implements warehouse.Repository for SQLite.
//
// Key design points vs Postgres:
//   - "INSERT OR IGNORE" replaces ON CONFLICT DO NOTHING; it relies on the
//     UNIQUE/PK constraints the schema declares.
//   - Surrogate keys come from INTEGER PRIMARY KEY AUTOINCREMENT columns, so
//     "serial" primary keys are translated during DDL generation.
//
// This backend doubles as the in-memory test backend (DSN ":memory:").
type Repo struct {
	db *sql.DB
}

func init() {
	warehouse.Register("sqlite", New)
}

func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// DB exposes the underlying handle for test assertions.
func (r *Repo) DB() *sql.DB { return r.db }

// EnsureSchema creates the star-schema tables. Idempotent.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	for _, t := range warehouse.StarSchema() {
		ddl, err := buildCreateSQL(t)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}
	return nil
}

// SeedRetailers inserts missing retailer codes via INSERT OR IGNORE.
func (r *Repo) SeedRetailers(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT OR IGNORE INTO dim_retailer (retailer_code) VALUES ")

	args := make([]any, 0, len(codes))
	for i, c := range codes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?)")
		args = append(args, c)
	}

	if _, err := r.db.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("seed dim_retailer: %w", err)
	}
	return nil
}

// UpsertDimension resolves key to its surrogate id, creating the row on first
// sight.
//
// The insert is OR IGNORE so a concurrent creator wins silently; the id is
// then read back by key, which also covers the type-1 update path (the UPDATE
// touches attribute columns only, never the key or the id).
func (r *Repo) UpsertDimension(ctx context.Context, d warehouse.DimensionSpec, key any, attrs []any) (int64, error) {
	if len(attrs) != len(d.AttrColumns) {
		return 0, fmt.Errorf("sqlite: %s: got %d attrs, want %d", d.Table, len(attrs), len(d.AttrColumns))
	}

	insert := buildInsertIgnoreSQL(d)
	args := make([]any, 0, 1+len(attrs))
	args = append(args, key)
	args = append(args, attrs...)

	res, err := r.db.ExecContext(ctx, insert, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: upsert %s: %w", d.Table, err)
	}

	inserted, _ := res.RowsAffected()
	if inserted == 0 && d.UpdateOnConflict && len(d.AttrColumns) > 0 {
		update, uargs := buildUpdateSQL(d, key, attrs)
		if _, err := r.db.ExecContext(ctx, update, uargs...); err != nil {
			return 0, fmt.Errorf("sqlite: update %s: %w", d.Table, err)
		}
	}

	id, ok, err := r.LookupDimensionKey(ctx, d, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("sqlite: %s: key missing after upsert", d.Table)
	}
	return id, nil
}

// LookupDimensionKey resolves key without creating anything.
func (r *Repo) LookupDimensionKey(ctx context.Context, d warehouse.DimensionSpec, key any) (int64, bool, error) {
	q := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = ?`,
		sqlIdent(d.IDColumn), d.Table, sqlIdent(d.KeyColumn),
	)

	var id sql.NullInt64
	err := r.db.QueryRowContext(ctx, q, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sqlite: lookup %s: %w", d.Table, err)
	}
	if !id.Valid {
		return 0, false, fmt.Errorf(
			"sqlite: %s.%s is NULL; primary key not auto-generated (check primary key type mapping, e.g. serial->INTEGER PRIMARY KEY)",
			d.Table, d.IDColumn,
		)
	}
	return id.Int64, true, nil
}

// InsertFact performs the idempotent fact insert via INSERT OR IGNORE, which
// requires the UNIQUE constraint matching FactSpec.DedupeColumns.
func (r *Repo) InsertFact(ctx context.Context, f warehouse.FactSpec, row []any) (bool, error) {
	if len(row) != len(f.Columns) {
		return false, fmt.Errorf("sqlite: %s: got %d values, want %d", f.Table, len(row), len(f.Columns))
	}

	prefix := "INSERT INTO "
	if len(f.DedupeColumns) > 0 {
		prefix = "INSERT OR IGNORE INTO "
	}

	cols := make([]string, 0, len(f.Columns))
	for _, c := range f.Columns {
		cols = append(cols, sqlIdent(c))
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(f.Columns)), ",")

	q := fmt.Sprintf("%s%s (%s) VALUES (%s)", prefix, f.Table, strings.Join(cols, ", "), placeholders)

	res, err := r.db.ExecContext(ctx, q, row...)
	if err != nil {
		return false, fmt.Errorf("sqlite: insert %s: %w", f.Table, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ---- SQL builders ----

func buildInsertIgnoreSQL(d warehouse.DimensionSpec) string {
	var b strings.Builder
	b.WriteString("INSERT OR IGNORE INTO ")
	b.WriteString(d.Table)
	b.WriteString(" (")
	b.WriteString(sqlIdent(d.KeyColumn))
	for _, c := range d.AttrColumns {
		b.WriteString(", ")
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES (?")
	for range d.AttrColumns {
		b.WriteString(", ?")
	}
	b.WriteString(")")
	return b.String()
}

func buildUpdateSQL(d warehouse.DimensionSpec, key any, attrs []any) (string, []any) {
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(d.Table)
	b.WriteString(" SET ")

	args := make([]any, 0, len(attrs)+1)
	for i, c := range d.AttrColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
		b.WriteString(" = ?")
		args = append(args, attrs[i])
	}
	b.WriteString(" WHERE ")
	b.WriteString(sqlIdent(d.KeyColumn))
	b.WriteString(" = ?")
	args = append(args, key)
	return b.String(), args
}

// buildCreateSQL generates CREATE TABLE IF NOT EXISTS DDL, translating
// Postgres-ish primary key types into SQLite semantics. "INTEGER PRIMARY KEY"
// is special in SQLite: it becomes the rowid and auto-generates values.
func buildCreateSQL(t warehouse.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("sqlite: table name is empty")
	}

	var parts []string

	if t.PrimaryKey != nil {
		switch strings.TrimSpace(strings.ToLower(t.PrimaryKey.Type)) {
		case "serial", "bigserial":
			parts = append(parts, fmt.Sprintf(`%s INTEGER PRIMARY KEY AUTOINCREMENT`, sqlIdent(t.PrimaryKey.Name)))
		default:
			parts = append(parts, fmt.Sprintf(`%s %s PRIMARY KEY`, sqlIdent(t.PrimaryKey.Name), t.PrimaryKey.Type))
		}
	}

	for _, c := range t.Columns {
		col := fmt.Sprintf("%s %s", sqlIdent(c.Name), c.Type)
		if !c.Nullable {
			col += " NOT NULL"
		}
		// SQLite supports REFERENCES, but enforcement depends on
		// PRAGMA foreign_keys=ON.
		if c.References != "" {
			col += " REFERENCES " + c.References
		}
		parts = append(parts, col)
	}

	for _, con := range t.Constraints {
		if con.Kind != "unique" {
			return "", fmt.Errorf("sqlite: %s unsupported constraint kind: %s", t.Name, con.Kind)
		}
		var cols []string
		for _, c := range con.Columns {
			cols = append(cols, sqlIdent(c))
		}
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", t.Name, strings.Join(parts, ",\n  ")), nil
}

func sqlIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
