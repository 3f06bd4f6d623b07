package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"

	"retailetl/internal/warehouse"
)

// Repo implements warehouse.Repository for SQL Server.
//
// SQL Server has no ON CONFLICT clause, so idempotency is done in two layers:
// a guarded IF NOT EXISTS insert for the common case, plus unique-violation
// detection for the race where another writer lands between the check and the
// insert. Either way the caller observes the same insert-once semantics as
// the Postgres and SQLite backends.
type Repo struct {
	db *sql.DB
}

func init() {
	warehouse.Register("mssql", New)
}

func New(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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

// EnsureSchema creates the star-schema tables. Idempotent via OBJECT_ID
// guards since SQL Server lacks CREATE TABLE IF NOT EXISTS.
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

// SeedRetailers inserts missing retailer codes one by one; seeding runs once
// per process so per-row guarded inserts are fine.
func (r *Repo) SeedRetailers(ctx context.Context, codes []string) error {
	const q = `IF NOT EXISTS (SELECT 1 FROM dim_retailer WHERE retailer_code = @p1)
  INSERT INTO dim_retailer (retailer_code) VALUES (@p1);`

	for _, c := range codes {
		if _, err := r.db.ExecContext(ctx, q, c); err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return fmt.Errorf("seed dim_retailer %q: %w", c, err)
		}
	}
	return nil
}

// UpsertDimension resolves key to its surrogate id, creating the row on first
// sight. Lookup-first keeps the steady state (key already known) to a single
// indexed SELECT.
func (r *Repo) UpsertDimension(ctx context.Context, d warehouse.DimensionSpec, key any, attrs []any) (int64, error) {
	if len(attrs) != len(d.AttrColumns) {
		return 0, fmt.Errorf("mssql: %s: got %d attrs, want %d", d.Table, len(attrs), len(d.AttrColumns))
	}

	id, ok, err := r.LookupDimensionKey(ctx, d, key)
	if err != nil {
		return 0, err
	}
	if ok {
		if d.UpdateOnConflict && len(d.AttrColumns) > 0 {
			update, uargs := buildUpdateSQL(d, key, attrs)
			if _, err := r.db.ExecContext(ctx, update, uargs...); err != nil {
				return 0, fmt.Errorf("mssql: update %s: %w", d.Table, err)
			}
		}
		return id, nil
	}

	insert := buildInsertSQL(d)
	args := make([]any, 0, 1+len(attrs))
	args = append(args, key)
	args = append(args, attrs...)

	err = r.db.QueryRowContext(ctx, insert, args...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !isUniqueViolation(err) {
		return 0, fmt.Errorf("mssql: upsert %s: %w", d.Table, err)
	}

	// Lost the insert race; the row now exists.
	id, ok, err = r.LookupDimensionKey(ctx, d, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("mssql: %s: key missing after unique violation", d.Table)
	}
	return id, nil
}

// LookupDimensionKey resolves key without creating anything.
func (r *Repo) LookupDimensionKey(ctx context.Context, d warehouse.DimensionSpec, key any) (int64, bool, error) {
	q := fmt.Sprintf(
		`SELECT %s FROM %s WHERE %s = @p1`,
		sqlIdent(d.IDColumn), t(d.Table), sqlIdent(d.KeyColumn),
	)

	var id int64
	err := r.db.QueryRowContext(ctx, q, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("mssql: lookup %s: %w", d.Table, err)
	}
	return id, true, nil
}

// InsertFact performs the idempotent fact insert. A duplicate natural key is
// reported as skipped (false, nil), whether caught by the existence guard or
// by the unique index.
func (r *Repo) InsertFact(ctx context.Context, f warehouse.FactSpec, row []any) (bool, error) {
	if len(row) != len(f.Columns) {
		return false, fmt.Errorf("mssql: %s: got %d values, want %d", f.Table, len(row), len(f.Columns))
	}

	q, err := buildFactInsertSQL(f)
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, q, row...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("mssql: insert %s: %w", f.Table, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// ---- SQL builders ----

func buildInsertSQL(d warehouse.DimensionSpec) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t(d.Table))
	b.WriteString(" (")
	b.WriteString(sqlIdent(d.KeyColumn))
	for _, c := range d.AttrColumns {
		b.WriteString(", ")
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") OUTPUT INSERTED.")
	b.WriteString(sqlIdent(d.IDColumn))
	b.WriteString(" VALUES (@p1")
	for i := range d.AttrColumns {
		fmt.Fprintf(&b, ", @p%d", i+2)
	}
	b.WriteString(")")
	return b.String()
}

func buildUpdateSQL(d warehouse.DimensionSpec, key any, attrs []any) (string, []any) {
	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(t(d.Table))
	b.WriteString(" SET ")

	args := make([]any, 0, len(attrs)+1)
	for i, c := range d.AttrColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = @p%d", sqlIdent(c), i+1)
		args = append(args, attrs[i])
	}
	fmt.Fprintf(&b, " WHERE %s = @p%d", sqlIdent(d.KeyColumn), len(attrs)+1)
	args = append(args, key)
	return b.String(), args
}

// buildFactInsertSQL wraps the insert in an IF NOT EXISTS guard on the dedupe
// tuple. The guard references the row values by their position in f.Columns.
func buildFactInsertSQL(f warehouse.FactSpec) (string, error) {
	var b strings.Builder

	if len(f.DedupeColumns) > 0 {
		b.WriteString("IF NOT EXISTS (SELECT 1 FROM ")
		b.WriteString(t(f.Table))
		b.WriteString(" WHERE ")
		for i, c := range f.DedupeColumns {
			pos := columnIndex(f.Columns, c)
			if pos < 0 {
				return "", fmt.Errorf("mssql: %s: dedupe column %q not in insert columns", f.Table, c)
			}
			if i > 0 {
				b.WriteString(" AND ")
			}
			fmt.Fprintf(&b, "%s = @p%d", sqlIdent(c), pos+1)
		}
		b.WriteString(")\n  ")
	}

	b.WriteString("INSERT INTO ")
	b.WriteString(t(f.Table))
	b.WriteString(" (")
	for i, c := range f.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES (")
	for i := range f.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "@p%d", i+1)
	}
	b.WriteString(");")
	return b.String(), nil
}

// buildCreateSQL generates OBJECT_ID-guarded CREATE TABLE DDL with SQL Server
// type translations (serial -> IDENTITY, boolean -> BIT, varchar -> NVARCHAR).
func buildCreateSQL(tbl warehouse.TableSpec) (string, error) {
	if strings.TrimSpace(tbl.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}

	var parts []string

	if tbl.PrimaryKey != nil {
		parts = append(parts, fmt.Sprintf(
			`%s %s PRIMARY KEY`,
			sqlIdent(tbl.PrimaryKey.Name), translateType(tbl.PrimaryKey.Type),
		))
	}

	for _, c := range tbl.Columns {
		col := fmt.Sprintf("%s %s", sqlIdent(c.Name), translateType(c.Type))
		if !c.Nullable {
			col += " NOT NULL"
		}
		if c.References != "" {
			col += " REFERENCES " + translateReference(c.References)
		}
		parts = append(parts, col)
	}

	for _, con := range tbl.Constraints {
		if con.Kind != "unique" {
			return "", fmt.Errorf("mssql: %s unsupported constraint kind: %s", tbl.Name, con.Kind)
		}
		var cols []string
		for _, c := range con.Columns {
			cols = append(cols, sqlIdent(c))
		}
		parts = append(parts, fmt.Sprintf("UNIQUE (%s)", strings.Join(cols, ", ")))
	}

	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n  %s\n);",
		tbl.Name, t(tbl.Name), strings.Join(parts, ",\n  "),
	), nil
}

func translateType(typ string) string {
	lower := strings.TrimSpace(strings.ToLower(typ))
	switch {
	case lower == "serial":
		return "INT IDENTITY(1,1)"
	case lower == "bigserial":
		return "BIGINT IDENTITY(1,1)"
	case lower == "boolean":
		return "BIT"
	case strings.HasPrefix(lower, "varchar"):
		return "N" + strings.ToUpper(lower)
	default:
		return typ
	}
}

// translateReference rewrites "dim_date(date_id)" with quoted identifiers.
func translateReference(ref string) string {
	open := strings.IndexByte(ref, '(')
	if open < 0 || !strings.HasSuffix(ref, ")") {
		return ref
	}
	table := ref[:open]
	col := ref[open+1 : len(ref)-1]
	return fmt.Sprintf("%s (%s)", t(table), sqlIdent(col))
}

func columnIndex(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

// isUniqueViolation reports whether err is a PK/unique index violation
// (SQL Server error 2627 for constraints, 2601 for unique indexes).
func isUniqueViolation(err error) bool {
	var serr mssql.Error
	if errors.As(err, &serr) {
		return serr.Number == 2627 || serr.Number == 2601
	}
	return false
}

func sqlIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// t quotes a table name.
func t(name string) string { return sqlIdent(name) }
