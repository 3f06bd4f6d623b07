package views

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

// fakeExecer records every statement and fails those matching failSubstr.
type fakeExecer struct {
	stmts      []string
	failSubstr string
}

func (f *fakeExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.stmts = append(f.stmts, sql)
	if f.failSubstr != "" && strings.Contains(sql, f.failSubstr) {
		return pgconn.CommandTag{}, errors.New("forced failure")
	}
	return pgconn.CommandTag{}, nil
}

func TestEnsureAllCreatesEveryViewWithUniqueIndex(t *testing.T) {
	db := &fakeExecer{}
	if err := EnsureAll(context.Background(), db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	if len(db.stmts) != 2*len(Names) {
		t.Fatalf("got %d statements, want %d", len(db.stmts), 2*len(Names))
	}
	for _, name := range Names {
		var created, indexed bool
		for _, s := range db.stmts {
			if strings.HasPrefix(s, "CREATE MATERIALIZED VIEW IF NOT EXISTS "+name+" AS") {
				created = true
			}
			if strings.HasPrefix(s, "CREATE UNIQUE INDEX IF NOT EXISTS "+name+"_key") {
				indexed = true
			}
		}
		if !created {
			t.Fatalf("view %s never created", name)
		}
		if !indexed {
			t.Fatalf("view %s has no unique index; concurrent refresh would fail", name)
		}
	}
}

func TestEveryViewHasADefinition(t *testing.T) {
	for _, name := range Names {
		def, ok := definitions[name]
		if !ok {
			t.Fatalf("view %s listed but not defined", name)
		}
		if !strings.Contains(def.query, "FROM fact_sales") {
			t.Fatalf("view %s does not select from fact_sales", name)
		}
		if def.indexCols == "" {
			t.Fatalf("view %s has no index columns", name)
		}
	}
	if len(definitions) != len(Names) {
		t.Fatalf("%d definitions for %d names", len(definitions), len(Names))
	}
}

func TestRefreshAllPrefersConcurrent(t *testing.T) {
	db := &fakeExecer{}
	if err := RefreshAll(context.Background(), db); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}

	if len(db.stmts) != len(Names) {
		t.Fatalf("got %d statements, want %d", len(db.stmts), len(Names))
	}
	for _, s := range db.stmts {
		if !strings.HasPrefix(s, "REFRESH MATERIALIZED VIEW CONCURRENTLY ") {
			t.Fatalf("unexpected statement %q", s)
		}
	}
}

func TestRefreshAllFallsBackToPlainRefresh(t *testing.T) {
	db := &fakeExecer{failSubstr: "CONCURRENTLY mv_daily_sales_summary"}
	if err := RefreshAll(context.Background(), db); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}

	var fellBack bool
	for _, s := range db.stmts {
		if s == "REFRESH MATERIALIZED VIEW mv_daily_sales_summary" {
			fellBack = true
		}
	}
	if !fellBack {
		t.Fatal("concurrent failure did not fall back to plain refresh")
	}
}

func TestRefreshAllReportsFirstErrorButVisitsAll(t *testing.T) {
	// Both refresh forms fail for every view.
	db := &fakeExecer{failSubstr: "REFRESH MATERIALIZED VIEW"}
	err := RefreshAll(context.Background(), db)
	if err == nil {
		t.Fatal("expected error when every refresh fails")
	}

	// Two attempts (concurrent + plain) per view.
	if len(db.stmts) != 2*len(Names) {
		t.Fatalf("got %d statements, want %d; one failure must not stop the rest", len(db.stmts), 2*len(Names))
	}
}
