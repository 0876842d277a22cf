/*-------------------------------------------------------------------------
 *
 * pgEdge SQL Gateway
 *
 * Copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package audit

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "audit", "audit.db"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Time: base, Tool: "query", Role: "read", SQL: "SELECT 1", Outcome: OutcomeOK, RowCount: 1},
		{Time: base.Add(time.Second), Tool: "query", Role: "read", SQL: "DROP TABLE users", Outcome: "RoleMismatch",
			Message: "statement is write"},
		{Time: base.Add(2 * time.Second), Tool: "query", Client: "ci", Role: "write", SQL: "DELETE FROM t", Outcome: OutcomeOK, AffectedRows: 3},
	}
	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(got))
	}
	if got[0].SQL != "DELETE FROM t" || got[0].AffectedRows != 3 || got[0].Client != "ci" {
		t.Errorf("newest entry = %+v", got[0])
	}
	if got[1].Outcome != "RoleMismatch" || got[1].Message == "" {
		t.Errorf("second entry = %+v", got[1])
	}
	for _, e := range got {
		if e.ID == "" || e.Fingerprint == "" {
			t.Errorf("entry missing generated fields: %+v", e)
		}
	}

	counts, err := store.CountByOutcome(ctx)
	if err != nil {
		t.Fatalf("CountByOutcome() error = %v", err)
	}
	if counts[OutcomeOK] != 2 || counts["RoleMismatch"] != 1 {
		t.Errorf("CountByOutcome() = %v", counts)
	}
}

func TestRecentEmpty(t *testing.T) {
	got, err := newTestStore(t).Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Recent() = %v, want empty slice", got)
	}
}

func TestConcurrentRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Record(ctx, Entry{Tool: "query", SQL: "SELECT 1", Outcome: OutcomeOK}); err != nil {
				t.Errorf("Record() error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := store.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 20 {
		t.Errorf("Recent() returned %d entries, want 20", len(got))
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.Record(context.Background(), Entry{Tool: "query", SQL: "SELECT 2", Outcome: OutcomeOK}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	store.Close()

	store, err = NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() reopen error = %v", err)
	}
	defer store.Close()
	got, err := store.Recent(context.Background(), 10)
	if err != nil || len(got) != 1 || got[0].SQL != "SELECT 2" {
		t.Errorf("Recent() after reopen = %v, %v", got, err)
	}
	if store.Path() != path {
		t.Errorf("Path() = %q, want %q", store.Path(), path)
	}
}

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"constants", "SELECT * FROM t WHERE id = 1", "select * from t where id = 42", true},
		{"strings", "SELECT * FROM t WHERE n = 'a'", "SELECT * FROM t WHERE n = 'bbb'", true},
		{"spacing and comments", "SELECT  a\nFROM t -- note", "SELECT a FROM t", true},
		{"terminator", "SELECT 1;", "SELECT 1", true},
		{"different table", "SELECT * FROM a", "SELECT * FROM b", false},
		{"quoted identifier case", `SELECT "A" FROM t`, `SELECT "a" FROM t`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fa, fb := Fingerprint(tt.a), Fingerprint(tt.b)
			if len(fa) != 16 {
				t.Errorf("Fingerprint() = %q, want 16 hex digits", fa)
			}
			if (fa == fb) != tt.same {
				t.Errorf("Fingerprint(%q)=%s, Fingerprint(%q)=%s, same=%v want %v", tt.a, fa, tt.b, fb, fa == fb, tt.same)
			}
		})
	}
}
