package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/objrecord/internal/infrastructure/database"
	"github.com/nerrad567/objrecord/internal/record"
)

func TestObserveQuery(t *testing.T) {
	m := New()

	m.ObserveQuery(database.QueryEvent{Op: "query", Verb: "SELECT", Duration: time.Millisecond, Rows: 3})
	m.ObserveQuery(database.QueryEvent{Op: "query", Verb: "SELECT", Rows: 2})
	m.ObserveQuery(database.QueryEvent{Op: "query", Verb: "INSERT", Err: errors.New("constraint")})
	m.ObserveQuery(database.QueryEvent{Op: "begin"})

	tests := []struct {
		name   string
		labels []string
		want   float64
	}{
		{"select ok", []string{"query", "SELECT", Ok}, 2},
		{"insert failed", []string{"query", "INSERT", Fail}, 1},
		{"begin without verb", []string{"begin", "NONE", Ok}, 1},
		{"unseen", []string{"exec", "DELETE", Ok}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues(tt.labels...))
			if got != tt.want {
				t.Errorf("QueriesTotal%v = %v, want %v", tt.labels, got, tt.want)
			}
		})
	}

	if got := testutil.ToFloat64(m.QueryRowsTotal); got != 5 {
		t.Errorf("QueryRowsTotal = %v, want 5", got)
	}
	if got := testutil.CollectAndCount(m.QueryDurationSeconds); got != 3 {
		t.Errorf("QueryDurationSeconds series = %d, want 3", got)
	}
}

func TestRecordChanged(t *testing.T) {
	m := New()
	ctx := context.Background()

	for _, kind := range []record.ChangeKind{record.ChangeCreated, record.ChangeCreated, record.ChangeDestroyed} {
		if err := m.RecordChanged(ctx, record.Change{Table: "widgets", Kind: kind}); err != nil {
			t.Fatalf("RecordChanged() error = %v", err)
		}
	}

	if got := testutil.ToFloat64(m.RecordChangesTotal.WithLabelValues("widgets", "created")); got != 2 {
		t.Errorf("created = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.RecordChangesTotal.WithLabelValues("widgets", "destroyed")); got != 1 {
		t.Errorf("destroyed = %v, want 1", got)
	}
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()

	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("second Register() should fail with duplicate collectors")
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	m.ObserveQuery(database.QueryEvent{Op: "query", Verb: "SELECT", Rows: 1})

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{QueriesTotalKey, QueryDurationSecondsKey, QueryRowsTotalKey} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %s", want)
		}
	}
}

// TestTracerOnAdapter checks the collectors against a real adapter.
func TestTracerOnAdapter(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenInMemory(ctx)
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	defer db.Close()

	m := New()
	db.SetTracer(m)

	if _, err := db.Query(ctx, "SELECT 1 UNION ALL SELECT 2"); err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if _, err := db.Query(ctx, "SELECT * FROM missing"); err == nil {
		t.Fatal("Query() on missing table should fail")
	}

	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("query", "SELECT", Ok)); got != 1 {
		t.Errorf("ok selects = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("query", "SELECT", Fail)); got != 1 {
		t.Errorf("failed selects = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueryRowsTotal); got != 2 {
		t.Errorf("rows = %v, want 2", got)
	}
}
