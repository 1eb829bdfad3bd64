package database

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Adapter is the storage contract the record layer is written against.
//
// An Adapter owns exactly one connection. Implementations are not required
// to be safe for concurrent use; wrap one with Synchronized when several
// goroutines share it.
type Adapter interface {
	// Query runs sql with positional params and returns every result row,
	// in result order. Statements that produce no rows return an empty,
	// non-nil slice.
	Query(ctx context.Context, sql string, params ...any) ([]Row, error)

	// ColumnsForTable returns the table's column names in declaration order.
	ColumnsForTable(ctx context.Context, table string) ([]string, error)

	// TableInfo returns full column descriptors for the table.
	TableInfo(ctx context.Context, table string) ([]Column, error)

	// LastInsertID returns the rowid of the most recent successful INSERT
	// on this connection, or 0 if there has been none.
	LastInsertID(ctx context.Context) (int64, error)

	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	InTransaction() bool

	HealthCheck(ctx context.Context) error
	Close() error
}

// Affinity is SQLite's type affinity for a declared column type.
type Affinity string

const (
	AffinityInteger Affinity = "integer"
	AffinityText    Affinity = "text"
	AffinityBlob    Affinity = "blob"
	AffinityReal    Affinity = "real"
	AffinityNumeric Affinity = "numeric"
)

// AffinityOf derives the affinity of a declared column type using the
// engine's rules, checked in order.
func AffinityOf(declared string) Affinity {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "INT"):
		return AffinityInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return AffinityText
	case t == "", strings.Contains(t, "BLOB"):
		return AffinityBlob
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return AffinityReal
	default:
		return AffinityNumeric
	}
}

// Column describes one table column as reported by schema introspection.
type Column struct {
	Name         string   `json:"name"`
	DeclaredType string   `json:"declared_type"`
	Affinity     Affinity `json:"affinity"`
	NotNull      bool     `json:"not_null"`
	PrimaryKey   bool     `json:"primary_key"`
	Default      Value    `json:"default"` // default expression text, or NULL
}

// QueryEvent describes one completed adapter operation.
type QueryEvent struct {
	// Op is the adapter operation: query, exec, begin, commit or rollback.
	Op string

	// Verb is the leading SQL keyword in upper case (SELECT, INSERT, ...).
	Verb string

	SQL      string
	Duration time.Duration
	Rows     int
	Err      error
}

// QueryTracer observes adapter operations.
// ObserveQuery is called synchronously after each operation completes and
// must not call back into the adapter.
type QueryTracer interface {
	ObserveQuery(QueryEvent)
}

// QueryTracerFunc adapts a function to QueryTracer.
type QueryTracerFunc func(QueryEvent)

// ObserveQuery calls f(ev).
func (f QueryTracerFunc) ObserveQuery(ev QueryEvent) { f(ev) }

type multiTracer []QueryTracer

func (m multiTracer) ObserveQuery(ev QueryEvent) {
	for _, t := range m {
		t.ObserveQuery(ev)
	}
}

// Tracers combines several tracers into one. Nil entries are skipped.
func Tracers(tracers ...QueryTracer) QueryTracer {
	var m multiTracer
	for _, t := range tracers {
		if t != nil {
			m = append(m, t)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

// StatementVerb returns the leading keyword of sql in upper case, skipping
// whitespace and comments. It returns "" when there is none.
func StatementVerb(sql string) string {
	s := sql
	for {
		s = strings.TrimSpace(s)
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
				continue
			}
			return ""
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = s[i+2:]
				continue
			}
			return ""
		}
		break
	}
	end := 0
	for end < len(s) && isIdentByte(s[end]) {
		end++
	}
	return strings.ToUpper(s[:end])
}

// Transactor is an Adapter that can run a function inside a transaction.
type Transactor interface {
	Adapter
	Transaction(ctx context.Context, fn func(Adapter) error) error
}

// RunInTransaction begins a transaction on a, runs fn and commits when fn
// returns nil. Any error from fn rolls the transaction back and is
// returned together with a rollback failure, if one occurs.
func RunInTransaction(ctx context.Context, a Adapter, fn func(Adapter) error) error {
	if err := a.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = a.Rollback(ctx) //nolint:errcheck // Re-panicking below
			panic(p)
		}
	}()
	if err := fn(a); err != nil {
		if rbErr := a.Rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return a.Commit(ctx)
}
