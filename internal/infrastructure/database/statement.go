package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"

	sqlite3lib "modernc.org/sqlite/lib"
)

// Statement is one compiled SQL query on one driver connection.
//
// It holds the compiled handle, the current parameter bindings, the open
// cursor (if any) and the result-column names. The connection is not
// owned: it must outlive the statement, and every statement must be
// closed before its connection is.
//
// Thread Safety:
//   - Not safe for concurrent use. Callers serialise access.
type Statement struct {
	conn driver.ConnPrepareContext
	sql  string
	stmt driver.Stmt

	names []string // parameter names by slot, "" for anonymous slots
	args  []driver.NamedValue

	// lazy is set for drivers that defer compilation to the first
	// execution; compiled records that one execution has started.
	lazy     bool
	compiled bool

	rows    driver.Rows
	dest    []driver.Value
	columns []string
	done    bool
}

// PrepareStatement compiles sql against conn.
//
// Parameters:
//   - ctx: Context for cancellation of the compile step
//   - conn: Driver connection; must support PrepareContext
//   - sql: A single SQL statement with optional positional placeholders
//
// Returns:
//   - *Statement: Compiled statement with every parameter bound to NULL
//   - error: *CompileError if the engine rejects the text
func PrepareStatement(ctx context.Context, conn driver.Conn, sql string) (*Statement, error) {
	pc, ok := conn.(driver.ConnPrepareContext)
	if !ok {
		return nil, fmt.Errorf("database: driver connection %T cannot prepare statements", conn)
	}
	s := &Statement{conn: pc}
	if err := s.Prepare(ctx, sql); err != nil {
		return nil, err
	}
	return s, nil
}

// Prepare compiles sql, replacing whatever this statement held before.
// The previous compiled query is finalised and cached column names are
// dropped. On failure the statement is left unprepared.
func (s *Statement) Prepare(ctx context.Context, sql string) error {
	if err := s.finalize(); err != nil {
		return err
	}
	s.sql = sql
	s.columns = nil
	s.done = false
	s.compiled = false

	if strings.TrimSpace(sql) == "" {
		return &CompileError{SQL: sql, Message: "empty statement"}
	}
	// mattn compiles only the first statement and modernc runs them all.
	if hasTrailingStatement(sql) {
		return &CompileError{SQL: sql, Message: "multiple statements (use ExecScript for scripts)"}
	}

	stmt, err := s.conn.PrepareContext(ctx, sql)
	if err != nil {
		return &CompileError{SQL: sql, Message: err.Error(), Err: err}
	}
	s.stmt = stmt
	s.names = parameterNames(sql)

	// modernc reports -1 because it compiles on first execution; fall
	// back to scanning the text.
	n := stmt.NumInput()
	s.lazy = n < 0
	if s.lazy {
		n = len(s.names)
	}
	s.args = make([]driver.NamedValue, n)
	for i := range s.args {
		s.args[i] = driver.NamedValue{Ordinal: i + 1}
		if i < len(s.names) {
			s.args[i].Name = s.names[i]
		}
	}
	return nil
}

// SQL returns the text this statement was compiled from.
func (s *Statement) SQL() string {
	return s.sql
}

// BindParameterCount returns the number of parameter slots in the query.
func (s *Statement) BindParameterCount() int {
	return len(s.args)
}

// BindValue binds v to the 1-based parameter position.
//
// Dispatch follows ValueOf: nil and Null bind NULL, integer kinds bind a
// 64-bit integer, floats bind a double, strings bind text and byte slices
// bind a blob. The engine takes its own copy of text and blobs. Binding
// closes any open cursor so the next Step re-executes with the new values.
func (s *Statement) BindValue(v any, position int) error {
	if s.stmt == nil {
		return ErrClosed
	}
	if position < 1 || position > len(s.args) {
		return &BindError{
			Position: position,
			Reason:   fmt.Sprintf("position out of range (statement has %d parameters)", len(s.args)),
		}
	}
	val, err := ValueOf(v)
	if err != nil {
		return &BindError{Position: position, Reason: err.Error()}
	}
	if err := s.Reset(); err != nil {
		return err
	}
	s.args[position-1].Value = val.driverValue()
	return nil
}

// Bind binds values to positions 1..len(values).
// The number of values must equal BindParameterCount.
func (s *Statement) Bind(values ...any) error {
	if s.stmt == nil {
		return ErrClosed
	}
	if len(values) != len(s.args) {
		return &BindError{
			Reason: fmt.Sprintf("expected %d parameters, got %d", len(s.args), len(values)),
		}
	}
	for i, v := range values {
		if err := s.BindValue(v, i+1); err != nil {
			return err
		}
	}
	return nil
}

// ClearBindings resets every parameter to NULL.
func (s *Statement) ClearBindings() {
	for i := range s.args {
		s.args[i].Value = nil
	}
}

// Columns returns the ordered result-column names.
//
// The names are computed on the first call after Prepare and cached. If
// no cursor is open yet this executes the query, and the following Step
// calls read from that same execution.
func (s *Statement) Columns(ctx context.Context) ([]string, error) {
	if s.stmt == nil {
		return nil, ErrClosed
	}
	if s.columns == nil {
		if err := s.open(ctx); err != nil {
			return nil, err
		}
	}
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out, nil
}

// Step advances to the next result row.
//
// It returns ErrDone once the rows are exhausted and an *EngineError if
// execution fails. After either, Reset must be called before the
// statement runs again. Drivers that compile lazily report invalid SQL
// here, as a *CompileError on the first execution.
func (s *Statement) Step(ctx context.Context) (Row, error) {
	if s.stmt == nil {
		return nil, ErrClosed
	}
	if s.done {
		return nil, ErrDone
	}
	if s.rows == nil {
		if err := s.open(ctx); err != nil {
			s.done = true
			return nil, err
		}
	}

	if err := s.rows.Next(s.dest); err != nil {
		s.done = true
		_ = s.closeRows() //nolint:errcheck // The step error takes precedence
		if errors.Is(err, io.EOF) {
			return nil, ErrDone
		}
		return nil, newEngineError("step", s.sql, err)
	}

	row := make(Row, len(s.columns))
	for i, name := range s.columns {
		v, err := fromDriver(s.dest[i])
		if err != nil {
			s.done = true
			_ = s.closeRows() //nolint:errcheck // The decode error takes precedence
			return nil, newEngineError("decode column "+name, s.sql, err)
		}
		row[name] = v
	}
	return row, nil
}

// Reset closes the open cursor, keeping the compiled query and its
// bindings, so the statement can be executed again.
func (s *Statement) Reset() error {
	s.done = false
	if err := s.closeRows(); err != nil {
		return newEngineError("reset", s.sql, err)
	}
	return nil
}

// Close finalises the compiled query. It is safe to call more than once.
func (s *Statement) Close() error {
	return s.finalize()
}

func (s *Statement) open(ctx context.Context) error {
	q, ok := s.stmt.(driver.StmtQueryContext)
	if !ok {
		return newEngineError("query", s.sql, fmt.Errorf("driver statement %T cannot run queries", s.stmt))
	}
	rows, err := q.QueryContext(ctx, s.args)
	if err != nil {
		if code, ok := engineCode(err); ok && s.lazy && !s.compiled && code == sqlite3lib.SQLITE_ERROR {
			return &CompileError{SQL: s.sql, Message: err.Error(), Err: err}
		}
		return newEngineError("query", s.sql, err)
	}
	s.rows = rows
	s.compiled = true

	cols := rows.Columns()
	if cols == nil {
		cols = []string{}
	}
	// A schema change recompiles the query, so a cached "SELECT *" can
	// come back with different names as well as a different count.
	s.columns = cols
	s.dest = make([]driver.Value, len(cols))
	return nil
}

func (s *Statement) closeRows() error {
	if s.rows == nil {
		return nil
	}
	err := s.rows.Close()
	s.rows = nil
	return err
}

func (s *Statement) finalize() error {
	if s.stmt == nil {
		return nil
	}
	rowsErr := s.closeRows()
	stmtErr := s.stmt.Close()
	s.stmt = nil
	s.args = nil
	s.names = nil
	s.done = false
	if err := errors.Join(rowsErr, stmtErr); err != nil {
		return newEngineError("finalize", s.sql, err)
	}
	return nil
}
