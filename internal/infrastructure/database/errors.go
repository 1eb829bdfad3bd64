package database

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Sentinel errors. Every typed error below matches exactly one of these
// via errors.Is.
var (
	ErrConnection       = errors.New("database: connection failed")
	ErrCompile          = errors.New("database: invalid sql")
	ErrBind             = errors.New("database: bind failed")
	ErrEngine           = errors.New("database: execution failed")
	ErrSchema           = errors.New("database: schema lookup failed")
	ErrTransactionState = errors.New("database: invalid transaction state")
	ErrTransaction      = errors.New("database: transaction failed")

	// ErrDone is returned by Statement.Step when no rows remain.
	// It is not a failure.
	ErrDone = errors.New("database: no more rows")

	// ErrClosed is returned when a closed adapter or statement is used.
	ErrClosed = errors.New("database: closed")
)

// causes builds the Unwrap chain for a typed error, skipping a nil cause.
func causes(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, cause}
}

// ConnectionError reports a failure to open or close a database.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database: connection to %q: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() []error { return causes(ErrConnection, e.Err) }

// CompileError reports SQL text the engine refused to compile.
type CompileError struct {
	SQL     string
	Message string
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("database: compiling %q: %s", e.SQL, e.Message)
}

func (e *CompileError) Unwrap() []error { return causes(ErrCompile, e.Err) }

// BindError reports a parameter that could not be bound.
// Position is 1-based; zero means the parameter list as a whole
// (a count mismatch).
type BindError struct {
	Position int
	Reason   string
}

func (e *BindError) Error() string {
	if e.Position == 0 {
		return "database: bind: " + e.Reason
	}
	return fmt.Sprintf("database: bind parameter %d: %s", e.Position, e.Reason)
}

func (e *BindError) Unwrap() error { return ErrBind }

// EngineError reports a runtime failure inside the engine: constraint
// violations, I/O errors, busy or locked databases.
type EngineError struct {
	Op   string
	SQL  string
	Code int // primary SQLite result code, 0 when unknown
	Err  error
}

func (e *EngineError) Error() string {
	if e.SQL == "" {
		return fmt.Sprintf("database: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("database: %s %q: %v", e.Op, e.SQL, e.Err)
}

func (e *EngineError) Unwrap() []error { return causes(ErrEngine, e.Err) }

func newEngineError(op, sql string, err error) *EngineError {
	code, _ := engineCode(err)
	return &EngineError{Op: op, SQL: sql, Code: code, Err: err}
}

// SchemaError reports introspection against a table that does not exist,
// or a column the table does not have.
type SchemaError struct {
	Table  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("database: table %q: %s", e.Table, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// TransactionStateError reports a transaction call made in the wrong state:
// Begin inside a transaction, or Commit/Rollback outside one.
type TransactionStateError struct {
	Op            string
	InTransaction bool
}

func (e *TransactionStateError) Error() string {
	if e.InTransaction {
		return fmt.Sprintf("database: cannot %s: transaction already active", e.Op)
	}
	return fmt.Sprintf("database: cannot %s: no transaction active", e.Op)
}

func (e *TransactionStateError) Unwrap() error { return ErrTransactionState }

// TransactionError reports an engine failure while beginning, committing
// or rolling back.
type TransactionError struct {
	Op  string
	Err error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("database: %s transaction: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() []error { return causes(ErrTransaction, e.Err) }

// engineCode extracts the primary SQLite result code from a driver error.
func engineCode(err error) (int, bool) {
	var mattnErr sqlite3.Error
	if errors.As(err, &mattnErr) {
		return int(mattnErr.Code), true
	}
	var moderncErr *msqlite.Error
	if errors.As(err, &moderncErr) {
		return moderncErr.Code() & 0xff, true
	}
	return 0, false
}

// IsConstraint reports whether err was caused by a constraint violation
// (unique, primary key, foreign key, not null or check).
func IsConstraint(err error) bool {
	code, ok := engineCode(err)
	return ok && code == sqlite3lib.SQLITE_CONSTRAINT
}

// IsBusy reports whether err was caused by a busy or locked database.
// Such failures are transient; retrying is left to the caller.
func IsBusy(err error) bool {
	code, ok := engineCode(err)
	return ok && (code == sqlite3lib.SQLITE_BUSY || code == sqlite3lib.SQLITE_LOCKED)
}
