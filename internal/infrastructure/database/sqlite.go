package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	msqlite "modernc.org/sqlite"
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// InMemoryPath opens a transient database with no backing file.
	InMemoryPath = ":memory:"

	// DefaultStatementCacheSize is the cache size used by OpenInMemory.
	DefaultStatementCacheSize = 64
)

// Driver names accepted in Config.Driver.
const (
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3
	DriverModernc = "sqlite"  // modernc.org/sqlite
)

// Config contains database configuration options.
// These map to the database section of config.yaml.
type Config struct {
	// Path is the filesystem path to the SQLite database file, or
	// InMemoryPath. The directory will be created if it doesn't exist.
	Path string

	// Driver selects the engine binding. Empty means DriverMattn.
	Driver string

	// WALMode enables Write-Ahead Logging. Ignored for in-memory databases.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	BusyTimeout int

	// ForeignKeys enables foreign key enforcement.
	ForeignKeys bool

	// StatementCacheSize bounds the prepared statements kept per connection.
	// Zero disables caching: every query prepares and finalises its own.
	StatementCacheSize int
}

// SQLiteAdapter is an Adapter over one SQLite connection.
//
// Thread Safety:
//   - Not safe for concurrent use. Wrap with Synchronized to share it.
type SQLiteAdapter struct {
	conn       driver.Conn
	path       string
	driverName string

	tx     driver.Tx
	cache  *statementCache // nil when caching is disabled
	tracer QueryTracer

	queries uint64
	closed  bool
}

// Stats is a snapshot of adapter counters.
type Stats struct {
	Driver           string `json:"driver"`
	CachedStatements int    `json:"cached_statements"`
	Queries          uint64 `json:"queries"`
	InTransaction    bool   `json:"in_transaction"`
}

var (
	_ Adapter    = (*SQLiteAdapter)(nil)
	_ Transactor = (*SQLiteAdapter)(nil)
)

// Open opens or creates the database described by cfg.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens one driver connection with busy timeout, foreign keys and WAL
//  3. Verifies the connection with SELECT 1
//  4. Sets file permissions (0600)
//
// Parameters:
//   - ctx: Context for the connectivity check
//   - cfg: Database configuration
//
// Returns:
//   - *SQLiteAdapter: Connected adapter
//   - error: *ConnectionError if the database cannot be opened
func Open(ctx context.Context, cfg Config) (*SQLiteAdapter, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, &ConnectionError{Path: cfg.Path, Err: errors.New("path is required")}
	}
	inMemory := path == InMemoryPath

	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
			return nil, &ConnectionError{Path: path, Err: fmt.Errorf("creating database directory: %w", err)}
		}
	}

	driverName := cfg.Driver
	if driverName == "" {
		driverName = DriverMattn
	}
	drv, err := engineDriver(driverName)
	if err != nil {
		return nil, &ConnectionError{Path: path, Err: err}
	}

	conn, err := drv.Open(buildDSN(driverName, path, cfg))
	if err != nil {
		return nil, &ConnectionError{Path: path, Err: fmt.Errorf("opening database: %w", err)}
	}
	if _, ok := conn.(driver.ConnBeginTx); !ok {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, &ConnectionError{Path: path, Err: fmt.Errorf("driver %q does not support transactions", driverName)}
	}

	a := &SQLiteAdapter{
		conn:       conn,
		path:       path,
		driverName: driverName,
	}
	if cfg.StatementCacheSize > 0 {
		if a.cache, err = newStatementCache(cfg.StatementCacheSize); err != nil {
			conn.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, &ConnectionError{Path: path, Err: err}
		}
	}

	// Verify connection
	checkCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := a.HealthCheck(checkCtx); err != nil {
		a.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, &ConnectionError{Path: path, Err: fmt.Errorf("verifying database connection: %w", err)}
	}

	if !inMemory {
		// Set file permissions (owner read/write only)
		_ = os.Chmod(path, filePermissions) //nolint:errcheck // File may be created on first write
	}

	return a, nil
}

// OpenInMemory opens a transient database that lives as long as the
// adapter, using the default driver with foreign keys on.
func OpenInMemory(ctx context.Context) (*SQLiteAdapter, error) {
	return Open(ctx, Config{
		Path:               InMemoryPath,
		Driver:             DriverMattn,
		ForeignKeys:        true,
		StatementCacheSize: DefaultStatementCacheSize,
	})
}

func engineDriver(name string) (driver.Driver, error) {
	switch name {
	case DriverMattn:
		return &sqlite3.SQLiteDriver{}, nil
	case DriverModernc:
		return &msqlite.Driver{}, nil
	default:
		return nil, fmt.Errorf("unknown driver %q", name)
	}
}

// buildDSN renders the connection string in each driver's dialect.
// See: https://github.com/mattn/go-sqlite3#connection-string
func buildDSN(driverName, path string, cfg Config) string {
	inMemory := path == InMemoryPath
	busyMS := cfg.BusyTimeout * msPerSecond

	var params []string
	switch driverName {
	case DriverModernc:
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", busyMS))
		if cfg.ForeignKeys {
			params = append(params, "_pragma=foreign_keys(1)")
		} else {
			params = append(params, "_pragma=foreign_keys(0)")
		}
		if cfg.WALMode && !inMemory {
			params = append(params, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)")
		}
	default:
		params = append(params, fmt.Sprintf("_busy_timeout=%d", busyMS))
		if cfg.ForeignKeys {
			params = append(params, "_foreign_keys=on")
		} else {
			params = append(params, "_foreign_keys=off")
		}
		if cfg.WALMode && !inMemory {
			params = append(params, "_journal_mode=WAL", "_synchronous=NORMAL")
		}
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

// Path returns the database path, or InMemoryPath.
func (a *SQLiteAdapter) Path() string {
	return a.path
}

// Driver returns the engine driver name.
func (a *SQLiteAdapter) Driver() string {
	return a.driverName
}

// SetTracer installs t to observe every operation. Nil removes it.
func (a *SQLiteAdapter) SetTracer(t QueryTracer) {
	a.tracer = t
}

// Stats returns a snapshot of the adapter counters.
func (a *SQLiteAdapter) Stats() Stats {
	s := Stats{
		Driver:        a.driverName,
		Queries:       a.queries,
		InTransaction: a.tx != nil,
	}
	if a.cache != nil {
		s.CachedStatements = a.cache.len()
	}
	return s
}

// Query runs sql with params bound positionally and returns every row.
func (a *SQLiteAdapter) Query(ctx context.Context, sql string, params ...any) ([]Row, error) {
	start := time.Now()
	rows, err := a.query(ctx, sql, params)
	a.observe("query", sql, start, len(rows), err)
	return rows, err
}

func (a *SQLiteAdapter) query(ctx context.Context, sql string, params []any) ([]Row, error) {
	if a.closed {
		return nil, ErrClosed
	}
	a.queries++

	stmt, release, err := a.acquire(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := stmt.Bind(params...); err != nil {
		return nil, err
	}

	rows := make([]Row, 0)
	for {
		row, err := stmt.Step(ctx)
		if errors.Is(err, ErrDone) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// acquire returns a statement for sql and the function that releases it.
func (a *SQLiteAdapter) acquire(ctx context.Context, sql string) (*Statement, func(), error) {
	if a.cache != nil {
		return a.cache.acquire(ctx, a.conn, sql)
	}
	stmt, err := PrepareStatement(ctx, a.conn, sql)
	if err != nil {
		return nil, nil, err
	}
	return stmt, func() {
		_ = stmt.Close() //nolint:errcheck // Errors already surfaced by Step
	}, nil
}

// ExecScript runs a script of one or more semicolon-separated statements.
// No parameters are bound and no rows are returned.
func (a *SQLiteAdapter) ExecScript(ctx context.Context, script string) error {
	start := time.Now()
	err := a.exec(ctx, script)
	a.observe("exec", script, start, 0, err)
	return err
}

func (a *SQLiteAdapter) exec(ctx context.Context, script string) error {
	if a.closed {
		return ErrClosed
	}
	if strings.TrimSpace(script) == "" {
		return nil
	}
	execer, ok := a.conn.(driver.ExecerContext)
	if !ok {
		return newEngineError("exec", script, fmt.Errorf("driver %q cannot execute scripts", a.driverName))
	}
	a.queries++
	if _, err := execer.ExecContext(ctx, script, nil); err != nil {
		return newEngineError("exec", script, err)
	}
	return nil
}

// ColumnsForTable returns the table's column names in declaration order.
func (a *SQLiteAdapter) ColumnsForTable(ctx context.Context, table string) ([]string, error) {
	cols, err := a.TableInfo(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// TableInfo returns the column descriptors of table.
// A table with no columns does not exist and yields a *SchemaError.
func (a *SQLiteAdapter) TableInfo(ctx context.Context, table string) ([]Column, error) {
	return tableInfo(ctx, a, table)
}

// tableInfo reads column descriptors through any Adapter.
func tableInfo(ctx context.Context, a Adapter, table string) ([]Column, error) {
	rows, err := a.Query(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`,
		table)
	if err != nil {
		return nil, fmt.Errorf("reading schema of %q: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, &SchemaError{Table: table, Reason: "no such table"}
	}

	cols := make([]Column, 0, len(rows))
	for _, r := range rows {
		name, _ := r["name"].Text()
		declared, _ := r["type"].Text()
		notNull, _ := r["notnull"].Int64()
		pk, _ := r["pk"].Int64()
		cols = append(cols, Column{
			Name:         name,
			DeclaredType: declared,
			Affinity:     AffinityOf(declared),
			NotNull:      notNull != 0,
			PrimaryKey:   pk > 0,
			Default:      r["dflt_value"],
		})
	}
	return cols, nil
}

// LastInsertID returns the rowid of the most recent successful INSERT.
func (a *SQLiteAdapter) LastInsertID(ctx context.Context) (int64, error) {
	rows, err := a.Query(ctx, "SELECT last_insert_rowid() AS id")
	if err != nil {
		return 0, fmt.Errorf("reading last insert id: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	id, _ := rows[0]["id"].Int64()
	return id, nil
}

// Begin starts a transaction. Transactions do not nest.
func (a *SQLiteAdapter) Begin(ctx context.Context) error {
	start := time.Now()
	err := a.begin(ctx)
	a.observe("begin", "BEGIN", start, 0, err)
	return err
}

func (a *SQLiteAdapter) begin(ctx context.Context) error {
	if a.closed {
		return ErrClosed
	}
	if a.tx != nil {
		return &TransactionStateError{Op: "begin", InTransaction: true}
	}
	tx, err := a.conn.(driver.ConnBeginTx).BeginTx(ctx, driver.TxOptions{})
	if err != nil {
		return &TransactionError{Op: "begin", Err: err}
	}
	a.tx = tx
	return nil
}

// Commit commits the open transaction. The in-transaction flag clears
// even when the commit fails.
func (a *SQLiteAdapter) Commit(ctx context.Context) error {
	start := time.Now()
	err := a.finish(ctx, "commit")
	a.observe("commit", "COMMIT", start, 0, err)
	return err
}

// Rollback abandons the open transaction. The in-transaction flag clears
// even when the rollback fails.
func (a *SQLiteAdapter) Rollback(ctx context.Context) error {
	start := time.Now()
	err := a.finish(ctx, "rollback")
	a.observe("rollback", "ROLLBACK", start, 0, err)
	return err
}

func (a *SQLiteAdapter) finish(ctx context.Context, op string) error {
	if a.closed {
		return ErrClosed
	}
	if a.tx == nil {
		return &TransactionStateError{Op: op, InTransaction: false}
	}
	tx := a.tx
	a.tx = nil

	var err error
	if op == "commit" {
		err = tx.Commit()
	} else {
		err = tx.Rollback()
	}
	if err == nil {
		return nil
	}

	if op == "commit" {
		// A failed COMMIT can leave the engine inside the transaction.
		_ = a.exec(ctx, "ROLLBACK") //nolint:errcheck // Fails harmlessly when nothing is open
	}
	return &TransactionError{Op: op, Err: err}
}

// InTransaction reports whether a transaction is open.
func (a *SQLiteAdapter) InTransaction() bool {
	return a.tx != nil
}

// Transaction runs fn inside a transaction on this adapter.
// See RunInTransaction.
func (a *SQLiteAdapter) Transaction(ctx context.Context, fn func(Adapter) error) error {
	return RunInTransaction(ctx, a, fn)
}

// HealthCheck verifies the database is accessible and functioning.
func (a *SQLiteAdapter) HealthCheck(ctx context.Context) error {
	rows, err := a.Query(ctx, "SELECT 1 AS ok")
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if len(rows) != 1 {
		return fmt.Errorf("database health check failed: got %d rows", len(rows))
	}
	return nil
}

// Close finalises every cached statement, rolls back an open transaction
// and closes the connection. Further calls return nil.
func (a *SQLiteAdapter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	if a.cache != nil {
		a.cache.purge()
	}

	var errs []error
	if a.tx != nil {
		if err := a.tx.Rollback(); err != nil {
			errs = append(errs, &TransactionError{Op: "rollback", Err: err})
		}
		a.tx = nil
	}
	if err := a.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	if len(errs) > 0 {
		return &ConnectionError{Path: a.path, Err: errors.Join(errs...)}
	}
	return nil
}

func (a *SQLiteAdapter) observe(op, sql string, start time.Time, rows int, err error) {
	if a.tracer == nil {
		return
	}
	a.tracer.ObserveQuery(QueryEvent{
		Op:       op,
		Verb:     StatementVerb(sql),
		SQL:      sql,
		Duration: time.Since(start),
		Rows:     rows,
		Err:      err,
	})
}
