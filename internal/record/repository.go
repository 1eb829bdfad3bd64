package record

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nerrad567/objrecord/internal/infrastructure/database"
)

// DefaultPrimaryKey is the primary-key column used unless overridden.
const DefaultPrimaryKey = "id"

// Repository maps one entity kind onto one table through an Adapter.
//
// The table name is derived once, at construction. Column descriptors are
// read from the adapter on first use and cached for the repository's
// lifetime; a failed lookup is retried on the next call.
//
// Thread Safety:
//   - The repository itself is safe for concurrent use. Whether queries
//     may run concurrently depends on the adapter; see database.Synchronized.
//   - Entities are not: one goroutine should own each entity value.
type Repository[T Entity] struct {
	db       database.Adapter
	newFn    func() T
	table    string
	pk       string
	observer Observer
	logger   Logger

	mu      sync.Mutex
	columns []database.Column
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	table    string
	pk       string
	observer Observer
	logger   Logger
}

// WithTableName overrides the conventional table name.
func WithTableName(name string) Option {
	return func(o *options) { o.table = name }
}

// WithPrimaryKey overrides the primary-key column name.
func WithPrimaryKey(column string) Option {
	return func(o *options) { o.pk = column }
}

// WithObserver installs an observer notified after each Save and Destroy.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLogger sets the logger used for observer failures and debug output.
func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewRepository creates a repository for the entity kind built by newFn.
//
// Parameters:
//   - db: Adapter every query goes through; the repository does not own it
//   - newFn: Returns a fresh, zero entity, e.g. func() *Widget { return &Widget{} }
//   - opts: Optional overrides
//
// Returns:
//   - *Repository[T]: Repository ready for use
func NewRepository[T Entity](db database.Adapter, newFn func() T, opts ...Option) *Repository[T] {
	o := options{pk: DefaultPrimaryKey}
	for _, opt := range opts {
		opt(&o)
	}
	if o.table == "" {
		o.table = tableNameFor(newFn())
	}
	if o.logger == nil {
		o.logger = nopLogger{}
	}
	return &Repository[T]{
		db:       db,
		newFn:    newFn,
		table:    o.table,
		pk:       o.pk,
		observer: o.observer,
		logger:   o.logger,
	}
}

// TableName returns the table this repository maps.
func (r *Repository[T]) TableName() string {
	return r.table
}

// PrimaryKeyColumnName returns the primary-key column name.
func (r *Repository[T]) PrimaryKeyColumnName() string {
	return r.pk
}

// Connection returns the adapter the repository queries through.
func (r *Repository[T]) Connection() database.Adapter {
	return r.db
}

// Columns returns the table's column descriptors, reading them from the
// adapter on first use.
func (r *Repository[T]) Columns(ctx context.Context) ([]database.Column, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.columns == nil {
		cols, err := r.db.TableInfo(ctx, r.table)
		if err != nil {
			return nil, fmt.Errorf("reading columns of %s: %w", r.table, err)
		}
		r.columns = cols
	}
	out := make([]database.Column, len(r.columns))
	copy(out, r.columns)
	return out, nil
}

// ColumnNames returns the table's column names in declaration order.
func (r *Repository[T]) ColumnNames(ctx context.Context) ([]string, error) {
	cols, err := r.Columns(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// Build returns a new, unsaved entity holding a copy of attrs.
func (r *Repository[T]) Build(attrs Attributes) T {
	e := r.newFn()
	base := e.Base()
	*base = Record{attrs: attrs.Clone(), state: StateNew}
	return e
}

// Find returns the entity whose primary key is id.
// If, against expectations, several rows match, the first is returned.
func (r *Repository[T]) Find(ctx context.Context, id int64) (T, error) {
	var zero T
	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", quoteIdent(r.table), quoteIdent(r.pk))
	rows, err := r.db.Query(ctx, sql, id)
	if err != nil {
		return zero, fmt.Errorf("finding %s %d: %w", r.table, id, err)
	}
	if len(rows) == 0 {
		return zero, &NotFoundError{Table: r.table, ID: id}
	}
	return r.hydrate(ctx, rows[0])
}

// FindAll returns every row of the table, in the order the engine yields them.
func (r *Repository[T]) FindAll(ctx context.Context) ([]T, error) {
	return r.FindWithSQL(ctx, "SELECT * FROM "+quoteIdent(r.table))
}

// FindAllWithConditions returns the rows matching conditions, a SQL
// boolean expression that may contain positional placeholders for params.
// Empty conditions match every row.
func (r *Repository[T]) FindAllWithConditions(ctx context.Context, conditions string, params ...any) ([]T, error) {
	if strings.TrimSpace(conditions) == "" {
		return r.FindAll(ctx)
	}
	return r.FindWithSQL(ctx, "SELECT * FROM "+quoteIdent(r.table)+" WHERE "+conditions, params...)
}

// FindWithSQL runs arbitrary SQL and hydrates one entity per result row.
//
// Columns the table does not have are ignored. Every row must carry the
// primary-key column as an integer, plus whatever the entity's FromRow
// requires; otherwise a *HydrationError is returned. Aggregates therefore
// select a key (for example MAX(id) AS id); keyless results are read
// through Connection().Query.
func (r *Repository[T]) FindWithSQL(ctx context.Context, sql string, params ...any) ([]T, error) {
	rows, err := r.db.Query(ctx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", r.table, err)
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		e, err := r.hydrate(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// hydrate builds a persisted entity from row.
func (r *Repository[T]) hydrate(ctx context.Context, row database.Row) (T, error) {
	var zero T

	pkValue, ok := row[r.pk]
	if !ok {
		return zero, &HydrationError{Table: r.table, Column: r.pk, Reason: "missing primary key column"}
	}
	id, ok := pkValue.Int64()
	if !ok {
		return zero, &HydrationError{
			Table:  r.table,
			Column: r.pk,
			Reason: fmt.Sprintf("primary key is %s, not integer", pkValue.Kind()),
		}
	}

	cols, err := r.ColumnNames(ctx)
	if err != nil {
		return zero, err
	}
	projected := make(database.Row, len(cols))
	for _, c := range cols {
		if v, ok := row[c]; ok {
			projected[c] = v
		}
	}

	e := r.newFn()
	base := e.Base()
	*base = Record{attrs: Attributes(projected).Clone()}
	base.persisted(id, r.pk)

	if err := e.FromRow(projected); err != nil {
		var hydErr *HydrationError
		if errors.As(err, &hydErr) && hydErr.Table == "" {
			hydErr.Table = r.table
		}
		return zero, fmt.Errorf("hydrating %s %d: %w", r.table, id, err)
	}
	// FromRow may have replaced the attributes; the key must survive.
	base.persisted(id, r.pk)
	return e, nil
}

// Save writes e to storage.
//
// A new entity is INSERTed with all of its attributes and becomes
// persisted with the key the engine assigned, or the explicit integer key
// it already carried. A persisted entity is UPDATEd in full, keyed by its
// primary key. On failure the entity is left exactly as it was.
func (r *Repository[T]) Save(ctx context.Context, e T) error {
	base := e.Base()
	switch base.state {
	case StateNew:
		return r.insert(ctx, base)
	case StatePersisted:
		return r.update(ctx, base)
	default:
		return &StateError{Table: r.table, Op: "save", State: base.state}
	}
}

func (r *Repository[T]) insert(ctx context.Context, base *Record) error {
	cols, err := r.ColumnNames(ctx)
	if err != nil {
		return err
	}
	names, values, err := r.writable(base.attrs, cols, false)
	if err != nil {
		return err
	}

	var sql string
	if len(names) == 0 {
		sql = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", quoteIdent(r.table))
	} else {
		sql = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(r.table), strings.Join(names, ", "), placeholders(len(names)))
	}

	explicit, hasExplicit := base.attrs[r.pk].Int64()

	var id int64
	err = database.Exclusive(r.db, func(db database.Adapter) error {
		if _, err := db.Query(ctx, sql, values...); err != nil {
			return err
		}
		if hasExplicit {
			id = explicit
			return nil
		}
		var err error
		id, err = db.LastInsertID(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", r.table, err)
	}

	base.persisted(id, r.pk)
	r.logger.Debug("record created", "table", r.table, "id", id)
	r.notify(ctx, base, ChangeCreated)
	return nil
}

func (r *Repository[T]) update(ctx context.Context, base *Record) error {
	cols, err := r.ColumnNames(ctx)
	if err != nil {
		return err
	}
	names, values, err := r.writable(base.attrs, cols, true)
	if err != nil {
		return err
	}

	assignments := make([]string, len(names))
	for i, n := range names {
		assignments[i] = n + " = ?"
	}
	if len(assignments) == 0 {
		// Nothing but the key: touch the row so existence is still checked.
		assignments = []string{quoteIdent(r.pk) + " = ?"}
		values = []any{base.pk}
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quoteIdent(r.table), strings.Join(assignments, ", "), quoteIdent(r.pk))
	values = append(values, base.pk)

	if err := r.modify(ctx, sql, values, base.pk); err != nil {
		return fmt.Errorf("updating %s %d: %w", r.table, base.pk, err)
	}

	r.logger.Debug("record updated", "table", r.table, "id", base.pk)
	r.notify(ctx, base, ChangeUpdated)
	return nil
}

// Destroy deletes e's row. Only persisted entities can be destroyed; a
// new or already destroyed entity yields a *StateError.
func (r *Repository[T]) Destroy(ctx context.Context, e T) error {
	base := e.Base()
	if base.state != StatePersisted {
		return &StateError{Table: r.table, Op: "destroy", State: base.state}
	}

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(r.table), quoteIdent(r.pk))
	if err := r.modify(ctx, sql, []any{base.pk}, base.pk); err != nil {
		return fmt.Errorf("destroying %s %d: %w", r.table, base.pk, err)
	}

	base.state = StateDestroyed
	r.logger.Debug("record destroyed", "table", r.table, "id", base.pk)
	r.notify(ctx, base, ChangeDestroyed)
	return nil
}

// modify runs an UPDATE or DELETE and fails with *NotFoundError when it
// touched no row.
func (r *Repository[T]) modify(ctx context.Context, sql string, values []any, id int64) error {
	var changed int64
	err := database.Exclusive(r.db, func(db database.Adapter) error {
		if _, err := db.Query(ctx, sql, values...); err != nil {
			return err
		}
		rows, err := db.Query(ctx, "SELECT changes() AS n")
		if err != nil {
			return err
		}
		if len(rows) > 0 {
			changed, _ = rows[0]["n"].Int64()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if changed == 0 {
		return &NotFoundError{Table: r.table, ID: id}
	}
	return nil
}

// writable returns the quoted column names and values of attrs in table
// column order. Attributes naming columns the table does not have are
// rejected, so attribute names never reach SQL unchecked.
func (r *Repository[T]) writable(attrs Attributes, cols []string, skipPK bool) ([]string, []any, error) {
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c] = true
	}
	var unknown []string
	for name := range attrs {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, nil, &database.SchemaError{
			Table:  r.table,
			Reason: "unknown columns " + strings.Join(unknown, ", "),
		}
	}

	var (
		names  []string
		values []any
	)
	for _, c := range cols {
		v, ok := attrs[c]
		if !ok || (skipPK && c == r.pk) {
			continue
		}
		names = append(names, quoteIdent(c))
		values = append(values, v)
	}
	return names, values, nil
}

func (r *Repository[T]) notify(ctx context.Context, base *Record, kind ChangeKind) {
	if r.observer == nil {
		return
	}
	change := Change{
		Table:      r.table,
		PrimaryKey: base.pk,
		Kind:       kind,
		Attributes: base.attrs.Clone(),
	}
	if err := r.observer.RecordChanged(ctx, change); err != nil {
		r.logger.Warn("record observer failed",
			"table", r.table,
			"id", base.pk,
			"kind", string(kind),
			"error", err,
		)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
