package record

import (
	"github.com/nerrad567/objrecord/internal/infrastructure/database"
)

// State is the lifecycle position of a record.
type State int

const (
	// StateNew records have never been saved and have no primary key.
	StateNew State = iota

	// StatePersisted records are backed by a row and carry its primary key.
	StatePersisted

	// StateDestroyed records had their row deleted. The state is terminal.
	StateDestroyed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StatePersisted:
		return "persisted"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Attributes maps column names to values.
type Attributes map[string]database.Value

// Clone returns a copy of a. Clone of nil is an empty, non-nil map.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Equal reports whether a and other hold the same columns and values.
func (a Attributes) Equal(other Attributes) bool {
	if len(a) != len(other) {
		return false
	}
	for k, v := range a {
		w, ok := other[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

// Record is the persistent state shared by every entity: an attribute map,
// a primary key and a lifecycle state.
//
// Entities embed Record and add typed accessors on top of Get and Set:
//
//	type Widget struct{ record.Record }
//
//	func (w *Widget) Name() string {
//	    s, _ := w.Get("name").Text()
//	    return s
//	}
//
// The zero Record is a valid new record with no attributes.
type Record struct {
	attrs Attributes
	pk    int64
	state State
}

// New returns a new, unsaved record holding a copy of attrs.
// Storage is not touched.
func New(attrs Attributes) *Record {
	return &Record{attrs: attrs.Clone(), state: StateNew}
}

// Base returns r. It lets any type embedding Record satisfy Entity.
func (r *Record) Base() *Record {
	return r
}

// FromRow replaces the attributes with the columns of row.
// Entities override it to validate required columns; see Require.
func (r *Record) FromRow(row database.Row) error {
	r.attrs = Attributes(row).Clone()
	return nil
}

// Attributes returns a copy of the attribute map.
func (r *Record) Attributes() Attributes {
	return r.attrs.Clone()
}

// Get returns the named attribute, or NULL when it is absent.
func (r *Record) Get(name string) database.Value {
	return r.attrs[name]
}

// Has reports whether the named attribute is set.
func (r *Record) Has(name string) bool {
	_, ok := r.attrs[name]
	return ok
}

// Set assigns the named attribute. The change is written on the next Save.
func (r *Record) Set(name string, v database.Value) {
	if r.attrs == nil {
		r.attrs = make(Attributes)
	}
	r.attrs[name] = v
}

// PrimaryKey returns the primary key and whether one has been assigned.
func (r *Record) PrimaryKey() (int64, bool) {
	return r.pk, r.state != StateNew
}

// State returns the lifecycle state.
func (r *Record) State() State {
	return r.state
}

// IsNewRecord reports whether the record has never been saved.
func (r *Record) IsNewRecord() bool {
	return r.state == StateNew
}

// IsDestroyed reports whether the record's row has been deleted.
func (r *Record) IsDestroyed() bool {
	return r.state == StateDestroyed
}

// persisted moves r to the persisted state with the given key.
func (r *Record) persisted(pk int64, pkColumn string) {
	if r.attrs == nil {
		r.attrs = make(Attributes)
	}
	r.pk = pk
	r.attrs[pkColumn] = database.Integer(pk)
	r.state = StatePersisted
}

// Entity is implemented by every record kind a Repository manages.
type Entity interface {
	// Base returns the embedded Record.
	Base() *Record

	// FromRow populates the entity from a result row. The Record's
	// attributes and primary key are already set when it is called.
	FromRow(database.Row) error
}

// TableNamer lets an entity override its conventional table name.
type TableNamer interface {
	TableName() string
}

// Require checks that row has every column in cols.
// Entities call it from FromRow to declare the columns they cannot do
// without.
func Require(row database.Row, cols ...string) error {
	for _, c := range cols {
		if _, ok := row[c]; !ok {
			return &HydrationError{Column: c, Reason: "missing required column"}
		}
	}
	return nil
}
