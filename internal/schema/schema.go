// Package schema describes the entity kinds the transcoder knows how to
// move between the store and the portable XML form. Each kind carries an
// explicit, ordered column list plus the classification sets that drive
// serialization, so field handling is statically checkable instead of
// being discovered at runtime.
package schema

// Canonical datetime handling for the store.
const (
	// NullDate is the canonical "no value" datetime stored for cleared
	// timestamp columns.
	NullDate = "0001-01-01 00:00:00"

	// DateFormat is the canonical datetime layout used in both the store
	// and the wire form.
	DateFormat = "2006-01-02 15:04:05"
)

// Class is the serialization classification of a single field.
type Class int

const (
	// ClassScalar fields are emitted as-is (bare number or CDATA text).
	ClassScalar Class = iota
	// ClassExcluded fields are never emitted (internal bookkeeping).
	ClassExcluded
	// ClassAlias fields are emitted as the result of a secondary lookup.
	ClassAlias
	// ClassJSON fields hold structured values that are JSON-encoded
	// before emission and decoded back to structure on import.
	ClassJSON
)

// Bind selects which value an alias lookup query is bound to.
type Bind int

const (
	// BindValue binds the record's own value for the alias field
	// (e.g. created_by binds the raw user id it currently holds).
	BindValue Bind = iota
	// BindKey binds the record's primary key.
	BindKey
)

// Alias names a field whose emitted value comes from a lookup query
// instead of the record's own column. Query uses $1 for the bound value;
// the store rewrites placeholders for the active dialect.
type Alias struct {
	Name  string
	Query string
	Bind  Bind
}

// Column is one table column with the dialect-independent type used for
// bootstrap DDL.
type Column struct {
	Name string
	Type string // string, text, int, bigint, boolean, timestamp, json
}

// Entity describes one transcodable kind.
type Entity struct {
	// Kind is the lower-cased element tag used in the document.
	Kind string
	// Table is the backing table name.
	Table string
	// Key is the primary key column.
	Key string
	// NaturalKey lists the columns forming the portable identity used to
	// detect an already-existing record on import.
	NaturalKey []string
	// Columns is the ordered column list.
	Columns []Column
	// Excluded fields are never emitted.
	Excluded []string
	// JSONEncoded fields carry structured values.
	JSONEncoded []string
	// DateColumns are normalized through the canonical datetime fixup on
	// import.
	DateColumns []string
	// Aliases are emitted in a second pass after the plain fields.
	Aliases []Alias
}

// baseExcluded is internal bookkeeping shared by every kind: audit/lock
// metadata and nested-set hierarchy pointers.
var baseExcluded = []string{
	"asset_id", "parent_id", "lft", "rgt", "level",
	"checked_out", "checked_out_time",
}

// Classify returns the serialization class of the named field.
func (e *Entity) Classify(name string) Class {
	for _, x := range e.Excluded {
		if x == name {
			return ClassExcluded
		}
	}
	for _, a := range e.Aliases {
		if a.Name == name {
			return ClassAlias
		}
	}
	for _, j := range e.JSONEncoded {
		if j == name {
			return ClassJSON
		}
	}
	return ClassScalar
}

// HasColumn reports whether name is a real column of the backing table.
func (e *Entity) HasColumn(name string) bool {
	for _, c := range e.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ColumnNames returns the ordered column names.
func (e *Entity) ColumnNames() []string {
	names := make([]string, len(e.Columns))
	for i, c := range e.Columns {
		names[i] = c.Name
	}
	return names
}

// IsDateColumn reports whether name is normalized as a datetime on import.
func (e *Entity) IsDateColumn(name string) bool {
	for _, d := range e.DateColumns {
		if d == name {
			return true
		}
	}
	return false
}

func withBaseExcluded(extra ...string) []string {
	out := append([]string(nil), baseExcluded...)
	return append(out, extra...)
}
