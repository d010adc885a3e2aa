// Package factdb defines the fact database produced for every compiled unit:
// named relations of fixed-arity facts, named counters, and named interning
// tables. A Database is built or loaded once and never mutated afterwards.
package factdb

import (
	"maps"
	"slices"
)

// Namespace is one of the three top-level name spaces of a database.
type Namespace string

// Namespace values, in accessor precedence order.
const (
	NamespaceRelations       Namespace = "relations"
	NamespaceCounters        Namespace = "counters"
	NamespaceInterningTables Namespace = "interning_tables"
)

// ID is the position of a value inside an interning table.
type ID int

// Relation is a named, ordered collection of facts of one arity.
type Relation struct {
	name  string
	arity int
	facts []Fact
}

// Name returns the relation name.
func (r *Relation) Name() string { return r.name }

// Arity is the number of fields per fact, or 0 for an empty relation.
func (r *Relation) Arity() int { return r.arity }

// Len returns the number of facts.
func (r *Relation) Len() int { return len(r.facts) }

// Fact returns the i-th fact. The returned slice must not be modified.
func (r *Relation) Fact(i int) Fact { return r.facts[i] }

// Facts returns the facts in insertion order. The facts themselves are
// shared with the relation and must not be modified.
func (r *Relation) Facts() []Fact { return slices.Clone(r.facts) }

// Equal reports whether both relations hold the same facts in the same order.
func (r *Relation) Equal(o *Relation) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.name != o.name || r.arity != o.arity || len(r.facts) != len(o.facts) {
		return false
	}
	for i := range r.facts {
		if !slices.Equal(r.facts[i], o.facts[i]) {
			return false
		}
	}
	return true
}

// InterningTable is a deduplicated, position-indexed table of values.
type InterningTable struct {
	name   string
	values []Value
	index  map[string]ID
}

func newInterningTable(name string) *InterningTable {
	return &InterningTable{name: name, index: make(map[string]ID)}
}

// intern returns the id of v, appending it when new.
func (t *InterningTable) intern(v Value) (ID, bool) {
	k := v.key()
	if id, ok := t.index[k]; ok {
		return id, false
	}
	id := ID(len(t.values))
	t.values = append(t.values, v)
	t.index[k] = id
	return id, true
}

// Name returns the table name.
func (t *InterningTable) Name() string { return t.name }

// Len returns the number of interned values.
func (t *InterningTable) Len() int { return len(t.values) }

// At returns the value with the given id.
func (t *InterningTable) At(id ID) (Value, bool) {
	if id < 0 || int(id) >= len(t.values) {
		return Value{}, false
	}
	return t.values[id], true
}

// Lookup returns the id of v.
func (t *InterningTable) Lookup(v Value) (ID, bool) {
	id, ok := t.index[v.key()]
	return id, ok
}

// LookupString returns the id of a text value.
func (t *InterningTable) LookupString(s string) (ID, bool) {
	return t.Lookup(TextValue(s))
}

// Contains reports whether the text value s is interned.
func (t *InterningTable) Contains(s string) bool {
	_, ok := t.LookupString(s)
	return ok
}

// Values returns the table contents in id order.
func (t *InterningTable) Values() []Value { return slices.Clone(t.values) }

// Strings returns the text values of the table in id order; tuple values
// are skipped.
func (t *InterningTable) Strings() []string {
	out := make([]string, 0, len(t.values))
	for _, v := range t.values {
		if !v.IsTuple() {
			out = append(out, v.Text)
		}
	}
	return out
}

// Equal reports whether both tables hold the same values with the same ids.
func (t *InterningTable) Equal(o *InterningTable) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.name != o.name || len(t.values) != len(o.values) {
		return false
	}
	for i := range t.values {
		if t.values[i].key() != o.values[i].key() {
			return false
		}
	}
	return true
}

// Database is the full output of one compiled unit.
type Database struct {
	relations       map[string]*Relation
	counters        map[string]int64
	interningTables map[string]*InterningTable
}

// Relation returns the named relation.
func (db *Database) Relation(name string) (*Relation, bool) {
	r, ok := db.relations[name]
	return r, ok
}

// Counter returns the named counter.
func (db *Database) Counter(name string) (int64, bool) {
	v, ok := db.counters[name]
	return v, ok
}

// Table returns the named interning table.
func (db *Database) Table(name string) (*InterningTable, bool) {
	t, ok := db.interningTables[name]
	return t, ok
}

// RelationNames returns the relation names, sorted.
func (db *Database) RelationNames() []string { return slices.Sorted(maps.Keys(db.relations)) }

// CounterNames returns the counter names, sorted.
func (db *Database) CounterNames() []string { return slices.Sorted(maps.Keys(db.counters)) }

// TableNames returns the interning table names, sorted.
func (db *Database) TableNames() []string { return slices.Sorted(maps.Keys(db.interningTables)) }

// Equal reports structural equality, used to check that re-loading a file
// is idempotent.
func (db *Database) Equal(o *Database) bool {
	if db == nil || o == nil {
		return db == o
	}
	if !maps.Equal(db.counters, o.counters) {
		return false
	}
	if !maps.EqualFunc(db.relations, o.relations, (*Relation).Equal) {
		return false
	}
	return maps.EqualFunc(db.interningTables, o.interningTables, (*InterningTable).Equal)
}

// checkDisjoint enforces that no name lives in two namespaces.
func (db *Database) checkDisjoint() error {
	for name := range db.relations {
		if _, ok := db.counters[name]; ok {
			return schemaErr(NamespaceCounters, name, "name is also a relation")
		}
		if _, ok := db.interningTables[name]; ok {
			return schemaErr(NamespaceInterningTables, name, "name is also a relation")
		}
	}
	for name := range db.counters {
		if _, ok := db.interningTables[name]; ok {
			return schemaErr(NamespaceInterningTables, name, "name is also a counter")
		}
	}
	return nil
}
