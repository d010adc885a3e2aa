package factdb

import (
	"errors"
	"fmt"
)

// ErrBuilt is returned when a Builder is used after Build.
var ErrBuilt = errors.New("fact database already built")

// Builder assembles a Database. Interned values are deduplicated so equal
// values always share one id. A Builder is not safe for concurrent use.
type Builder struct {
	db    *Database
	built bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{db: &Database{
		relations:       make(map[string]*Relation),
		counters:        make(map[string]int64),
		interningTables: make(map[string]*InterningTable),
	}}
}

// Table declares an interning table, which may stay empty.
func (b *Builder) Table(name string) {
	if b.built {
		return
	}
	if _, ok := b.db.interningTables[name]; !ok {
		b.db.interningTables[name] = newInterningTable(name)
	}
}

// Intern returns the id of v in the named table, adding it if needed.
// After Build it only resolves existing values and returns -1 otherwise.
func (b *Builder) Intern(table string, v Value) ID {
	if b.built {
		t, ok := b.db.interningTables[table]
		if !ok {
			return -1
		}
		if id, ok := t.Lookup(v); ok {
			return id
		}
		return -1
	}
	b.Table(table)
	id, _ := b.db.interningTables[table].intern(v)
	return id
}

// InternString interns a text value.
func (b *Builder) InternString(table, s string) ID {
	return b.Intern(table, TextValue(s))
}

// Relation declares a relation, which may stay empty.
func (b *Builder) Relation(name string) {
	if b.built {
		return
	}
	if _, ok := b.db.relations[name]; !ok {
		b.db.relations[name] = &Relation{name: name}
	}
}

// Insert appends a fact to the named relation.
func (b *Builder) Insert(relation string, fact ...Field) error {
	if b.built {
		return ErrBuilt
	}
	if len(fact) == 0 {
		return schemaErr(NamespaceRelations, relation, "fact has no fields")
	}
	b.Relation(relation)
	r := b.db.relations[relation]
	switch {
	case len(r.facts) == 0:
		r.arity = len(fact)
	case len(fact) != r.arity:
		return schemaErr(NamespaceRelations, relation, "fact has arity %d, expected %d", len(fact), r.arity)
	}
	r.facts = append(r.facts, append(Fact(nil), fact...))
	return nil
}

// SetCounter sets the named counter.
func (b *Builder) SetCounter(name string, v int64) error {
	if b.built {
		return ErrBuilt
	}
	if v < 0 {
		return schemaErr(NamespaceCounters, name, "negative value %d", v)
	}
	b.db.counters[name] = v
	return nil
}

// Add increments the named counter by delta.
func (b *Builder) Add(name string, delta int64) error {
	return b.SetCounter(name, b.db.counters[name]+delta)
}

// Build finalizes the database. The builder cannot be used afterwards.
func (b *Builder) Build() (*Database, error) {
	if b.built {
		return nil, ErrBuilt
	}
	if err := b.db.checkDisjoint(); err != nil {
		return nil, fmt.Errorf("building fact database: %w", err)
	}
	b.built = true
	return b.db, nil
}
