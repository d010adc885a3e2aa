package factdb

// EntryKind says which namespace a looked-up name resolved to.
type EntryKind int

// EntryKind values.
const (
	EntryRelation EntryKind = iota + 1
	EntryCounter
	EntryTable
)

func (k EntryKind) String() string {
	switch k {
	case EntryRelation:
		return "relation"
	case EntryCounter:
		return "counter"
	case EntryTable:
		return "interning table"
	default:
		return "unknown"
	}
}

// Entry is the result of resolving a name against a database. Exactly one
// of Facts, Counter or Values is meaningful, according to Kind.
type Entry struct {
	Kind    EntryKind
	Name    string
	Facts   []Fact
	Counter int64
	Values  []Value
}

// Len is the number of facts or interned values, or the counter value.
func (e Entry) Len() int {
	switch e.Kind {
	case EntryRelation:
		return len(e.Facts)
	case EntryTable:
		return len(e.Values)
	default:
		return int(e.Counter)
	}
}

// Lookup resolves name to a relation, a counter or an interning table, in
// that order. It returns a NotFoundError when no namespace holds the name.
func Lookup(db *Database, name string) (Entry, error) {
	if r, ok := db.relations[name]; ok {
		return Entry{Kind: EntryRelation, Name: name, Facts: r.Facts()}, nil
	}
	if v, ok := db.counters[name]; ok {
		return Entry{Kind: EntryCounter, Name: name, Counter: v}, nil
	}
	if t, ok := db.interningTables[name]; ok {
		return Entry{Kind: EntryTable, Name: name, Values: t.Values()}, nil
	}
	return Entry{}, &NotFoundError{Name: name}
}
