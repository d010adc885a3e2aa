package factdb

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/zeebo/xxh3"
	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var defaultSchema []byte

// Column describes one field position of a relation or of a tuple-valued
// interning table. A column with a Table holds an id into that table.
type Column struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind,omitempty"`
	Table string `yaml:"table,omitempty"`
}

func (c Column) kind() FieldKind {
	switch c.Kind {
	case "text":
		return KindText
	case "bool":
		return KindBool
	default:
		return KindInt
	}
}

// TableSchema describes an interning table. Tables without fields hold text.
type TableSchema struct {
	Fields []Column `yaml:"fields,omitempty"`
}

// Schema is the corpus-wide shape of every fact database: relation
// arities, interned-field bindings, known counters and interning tables.
type Schema struct {
	Relations       map[string][]Column    `yaml:"relations"`
	Counters        []string               `yaml:"counters"`
	InterningTables map[string]TableSchema `yaml:"interningTables"`
}

// DefaultSchema returns the schema compiled into the binary.
func DefaultSchema() *Schema {
	s, err := ParseSchema(defaultSchema)
	if err != nil {
		panic(fmt.Sprintf("embedded fact schema is invalid: %v", err))
	}
	return s
}

// LoadSchema reads a schema file, or returns the default schema when path
// is empty.
func LoadSchema(path string) (*Schema, error) {
	if path == "" {
		return DefaultSchema(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	s, err := ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseSchema parses and checks a YAML schema document.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	if err := s.Check(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Check verifies that the schema is self-consistent.
func (s *Schema) Check() error {
	seen := make(map[string]string)
	claim := func(name, ns string) error {
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("schema: %q declared as both %s and %s", name, prev, ns)
		}
		seen[name] = ns
		return nil
	}
	for name := range s.Relations {
		if err := claim(name, "relation"); err != nil {
			return err
		}
	}
	for _, name := range s.Counters {
		if err := claim(name, "counter"); err != nil {
			return err
		}
	}
	for name := range s.InterningTables {
		if err := claim(name, "interning table"); err != nil {
			return err
		}
	}

	checkCols := func(owner string, cols []Column) error {
		for _, c := range cols {
			switch c.Kind {
			case "", "int", "text", "bool":
			default:
				return fmt.Errorf("schema: %s column %q has unknown kind %q", owner, c.Name, c.Kind)
			}
			if c.Table == "" {
				continue
			}
			if c.kind() != KindInt {
				return fmt.Errorf("schema: %s column %q references %q but is not an int", owner, c.Name, c.Table)
			}
			if _, ok := s.InterningTables[c.Table]; !ok {
				return fmt.Errorf("schema: %s column %q references unknown table %q", owner, c.Name, c.Table)
			}
		}
		return nil
	}
	for name, cols := range s.Relations {
		if len(cols) == 0 {
			return fmt.Errorf("schema: relation %q has no columns", name)
		}
		if err := checkCols("relation "+name, cols); err != nil {
			return err
		}
	}
	for name, t := range s.InterningTables {
		if err := checkCols("table "+name, t.Fields); err != nil {
			return err
		}
	}
	return nil
}

// Fingerprint identifies the schema. Two schemas with the same relations,
// columns, counters and tables share a fingerprint regardless of map order.
func (s *Schema) Fingerprint() string {
	var b strings.Builder
	writeCols := func(cols []Column) {
		for _, c := range cols {
			fmt.Fprintf(&b, " %s:%s:%s", c.Name, c.kind(), c.Table)
		}
		b.WriteByte('\n')
	}
	for _, name := range slices.Sorted(maps.Keys(s.Relations)) {
		b.WriteString("R " + name)
		writeCols(s.Relations[name])
	}
	counters := slices.Clone(s.Counters)
	slices.Sort(counters)
	for _, name := range counters {
		b.WriteString("C " + name + "\n")
	}
	for _, name := range slices.Sorted(maps.Keys(s.InterningTables)) {
		b.WriteString("T " + name)
		writeCols(s.InterningTables[name].Fields)
	}
	return fmt.Sprintf("%016x", xxh3.HashString(b.String()))
}

// Validate checks db against the schema: every name must be declared,
// relation facts must have the declared arity and field kinds, and every
// interned-id field must index an existing value of its table.
func (s *Schema) Validate(db *Database) error {
	for _, name := range db.TableNames() {
		ts, ok := s.InterningTables[name]
		if !ok {
			return schemaErr(NamespaceInterningTables, name, "not declared in schema")
		}
		t := db.interningTables[name]
		for i, v := range t.values {
			if len(ts.Fields) == 0 {
				if v.IsTuple() {
					return schemaErr(NamespaceInterningTables, name, "value %d is a tuple, expected text", i)
				}
				continue
			}
			if !v.IsTuple() {
				return schemaErr(NamespaceInterningTables, name, "value %d is text, expected a tuple", i)
			}
			if err := s.checkFields(db, NamespaceInterningTables, name, i, v.Tuple, ts.Fields); err != nil {
				return err
			}
		}
	}
	for _, name := range db.RelationNames() {
		cols, ok := s.Relations[name]
		if !ok {
			return schemaErr(NamespaceRelations, name, "not declared in schema")
		}
		for i, fact := range db.relations[name].facts {
			if err := s.checkFields(db, NamespaceRelations, name, i, fact, cols); err != nil {
				return err
			}
		}
	}
	for _, name := range db.CounterNames() {
		if !slices.Contains(s.Counters, name) {
			return schemaErr(NamespaceCounters, name, "not declared in schema")
		}
	}
	return nil
}

func (s *Schema) checkFields(db *Database, ns Namespace, name string, pos int, fields []Field, cols []Column) error {
	if len(fields) != len(cols) {
		return schemaErr(ns, name, "entry %d has arity %d, schema declares %d", pos, len(fields), len(cols))
	}
	for j, col := range cols {
		f := fields[j]
		if f.Kind != col.kind() {
			return schemaErr(ns, name, "entry %d field %q is %s, schema declares %s", pos, col.Name, f.Kind, col.kind())
		}
		if col.Table == "" {
			continue
		}
		t, ok := db.interningTables[col.Table]
		if !ok {
			return schemaErr(ns, name, "field %q references missing table %q", col.Name, col.Table)
		}
		id, _ := f.AsID()
		if _, ok := t.At(id); !ok || f.Num < 0 {
			return schemaErr(ns, name, "entry %d field %q: id %d out of range for %q (%d values)", pos, col.Name, f.Num, col.Table, t.Len())
		}
	}
	return nil
}
