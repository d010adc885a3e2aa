package factdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

type fileJSON struct {
	Relations       json.RawMessage `json:"relations"`
	Counters        json.RawMessage `json:"counters"`
	InterningTables json.RawMessage `json:"interning_tables"`
}

type relationJSON struct {
	Facts *[]Fact `json:"facts"`
}

type tableJSON struct {
	Contents *[]Value `json:"contents"`
}

// Load reads and decodes the fact database file at path. Errors carry the
// path when they are schema violations.
func Load(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fact database: %w", err)
	}
	defer f.Close()

	db, err := Decode(f)
	if err != nil {
		return nil, withPath(err, path)
	}
	return db, nil
}

// Decode parses a fact database from its JSON interchange form. Decoding
// has no side effects; the returned database is immutable.
func Decode(r io.Reader) (*Database, error) {
	var raw fileJSON
	if err := strictUnmarshal(r, &raw); err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("malformed document: %v", err)}
	}

	db := &Database{
		relations:       make(map[string]*Relation),
		counters:        make(map[string]int64),
		interningTables: make(map[string]*InterningTable),
	}
	if err := decodeRelations(raw.Relations, db); err != nil {
		return nil, err
	}
	if err := decodeCounters(raw.Counters, db); err != nil {
		return nil, err
	}
	if err := decodeTables(raw.InterningTables, db); err != nil {
		return nil, err
	}
	if err := db.checkDisjoint(); err != nil {
		return nil, err
	}
	return db, nil
}

func decodeRelations(data json.RawMessage, db *Database) error {
	var rels map[string]json.RawMessage
	if err := namespace(data, NamespaceRelations, &rels); err != nil {
		return err
	}
	for name, body := range rels {
		var rj relationJSON
		if err := strictUnmarshal(bytes.NewReader(body), &rj); err != nil {
			return schemaErr(NamespaceRelations, name, "malformed relation: %v", err)
		}
		if rj.Facts == nil {
			return schemaErr(NamespaceRelations, name, "missing facts")
		}
		rel := &Relation{name: name, facts: *rj.Facts}
		for i, fact := range rel.facts {
			if len(fact) == 0 {
				return schemaErr(NamespaceRelations, name, "fact %d has no fields", i)
			}
			if i == 0 {
				rel.arity = len(fact)
				continue
			}
			if len(fact) != rel.arity {
				return schemaErr(NamespaceRelations, name, "fact %d has arity %d, expected %d", i, len(fact), rel.arity)
			}
		}
		db.relations[name] = rel
	}
	return nil
}

func decodeCounters(data json.RawMessage, db *Database) error {
	var counters map[string]json.RawMessage
	if err := namespace(data, NamespaceCounters, &counters); err != nil {
		return err
	}
	for name, body := range counters {
		v, err := strconv.ParseInt(string(bytes.TrimSpace(body)), 10, 64)
		if err != nil {
			return schemaErr(NamespaceCounters, name, "value %s is not an integer", body)
		}
		if v < 0 {
			return schemaErr(NamespaceCounters, name, "negative value %d", v)
		}
		db.counters[name] = v
	}
	return nil
}

func decodeTables(data json.RawMessage, db *Database) error {
	var tables map[string]json.RawMessage
	if err := namespace(data, NamespaceInterningTables, &tables); err != nil {
		return err
	}
	for name, body := range tables {
		var tj tableJSON
		if err := strictUnmarshal(bytes.NewReader(body), &tj); err != nil {
			return schemaErr(NamespaceInterningTables, name, "malformed table: %v", err)
		}
		if tj.Contents == nil {
			return schemaErr(NamespaceInterningTables, name, "missing contents")
		}
		t := newInterningTable(name)
		for i, v := range *tj.Contents {
			if _, added := t.intern(v); !added {
				return schemaErr(NamespaceInterningTables, name, "duplicate value %s at position %d", v, i)
			}
		}
		db.interningTables[name] = t
	}
	return nil
}

// namespace decodes one top-level namespace object, rejecting absent,
// null and non-object values.
func namespace(data json.RawMessage, ns Namespace, v any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return schemaErr(ns, "", "namespace is missing")
	}
	if data[0] != '{' {
		return schemaErr(ns, "", "namespace is not an object")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return schemaErr(ns, "", "malformed namespace: %v", err)
	}
	return nil
}

func strictUnmarshal(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after document")
	}
	return nil
}
