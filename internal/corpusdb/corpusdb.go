// Package corpusdb merges per-unit fact databases into one SQLite store
// with corpus-wide interned ids.
package corpusdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/dwsmith1983/factcorpus/internal/factdb"
)

const ddl = `
CREATE TABLE IF NOT EXISTS loaded_units (
	name      TEXT PRIMARY KEY,
	loaded_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS interned (
	tbl   TEXT NOT NULL,
	id    INTEGER NOT NULL,
	key   TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (tbl, id),
	UNIQUE (tbl, key)
);
CREATE TABLE IF NOT EXISTS relations (
	name  TEXT PRIMARY KEY,
	arity INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS counters (
	unit  TEXT NOT NULL,
	name  TEXT NOT NULL,
	value INTEGER NOT NULL,
	PRIMARY KEY (unit, name)
);
`

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is the merged corpus database.
type Store struct {
	mu     sync.Mutex
	conn   *sqlite.Conn
	schema *factdb.Schema
	order  []string // interning tables, referenced tables first
	logger *slog.Logger
}

// Open opens or creates the merged database at path. A nil schema selects
// the default one.
func Open(path string, schema *factdb.Schema, logger *slog.Logger) (*Store, error) {
	if schema == nil {
		schema = factdb.DefaultSchema()
	}
	if logger == nil {
		logger = slog.Default()
	}
	order, err := tableOrder(schema)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating corpus database directory: %w", err)
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA synchronous = NORMAL"} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, ddl, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("creating corpus tables: %w", err)
	}
	return &Store{conn: conn, schema: schema, order: order, logger: logger}, nil
}

// Close closes the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Merge adds one unit's database. It reports false when the unit was
// already loaded. The whole unit is merged in one transaction.
func (s *Store) Merge(ctx context.Context, unit string, db *factdb.Database) (merged bool, err error) {
	if err := s.schema.Validate(db); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	endFn, err := sqlitex.ImmediateTransaction(s.conn)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer endFn(&err)

	loaded, err := s.count(`SELECT COUNT(*) FROM loaded_units WHERE name = ?`, unit)
	if err != nil {
		return false, err
	}
	if loaded > 0 {
		s.logger.Debug("unit already loaded", "unit", unit)
		return false, nil
	}

	ids := make(map[string][]int64, len(s.order))
	for _, name := range s.order {
		tbl, ok := db.Table(name)
		if !ok {
			continue
		}
		if ids[name], err = s.internTable(tbl, s.schema.InterningTables[name].Fields, ids); err != nil {
			return false, err
		}
	}

	for _, name := range db.RelationNames() {
		rel, _ := db.Relation(name)
		if err := s.insertRelation(unit, rel, s.schema.Relations[name], ids); err != nil {
			return false, err
		}
	}

	for _, name := range db.CounterNames() {
		v, _ := db.Counter(name)
		if err := sqlitex.ExecuteTransient(s.conn,
			`INSERT INTO counters (unit, name, value) VALUES (?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{unit, name, v}}); err != nil {
			return false, fmt.Errorf("inserting counter %s: %w", name, err)
		}
	}

	if err := sqlitex.ExecuteTransient(s.conn,
		`INSERT INTO loaded_units (name, loaded_at) VALUES (?, ?)`,
		&sqlitex.ExecOptions{Args: []any{unit, time.Now().UTC().Format(time.RFC3339)}}); err != nil {
		return false, fmt.Errorf("recording unit: %w", err)
	}
	return true, nil
}

// internTable maps every local id of tbl to its corpus-wide id.
func (s *Store) internTable(tbl *factdb.InterningTable, cols []factdb.Column, ids map[string][]int64) ([]int64, error) {
	name := tbl.Name()
	next, err := s.count(`SELECT COALESCE(MAX(id) + 1, 0) FROM interned WHERE tbl = ?`, name)
	if err != nil {
		return nil, err
	}

	global := make([]int64, 0, tbl.Len())
	for _, v := range tbl.Values() {
		value := v.Text
		if v.IsTuple() {
			fields, err := remap(v.Tuple, cols, ids)
			if err != nil {
				return nil, schemaErrf(name, "%v", err)
			}
			data, err := json.Marshal(fields)
			if err != nil {
				return nil, err
			}
			value = string(data)
		}
		key := "s:" + value
		if v.IsTuple() {
			key = "t:" + value
		}

		id := int64(-1)
		err := sqlitex.ExecuteTransient(s.conn,
			`SELECT id FROM interned WHERE tbl = ? AND key = ?`,
			&sqlitex.ExecOptions{
				Args: []any{name, key},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					id = stmt.ColumnInt64(0)
					return nil
				},
			})
		if err != nil {
			return nil, fmt.Errorf("looking up %s value: %w", name, err)
		}
		if id < 0 {
			id = next
			next++
			if err := sqlitex.ExecuteTransient(s.conn,
				`INSERT INTO interned (tbl, id, key, value) VALUES (?, ?, ?, ?)`,
				&sqlitex.ExecOptions{Args: []any{name, id, key, value}}); err != nil {
				return nil, fmt.Errorf("interning %s value: %w", name, err)
			}
		}
		global = append(global, id)
	}
	return global, nil
}

func (s *Store) insertRelation(unit string, rel *factdb.Relation, cols []factdb.Column, ids map[string][]int64) error {
	name := rel.Name()
	if rel.Len() == 0 {
		return nil
	}
	if !identRE.MatchString(name) {
		return schemaErrf(name, "relation name is not a valid identifier")
	}
	arity := rel.Arity()

	stored, err := s.count(`SELECT COALESCE(MAX(arity), -1) FROM relations WHERE name = ?`, name)
	if err != nil {
		return err
	}
	switch {
	case stored < 0:
		if err := s.createRelation(name, arity); err != nil {
			return err
		}
	case stored != int64(arity):
		return schemaErrf(name, "arity %d does not match stored arity %d", arity, stored)
	}

	placeholders := strings.Repeat(", ?", arity)
	stmt, err := s.conn.Prepare(fmt.Sprintf(`INSERT INTO %s VALUES (?%s)`, tableName(name), placeholders))
	if err != nil {
		return fmt.Errorf("preparing insert into %s: %w", name, err)
	}
	// The statement is cached on the connection; leave it idle on every path.
	defer func() { _ = stmt.Reset() }()
	for _, fact := range rel.Facts() {
		fields, err := remap(fact, cols, ids)
		if err != nil {
			return schemaErrf(name, "%v", err)
		}
		stmt.BindText(1, unit)
		for i, f := range fields {
			switch f.Kind {
			case factdb.KindText:
				stmt.BindText(i+2, f.Str)
			default:
				stmt.BindInt64(i+2, f.Num)
			}
		}
		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("inserting into %s: %w", name, err)
		}
		if err := stmt.Reset(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createRelation(name string, arity int) error {
	cols := make([]string, 0, arity+1)
	cols = append(cols, "unit TEXT NOT NULL")
	for i := range arity {
		cols = append(cols, fmt.Sprintf("c%d", i))
	}
	script := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);\nCREATE INDEX IF NOT EXISTS %s ON %s (unit);",
		tableName(name), strings.Join(cols, ", "), tableName(name+"_unit"), tableName(name))
	if err := sqlitex.ExecuteScript(s.conn, script, nil); err != nil {
		return fmt.Errorf("creating relation %s: %w", name, err)
	}
	return sqlitex.ExecuteTransient(s.conn,
		`INSERT INTO relations (name, arity) VALUES (?, ?)`,
		&sqlitex.ExecOptions{Args: []any{name, arity}})
}

// remap rewrites interned-id fields to corpus-wide ids.
func remap(fields []factdb.Field, cols []factdb.Column, ids map[string][]int64) ([]factdb.Field, error) {
	out := slices.Clone(fields)
	for i, c := range cols {
		if c.Table == "" || i >= len(out) {
			continue
		}
		local, ok := out[i].AsID()
		table := ids[c.Table]
		if !ok || int(local) >= len(table) {
			return nil, fmt.Errorf("field %d: id %v out of range of %s", i, out[i], c.Table)
		}
		out[i] = factdb.Int(table[local])
	}
	return out, nil
}

// RelationCount returns the number of merged facts of a relation.
func (s *Store) RelationCount(name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	known, err := s.count(`SELECT COUNT(*) FROM relations WHERE name = ?`, name)
	if err != nil {
		return 0, err
	}
	if known == 0 {
		return 0, &factdb.NotFoundError{Name: name}
	}
	return s.count(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tableName(name)))
}

// CounterTotal sums a counter over every merged unit.
func (s *Store) CounterTotal(name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count(`SELECT COALESCE(SUM(value), 0) FROM counters WHERE name = ?`, name)
}

// InternedLen returns how many distinct values a table holds corpus-wide.
func (s *Store) InternedLen(table string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count(`SELECT COUNT(*) FROM interned WHERE tbl = ?`, table)
}

// Interned returns the stored value of a corpus-wide id.
func (s *Store) Interned(table string, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		value string
		found bool
	)
	err := sqlitex.ExecuteTransient(s.conn,
		`SELECT value FROM interned WHERE tbl = ? AND id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{table, id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value, found = stmt.ColumnText(0), true
				return nil
			},
		})
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%s[%d]: %w", table, id, factdb.ErrNotFound)
	}
	return value, nil
}

// LoadedUnits lists merged units in name order.
func (s *Store) LoadedUnits() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var units []string
	err := sqlitex.ExecuteTransient(s.conn, `SELECT name FROM loaded_units ORDER BY name`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			units = append(units, stmt.ColumnText(0))
			return nil
		}})
	return units, err
}

func (s *Store) count(q string, args ...any) (int64, error) {
	var n int64
	err := sqlitex.ExecuteTransient(s.conn, q, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("query %q: %w", q, err)
	}
	return n, nil
}

func tableName(relation string) string {
	return `"rel_` + relation + `"`
}

func schemaErrf(name, format string, args ...any) error {
	return &factdb.SchemaError{Namespace: factdb.NamespaceRelations, Name: name, Reason: fmt.Sprintf(format, args...)}
}

// tableOrder sorts interning tables so that every table comes after the
// tables its fields reference.
func tableOrder(schema *factdb.Schema) ([]string, error) {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var order []string
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("interning table %q references itself", name)
		}
		state[name] = visiting
		for _, c := range schema.InterningTables[name].Fields {
			if c.Table != "" {
				if err := visit(c.Table); err != nil {
					return err
				}
			}
		}
		state[name] = done
		order = append(order, name)
		return nil
	}
	names := make([]string, 0, len(schema.InterningTables))
	for name := range schema.InterningTables {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, errors.Join(factdb.ErrSchema, err)
		}
	}
	return order, nil
}
