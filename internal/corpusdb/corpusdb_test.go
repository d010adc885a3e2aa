package corpusdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/dwsmith1983/factcorpus/internal/factdb"
)

const fixtureDB = "../../testdata/fixture/output/extractor_test_4b1f2c9e.json"

func openTestStore(t *testing.T, path string, schema *factdb.Schema) *Store {
	t.Helper()
	s, err := Open(path, schema, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func loadFixture(t *testing.T) *factdb.Database {
	t.Helper()
	db, err := factdb.Load(fixtureDB)
	require.NoError(t, err)
	return db
}

func TestMergeSkipsLoadedUnit(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "corpus.db"), nil)
	ctx := context.Background()
	db := loadFixture(t)

	merged, err := s.Merge(ctx, "extractor_test-0.1.0", db)
	require.NoError(t, err)
	assert.True(t, merged)

	merged, err = s.Merge(ctx, "extractor_test-0.1.0", db)
	require.NoError(t, err)
	assert.False(t, merged)

	n, err := s.RelationCount("terminators_call")
	require.NoError(t, err)
	assert.Equal(t, int64(18), n)

	total, err := s.CounterTotal("modules")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	units, err := s.LoadedUnits()
	require.NoError(t, err)
	assert.Equal(t, []string{"extractor_test-0.1.0"}, units)
}

func TestMergeSharesInternedValues(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "corpus.db"), nil)
	ctx := context.Background()
	db := loadFixture(t)

	for _, unit := range []string{"a-1.0.0", "b-1.0.0"} {
		merged, err := s.Merge(ctx, unit, db)
		require.NoError(t, err)
		require.True(t, merged)
	}

	for table, want := range map[string]int64{"strings": 38, "def_paths": 35, "builds": 1} {
		n, err := s.InternedLen(table)
		require.NoError(t, err)
		assert.Equal(t, want, n, table)
	}

	n, err := s.RelationCount("function_definitions")
	require.NoError(t, err)
	assert.Equal(t, int64(46), n)

	total, err := s.CounterTotal("functions")
	require.NoError(t, err)
	assert.Equal(t, int64(46), total)

	v, err := s.Interned("strings", 1)
	require.NoError(t, err)
	assert.Equal(t, "extractor_test", v)

	v, err = s.Interned("builds", 0)
	require.NoError(t, err)
	assert.Equal(t, "[1,2,1,3]", v)
}

func TestMergeRemapsIDs(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "corpus.db"), nil)
	ctx := context.Background()

	b := factdb.NewBuilder()
	b.InternString("strings", "")
	b.InternString("strings", "other")
	_, err := s.Merge(ctx, "other-0.1.0", mustBuild(t, b))
	require.NoError(t, err)

	_, err = s.Merge(ctx, "extractor_test-0.1.0", loadFixture(t))
	require.NoError(t, err)

	v, err := s.Interned("strings", 2)
	require.NoError(t, err)
	assert.Equal(t, "extractor_test", v, "fixture id 1 lands after the values already stored")

	v, err = s.Interned("builds", 0)
	require.NoError(t, err)
	assert.Equal(t, "[2,3,2,4]", v)
}

func TestMergeRejectsArityChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.db")
	ctx := context.Background()

	narrow, err := factdb.ParseSchema([]byte("relations:\n  r:\n    - {name: a}\n"))
	require.NoError(t, err)
	wide, err := factdb.ParseSchema([]byte("relations:\n  r:\n    - {name: a}\n    - {name: b}\n"))
	require.NoError(t, err)

	s, err := Open(path, narrow, nil)
	require.NoError(t, err)
	b := factdb.NewBuilder()
	require.NoError(t, b.Insert("r", factdb.Int(1)))
	_, err = s.Merge(ctx, "one", mustBuild(t, b))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s = openTestStore(t, path, wide)
	b = factdb.NewBuilder()
	require.NoError(t, b.Insert("r", factdb.Int(1), factdb.Int(2)))
	_, err = s.Merge(ctx, "two", mustBuild(t, b))
	assert.ErrorIs(t, err, factdb.ErrSchema)

	units, err := s.LoadedUnits()
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, units)
}

func TestMergeRejectsInvalidDatabase(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "corpus.db"), nil)
	b := factdb.NewBuilder()
	require.NoError(t, b.SetCounter("loops", 1))
	_, err := s.Merge(context.Background(), "bad", mustBuild(t, b))
	assert.ErrorIs(t, err, factdb.ErrSchema)
}

func TestRelationCountUnknown(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "corpus.db"), nil)
	_, err := s.RelationCount("terminators_call")
	assert.ErrorIs(t, err, factdb.ErrNotFound)
}

func TestTableOrderRejectsCycles(t *testing.T) {
	schema := &factdb.Schema{InterningTables: map[string]factdb.TableSchema{
		"a": {Fields: []factdb.Column{{Name: "x", Table: "b"}}},
		"b": {Fields: []factdb.Column{{Name: "y", Table: "a"}}},
	}}
	_, err := tableOrder(schema)
	assert.ErrorIs(t, err, factdb.ErrSchema)

	order, err := tableOrder(factdb.DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, []string{"strings", "builds", "def_paths"}, order)
}

func mustBuild(t *testing.T, b *factdb.Builder) *factdb.Database {
	t.Helper()
	db, err := b.Build()
	require.NoError(t, err)
	return db
}

func TestMergeRecoversFromFailedInsert(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "corpus.db"), nil)
	ctx := context.Background()
	db := loadFixture(t)

	_, err := s.Merge(ctx, "a-1.0.0", db)
	require.NoError(t, err)

	require.NoError(t, sqlitex.ExecuteTransient(s.conn,
		`CREATE TRIGGER reject_calls BEFORE INSERT ON rel_terminators_call
		 BEGIN SELECT RAISE(ABORT, 'insert rejected'); END`, nil))
	_, err = s.Merge(ctx, "b-1.0.0", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert rejected")

	units, err := s.LoadedUnits()
	require.NoError(t, err)
	assert.Equal(t, []string{"a-1.0.0"}, units)

	require.NoError(t, sqlitex.ExecuteTransient(s.conn, `DROP TRIGGER reject_calls`, nil))
	merged, err := s.Merge(ctx, "b-1.0.0", db)
	require.NoError(t, err)
	assert.True(t, merged)

	n, err := s.RelationCount("terminators_call")
	require.NoError(t, err)
	assert.Equal(t, int64(36), n)
}
