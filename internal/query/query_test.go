package query

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/factcorpus/internal/factdb"
)

func loadFixture(t *testing.T) *factdb.Database {
	t.Helper()
	db, err := factdb.Load("../../testdata/fixture/output/extractor_test_4b1f2c9e.json")
	require.NoError(t, err)
	return db
}

func TestRunCounters(t *testing.T) {
	rows, err := Run(context.Background(), loadFixture(t), "", CounterPredicate)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{"functions", int64(23)},
		{"modules", int64(3)},
		{"statics", int64(1)},
		{"unsafe_block_count", int64(10)},
	}, rows)
}

func TestRunJoinsAcrossTables(t *testing.T) {
	const program = `
unsafe_fn(Name) :-
  function_definitions(Def, "Unsafe"),
  def_paths(Def, _, Path),
  strings(Path, Name).
`
	rows, err := Run(context.Background(), loadFixture(t), program, "unsafe_fn")
	require.NoError(t, err)
	require.Len(t, rows, 11)
	assert.Equal(t, Row{"extractor_test.T.test3"}, rows[0])
	for _, r := range rows {
		assert.NotContains(t, r[0], "test5")
	}
}

func TestRunRelationWithoutProgram(t *testing.T) {
	rows, err := Run(context.Background(), loadFixture(t), "", "traits")
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(8)}, {int64(25)}}, rows)
}

func TestRunUnknownPredicate(t *testing.T) {
	_, err := Run(context.Background(), loadFixture(t), "", "loops")
	assert.ErrorIs(t, err, ErrUnknownPredicate)
}

func TestRunParseError(t *testing.T) {
	_, err := Run(context.Background(), loadFixture(t), "broken(", "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse error")
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, loadFixture(t), "", CounterPredicate)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRender(t *testing.T) {
	b := factdb.NewBuilder()
	name := b.InternString("strings", "say \"hi\"\n")
	b.Intern("paths", factdb.TupleValue(factdb.Int(int64(name))))
	require.NoError(t, b.Insert("flags", factdb.Int(0), factdb.Bool(true)))
	require.NoError(t, b.SetCounter("modules", 2))
	db, err := b.Build()
	require.NoError(t, err)

	var sb strings.Builder
	Render(&sb, db)
	assert.Equal(t, `flags(0, /true).
counter("modules", 2).
paths(0, 0).
strings(0, "say \"hi\"\n").
`, sb.String())

	rows, err := Run(context.Background(), db, "", "flags")
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(0), true}}, rows)
}
