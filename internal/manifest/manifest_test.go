package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/dwsmith1983/factcorpus/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDeclaresOneDependency(t *testing.T) {
	data, err := Render(types.CorpusEntry{ID: "1", Name: "serde", Version: "1.0.100"})
	require.NoError(t, err)

	var doc document
	_, err = toml.Decode(string(data), &doc)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"serde": "1.0.100"}, doc.Dependencies)
	assert.Equal(t, "2018", doc.Package.Edition)
	assert.Contains(t, string(data), "[dependencies]\nserde = \"1.0.100\"\n")
}

func TestWriteOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultName)

	require.NoError(t, Write(path, types.CorpusEntry{ID: "1", Name: "rand", Version: "0.7.3"}))
	require.NoError(t, Write(path, types.CorpusEntry{ID: "2", Name: "libc", Version: "0.2.66"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `libc = "0.2.66"`)
	assert.NotContains(t, string(data), "rand")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteDoesNotValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultName)
	require.NoError(t, Write(path, types.CorpusEntry{ID: "x", Name: "not a crate!", Version: "??"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"not a crate!" = "??"`)
}

func TestWriteUnwritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", DefaultName)
	err := Write(path, types.CorpusEntry{ID: "1", Name: "rand", Version: "0.7.3"})
	assert.Error(t, err)
}
