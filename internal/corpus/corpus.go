// Package corpus reads the corpus descriptor: the ordered list of
// packages a run compiles.
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dwsmith1983/factcorpus/pkg/types"
	"gopkg.in/yaml.v3"
)

// ErrInvalidEntry is wrapped by every descriptor validation error.
var ErrInvalidEntry = errors.New("invalid corpus entry")

// Load reads the descriptor at path. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON. The JSON form is either a bare
// array of entries or an object with a "crates" array.
func Load(path string) ([]types.CorpusEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	var entries []types.CorpusEntry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		entries, err = parseYAML(data)
	default:
		entries, err = parseJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing corpus %s: %w", path, err)
	}
	if err := Validate(entries); err != nil {
		return nil, fmt.Errorf("corpus %s: %w", path, err)
	}
	return entries, nil
}

type crateList struct {
	Crates []types.CorpusEntry `json:"crates" yaml:"crates"`
}

func parseJSON(data []byte) ([]types.CorpusEntry, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var list crateList
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return list.Crates, nil
	}
	var entries []types.CorpusEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseYAML(data []byte) ([]types.CorpusEntry, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.MappingNode {
		var list crateList
		if err := node.Decode(&list); err != nil {
			return nil, err
		}
		return list.Crates, nil
	}
	var entries []types.CorpusEntry
	if err := node.Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Validate checks that ids are present, unique and safe to write into
// the run log. Ids, names and versions become file names under the
// output and build log directories, so none may contain a path separator.
func Validate(entries []types.CorpusEntry) error {
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		switch {
		case e.ID == "":
			return fmt.Errorf("%w: entry %d has no id", ErrInvalidEntry, i)
		case strings.ContainsAny(e.ID, ",\r\n"):
			return fmt.Errorf("%w: id %q contains a comma or line break", ErrInvalidEntry, e.ID)
		case e.Name == "":
			return fmt.Errorf("%w: entry %s has no name", ErrInvalidEntry, e.ID)
		}
		for _, field := range []struct{ key, value string }{
			{"id", e.ID}, {"name", e.Name}, {"version", e.Version},
		} {
			if !fileNameSafe(field.value) {
				return fmt.Errorf("%w: entry %s: %s %q is not a plain file name", ErrInvalidEntry, e.ID, field.key, field.value)
			}
		}
		if prev, ok := seen[e.ID]; ok {
			return fmt.Errorf("%w: id %s used by entries %d and %d", ErrInvalidEntry, e.ID, prev, i)
		}
		seen[e.ID] = i
	}
	return nil
}

func fileNameSafe(s string) bool {
	return !strings.ContainsAny(s, "/\\\x00") && s != "." && s != ".."
}

// Find returns the entry with the given id.
func Find(entries []types.CorpusEntry, id string) (types.CorpusEntry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return types.CorpusEntry{}, false
}
