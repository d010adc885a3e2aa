// Package manifest synthesizes the single-dependency build manifest that
// pins one corpus entry for isolated compilation.
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// DefaultName is the manifest file name the toolchain looks for.
const DefaultName = "Cargo.toml"

type packageSection struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Edition string `toml:"edition"`
}

type document struct {
	Package      packageSection    `toml:"package"`
	Dependencies map[string]string `toml:"dependencies"`
}

// Render returns the manifest declaring exactly one dependency on entry.
// Name and version are not validated; a malformed entry fails later in
// the compiler.
func Render(entry types.CorpusEntry) ([]byte, error) {
	doc := document{
		Package: packageSection{
			Name:    "factcorpus-dummy",
			Version: "0.1.0",
			Edition: "2018",
		},
		Dependencies: map[string]string{entry.Name: entry.Version},
	}
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding manifest for %s: %w", entry.ID, err)
	}
	return buf.Bytes(), nil
}

// Write renders the manifest for entry and replaces the file at path. The
// new content is written to a sibling temp file first, so an interrupted
// write never leaves a truncated manifest behind.
func Write(path string, entry types.CorpusEntry) (err error) {
	data, err := Render(entry)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}
