package factdb

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Encode writes db in the JSON interchange form read by Decode.
func Encode(w io.Writer, db *Database) error {
	out := struct {
		Relations       map[string]relationJSON `json:"relations"`
		Counters        map[string]int64        `json:"counters"`
		InterningTables map[string]tableJSON    `json:"interning_tables"`
	}{
		Relations:       make(map[string]relationJSON, len(db.relations)),
		Counters:        db.counters,
		InterningTables: make(map[string]tableJSON, len(db.interningTables)),
	}
	for name, rel := range db.relations {
		facts := rel.facts
		if facts == nil {
			facts = []Fact{}
		}
		out.Relations[name] = relationJSON{Facts: &facts}
	}
	for name, t := range db.interningTables {
		values := t.values
		if values == nil {
			values = []Value{}
		}
		out.InterningTables[name] = tableJSON{Contents: &values}
	}
	if out.Counters == nil {
		out.Counters = map[string]int64{}
	}
	return json.NewEncoder(w).Encode(out)
}

// Save writes db to path atomically: readers see either the previous file
// or the complete new one, never a partial database.
func Save(path string, db *Database) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".factdb-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Encode(tmp, db); err != nil {
		return fmt.Errorf("encoding fact database: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("syncing fact database: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing fact database: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming fact database: %w", err)
	}
	return nil
}
