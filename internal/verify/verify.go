// Package verify checks the fact databases produced for a known input
// against literal expectations.
package verify

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/factcorpus/internal/factdb"
	"github.com/dwsmith1983/factcorpus/internal/orchestrator"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// Expectation lists the literal facts a verification input must produce.
// Nil and empty fields are not checked.
type Expectation struct {
	Files     *int             `yaml:"files,omitempty"`
	Database  string           `yaml:"database,omitempty"`
	Jobs      *int             `yaml:"jobs,omitempty"`
	Builds    *int             `yaml:"builds,omitempty"`
	Counters  map[string]int64 `yaml:"counters,omitempty"`
	Relations map[string]int   `yaml:"relations,omitempty"`
	Symbols   *Symbols         `yaml:"symbols,omitempty"`
}

// Symbols are values that must all be interned in Table.
type Symbols struct {
	Table  string   `yaml:"table"`
	Values []string `yaml:"values"`
}

// LoadExpectation reads an Expectation from a YAML file.
func LoadExpectation(path string) (*Expectation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading expectation: %w", err)
	}
	var exp Expectation
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("parsing expectation %s: %w", path, err)
	}
	if exp.Symbols != nil && exp.Symbols.Table == "" {
		return nil, fmt.Errorf("parsing expectation %s: symbols.table is required", path)
	}
	return &exp, nil
}

// AssertionFailure is one expectation that did not hold.
type AssertionFailure struct {
	Check    string
	Expected any
	Actual   any
}

func (f AssertionFailure) Error() string {
	return fmt.Sprintf("%s: expected %v, got %v", f.Check, f.Expected, f.Actual)
}

// Failures is returned by Run when any expectation failed.
type Failures []AssertionFailure

func (fs Failures) Error() string {
	msgs := make([]string, len(fs))
	for i, f := range fs {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d verification failure(s): %s", len(fs), strings.Join(msgs, "; "))
}

// Check compares the fact files and the run's jobs with exp and returns
// every failed assertion.
func Check(exp *Expectation, files []factdb.File, jobs []types.BuildJob) []AssertionFailure {
	var out []AssertionFailure
	fail := func(check string, want, got any) {
		out = append(out, AssertionFailure{Check: check, Expected: want, Actual: got})
	}

	if exp.Jobs != nil && len(jobs) != *exp.Jobs {
		fail("jobs", *exp.Jobs, len(jobs))
	}
	if exp.Files != nil && len(files) != *exp.Files {
		fail("files", *exp.Files, len(files))
	}

	db, err := selectDatabase(files, exp.Database)
	if err != nil {
		fail("database", exp.Database, err.Error())
		return out
	}

	if exp.Builds != nil {
		got := 0
		if tbl, ok := db.Table("builds"); ok {
			got = tbl.Len()
		}
		if got != *exp.Builds {
			fail("builds", *exp.Builds, got)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(exp.Counters)) {
		want := exp.Counters[name]
		check := "counter " + name
		e, err := factdb.Lookup(db, name)
		switch {
		case err != nil:
			fail(check, want, err.Error())
		case e.Kind != factdb.EntryCounter:
			fail(check, want, "a "+e.Kind.String())
		case e.Counter != want:
			fail(check, want, e.Counter)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(exp.Relations)) {
		want := exp.Relations[name]
		check := "relation " + name
		e, err := factdb.Lookup(db, name)
		switch {
		case err != nil:
			fail(check, want, err.Error())
		case e.Kind != factdb.EntryRelation:
			fail(check, want, "a "+e.Kind.String())
		case len(e.Facts) != want:
			fail(check, want, len(e.Facts))
		}
	}

	if exp.Symbols != nil {
		check := "symbols in " + exp.Symbols.Table
		tbl, ok := db.Table(exp.Symbols.Table)
		if !ok {
			fail(check, len(exp.Symbols.Values), "no such interning table")
			return out
		}
		var missing []string
		for _, v := range exp.Symbols.Values {
			if !tbl.Contains(v) {
				missing = append(missing, v)
			}
		}
		if len(missing) > 0 {
			fail(check, "all present", "missing "+strings.Join(missing, ", "))
		}
	}
	return out
}

// selectDatabase picks the single file whose name starts with prefix, or
// the only file when prefix is empty.
func selectDatabase(files []factdb.File, prefix string) (*factdb.Database, error) {
	var match []factdb.File
	for _, f := range files {
		if strings.HasPrefix(f.Name(), prefix) {
			match = append(match, f)
		}
	}
	switch len(match) {
	case 0:
		return nil, errors.New("no matching fact database")
	case 1:
		return match[0].DB, nil
	default:
		names := make([]string, len(match))
		for i, f := range match {
			names[i] = f.Name()
		}
		return nil, fmt.Errorf("ambiguous: %s", strings.Join(names, ", "))
	}
}

// Run compiles entry through o and checks the result. Pipeline errors are
// returned as is; failed expectations are returned as Failures.
func Run(ctx context.Context, o *orchestrator.Orchestrator, entry types.CorpusEntry, exp *Expectation) error {
	sum, err := o.Run(ctx, []types.CorpusEntry{entry})
	if err != nil {
		return fmt.Errorf("building %s: %w", entry.ID, err)
	}
	files, err := factdb.LoadDir(ctx, o.UnitDir(entry), nil)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if fs := Check(exp, files, sum.Jobs); len(fs) > 0 {
		return Failures(fs)
	}
	return nil
}
