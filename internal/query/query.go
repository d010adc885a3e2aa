// Package query evaluates Datalog programs over a fact database.
//
// The database is rendered as Mangle facts:
//
//	<relation>(f0, f1, ...).
//	counter("<name>", <value>).
//	<table>(<id>, "<text>").        text interning tables
//	<table>(<id>, f0, f1, ...).     tuple interning tables
//
// and the program is appended before analysis, so its rules can join over
// any of them.
package query

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/dwsmith1983/factcorpus/internal/factdb"
)

// CounterPredicate holds every counter as counter(name, value).
const CounterPredicate = "counter"

// DefaultFactLimit caps how many facts evaluation may derive.
const DefaultFactLimit = 5_000_000

// ErrUnknownPredicate is returned when the requested predicate is neither
// a database name nor defined by the program.
var ErrUnknownPredicate = errors.New("unknown predicate")

// Row is one result tuple. Values are int64, string or bool.
type Row []any

func (r Row) String() string {
	parts := make([]string, len(r))
	for i, v := range r {
		parts[i] = fmt.Sprint(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Options tune evaluation.
type Options struct {
	FactLimit int
}

// Run evaluates program against db and returns the rows of predicate in
// sorted order.
func Run(ctx context.Context, db *factdb.Database, program, predicate string) ([]Row, error) {
	return RunWithOptions(ctx, db, program, predicate, Options{})
}

// RunWithOptions is Run with explicit options.
func RunWithOptions(ctx context.Context, db *factdb.Database, program, predicate string, opts Options) ([]Row, error) {
	if opts.FactLimit <= 0 {
		opts.FactLimit = DefaultFactLimit
	}
	var src strings.Builder
	Render(&src, db)
	src.WriteString("\n")
	src.WriteString(program)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unit, err := parse.Unit(strings.NewReader(src.String()))
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	info, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("analysis error: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	store := factstore.NewSimpleInMemoryStore()
	if _, err := engine.EvalProgramWithStats(info, store, engine.WithCreatedFactLimit(opts.FactLimit)); err != nil {
		return nil, fmt.Errorf("evaluation error: %w", err)
	}

	sym, ok := findPredicate(predicate, slices.Collect(maps.Keys(info.Decls)), store.ListPredicates())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPredicate, predicate)
	}

	var rows []Row
	err = store.GetFacts(ast.NewQuery(sym), func(a ast.Atom) error {
		row := make(Row, len(a.Args))
		for i, arg := range a.Args {
			row[i] = value(arg)
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", predicate, err)
	}
	slices.SortFunc(rows, compareRows)
	return rows, nil
}

func findPredicate(name string, candidates ...[]ast.PredicateSym) (ast.PredicateSym, bool) {
	for _, syms := range candidates {
		for _, sym := range syms {
			if sym.Symbol == name {
				return sym, true
			}
		}
	}
	return ast.PredicateSym{}, false
}

func value(term ast.BaseTerm) any {
	c, ok := term.(ast.Constant)
	if !ok {
		return fmt.Sprint(term)
	}
	switch c.Type {
	case ast.NumberType:
		return c.NumValue
	case ast.StringType:
		return c.Symbol
	case ast.NameType:
		switch c.Symbol {
		case "/true":
			return true
		case "/false":
			return false
		}
		return c.Symbol
	default:
		return c.String()
	}
}

func compareRows(a, b Row) int {
	for i := range min(len(a), len(b)) {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func compareValues(a, b any) int {
	if x, ok := a.(int64); ok {
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
