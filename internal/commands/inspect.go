package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/factcorpus/internal/config"
	"github.com/dwsmith1983/factcorpus/internal/factdb"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// NewInspectCmd creates the inspect command.
func NewInspectCmd() *cobra.Command {
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Validate a fact database and list its contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := resolveSchema(cmd, schemaPath)
			if err != nil {
				return err
			}
			db, err := factdb.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printInventory(out, db)
			if err := schema.Validate(db); err != nil {
				_, _ = color.New(color.FgRed).Fprintf(out, "✗ %v\n", err)
				return fmt.Errorf("%s does not conform to the schema", args[0])
			}
			_, _ = color.New(color.FgGreen).Fprintf(out, "✓ conforms to schema %s\n", schema.Fingerprint())
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file (default: project schema or built-in)")
	return cmd
}

// NewGetCmd creates the get command.
func NewGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <file> <name>",
		Short: "Print a relation, counter or interning table by name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := factdb.Load(args[0])
			if err != nil {
				return err
			}
			e, err := factdb.Lookup(db, args[1])
			if err != nil {
				return err
			}
			printEntry(cmd.OutOrStdout(), e)
			return nil
		},
	}
}

// resolveSchema prefers an explicit path, then the project config when
// one exists, then the built-in schema.
func resolveSchema(cmd *cobra.Command, path string) (*factdb.Schema, error) {
	if path != "" {
		return factdb.LoadSchema(path)
	}
	dir, _ := cmd.Flags().GetString(flagDir)
	cfg, err := config.Load(dir)
	if err != nil {
		cfg = &types.ProjectConfig{}
	}
	return loadSchema(cfg)
}

func printInventory(w io.Writer, db *factdb.Database) {
	bold := color.New(color.Bold)
	section := func(title string, names []string, size func(string) int) {
		if len(names) == 0 {
			return
		}
		_, _ = bold.Fprintln(w, title)
		for _, n := range names {
			fmt.Fprintf(w, "  %-32s %d\n", n, size(n))
		}
	}
	section("Relations:", db.RelationNames(), func(n string) int {
		r, _ := db.Relation(n)
		return r.Len()
	})
	section("Counters:", db.CounterNames(), func(n string) int {
		v, _ := db.Counter(n)
		return int(v)
	})
	section("Interning tables:", db.TableNames(), func(n string) int {
		t, _ := db.Table(n)
		return t.Len()
	})
}

func printEntry(w io.Writer, e factdb.Entry) {
	switch e.Kind {
	case factdb.EntryRelation:
		for _, f := range e.Facts {
			fmt.Fprintln(w, f.String())
		}
	case factdb.EntryCounter:
		fmt.Fprintln(w, e.Counter)
	case factdb.EntryTable:
		for i, v := range e.Values {
			fmt.Fprintf(w, "%d\t%s\n", i, v.String())
		}
	}
}
