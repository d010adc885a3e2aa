package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/factcorpus/internal/factdb"
	"github.com/dwsmith1983/factcorpus/internal/query"
)

// NewQueryCmd creates the query command.
func NewQueryCmd() *cobra.Command {
	var factLimit int

	cmd := &cobra.Command{
		Use:   "query <program> <predicate> <file>",
		Short: "Evaluate a Mangle program over a fact database",
		Long: `Renders the fact database as Mangle facts (relations by name,
counter(name, value), interning tables as table(id, ...)), appends the
program and prints the rows of predicate.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading program: %w", err)
			}
			db, err := factdb.Load(args[2])
			if err != nil {
				return err
			}
			rows, err := query.RunWithOptions(cmd.Context(), db, string(program), args[1], query.Options{FactLimit: factLimit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range rows {
				fmt.Fprintln(out, r.String())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&factLimit, "fact-limit", query.DefaultFactLimit, "maximum number of derived facts")
	return cmd
}
