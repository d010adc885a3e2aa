package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/factcorpus/internal/corpus"
	"github.com/dwsmith1983/factcorpus/internal/orchestrator"
	"github.com/dwsmith1983/factcorpus/internal/verify"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	var expectPath string

	cmd := &cobra.Command{
		Use:   "verify --expect <yaml> [entry-id]",
		Short: "Compile a known input and check its facts against expectations",
		Long: `Runs the full pipeline on one corpus entry and asserts the literal
counts and symbols listed in the expectation file. The entry may be
omitted when the corpus holds exactly one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := verify.LoadExpectation(expectPath)
			if err != nil {
				return err
			}
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			entry, err := pickEntry(e.cfg, args)
			if err != nil {
				return err
			}
			ocfg, err := orchestrator.ConfigFrom(e.cfg)
			if err != nil {
				return err
			}
			p, err := newPipeline(cmd.Context(), e, ocfg)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			out := cmd.OutOrStdout()
			err = verify.Run(cmd.Context(), p.orch, entry, exp)
			var failures verify.Failures
			if errors.As(err, &failures) {
				for _, f := range failures {
					_, _ = color.New(color.FgRed).Fprintf(out, "✗ %s\n", f.Error())
				}
				return fmt.Errorf("%d expectation(s) failed for %s", len(failures), entry.ID)
			}
			if err != nil {
				return err
			}
			_, _ = color.New(color.FgGreen).Fprintf(out, "✓ %s matches %s\n", entry.ID, expectPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&expectPath, "expect", "", "expectation YAML file")
	_ = cmd.MarkFlagRequired("expect")
	return cmd
}

func pickEntry(cfg *types.ProjectConfig, args []string) (types.CorpusEntry, error) {
	entries, err := corpus.Load(cfg.Corpus)
	if err != nil {
		return types.CorpusEntry{}, err
	}
	if len(args) == 1 {
		entry, ok := corpus.Find(entries, args[0])
		if !ok {
			return types.CorpusEntry{}, fmt.Errorf("entry %q is not in the corpus", args[0])
		}
		return entry, nil
	}
	if len(entries) != 1 {
		return types.CorpusEntry{}, fmt.Errorf("corpus has %d entries; name the one to verify", len(entries))
	}
	return entries[0], nil
}
