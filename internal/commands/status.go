package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/factcorpus/internal/corpus"
	"github.com/dwsmith1983/factcorpus/internal/provider"
	"github.com/dwsmith1983/factcorpus/internal/runlog"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [entry-id]",
		Short: "Show corpus progress, or the attempts on one entry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return showProgress(cmd.OutOrStdout(), e.cfg)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			store, err := newStore(ctx, e.cfg, e.logger)
			if err != nil {
				return fmt.Errorf("creating job store: %w", err)
			}
			defer func() { _ = store.Close() }()
			return showEntry(ctx, cmd.OutOrStdout(), store, args[0])
		},
	}
	return cmd
}

func showProgress(w io.Writer, cfg *types.ProjectConfig) error {
	entries, err := corpus.Load(cfg.Corpus)
	if err != nil {
		return err
	}
	records, err := runlog.ReadFile(cfg.LogPath)
	if err != nil {
		return err
	}
	sum := runlog.Summarize(records)

	pending := 0
	for _, e := range entries {
		if !sum.Finished[e.ID] && sum.Failed[e.ID] == "" && sum.InFlight != e.ID {
			pending++
		}
	}

	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Corpus: %d entries\n", len(entries))
	fmt.Fprintf(w, "  %-12s %s\n", "finished", color.GreenString("%d", len(sum.Finished)))
	fmt.Fprintf(w, "  %-12s %s\n", "failed", color.RedString("%d", len(sum.Failed)))
	fmt.Fprintf(w, "  %-12s %d\n", "pending", pending)
	if sum.InFlight != "" {
		fmt.Fprintf(w, "  %-12s %s\n", "interrupted", color.YellowString("%s", sum.InFlight))
	}
	if sum.LastCompleted != "" {
		fmt.Fprintf(w, "  %-12s %s\n", "last", sum.LastCompleted)
	}

	if len(sum.Failed) > 0 {
		fmt.Fprintln(w)
		_, _ = bold.Fprintln(w, "Failed entries:")
		for _, e := range entries {
			if msg, ok := sum.Failed[e.ID]; ok {
				fmt.Fprintf(w, "  %s %s: %s\n", color.RedString("✗"), e.ID, msg)
			}
		}
	}
	return nil
}

func showEntry(ctx context.Context, w io.Writer, store provider.JobStore, id string) error {
	jobs, err := store.ListJobs(ctx, id)
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no build jobs recorded for %s", id)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Entry: %s\n", id)
	for _, j := range jobs {
		outcome := string(j.Outcome)
		switch {
		case j.Outcome == types.OutcomeSuccess:
			outcome = color.GreenString("%s", outcome)
		case j.Outcome == types.OutcomeTimeout:
			outcome = color.YellowString("%s", outcome)
		default:
			outcome = color.RedString("%s", outcome)
		}
		fmt.Fprintf(w, "  %s  run=%s attempt=%d %s  %s  exit=%d\n",
			j.ID, j.RunID, j.Attempt, outcome, j.StartedAt.Format(time.RFC3339), j.ExitCode)
		if j.Message != "" {
			fmt.Fprintf(w, "      %s\n", j.Message)
		}
		for _, f := range j.FactFiles {
			fmt.Fprintf(w, "      %s\n", f)
		}
	}
	return nil
}
