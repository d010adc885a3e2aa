package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/factcorpus/internal/corpus"
	"github.com/dwsmith1983/factcorpus/internal/orchestrator"
	"github.com/dwsmith1983/factcorpus/internal/telemetry"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// NewCompileCmd creates the compile command.
func NewCompileCmd() *cobra.Command {
	var (
		mode      string
		onFailure string
		timeout   time.Duration
		retries   int
		only      []string
	)

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the corpus, resuming from the run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			ocfg, err := orchestrator.ConfigFrom(e.cfg)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("mode") {
				ocfg.Mode = types.RunMode(mode)
			}
			if flags.Changed("on-failure") {
				ocfg.OnFailure = types.FailurePolicy(onFailure)
			}
			if flags.Changed("timeout") {
				ocfg.Timeout = timeout
			}
			if flags.Changed("retries") {
				ocfg.Retries = retries
			}
			if err := checkOverrides(ocfg); err != nil {
				return err
			}
			return runCompile(cmd, e, ocfg, only)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "override mode: all or first")
	cmd.Flags().StringVar(&onFailure, "on-failure", "", "override failure policy: abort or continue")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "override the per-unit compile timeout")
	cmd.Flags().IntVar(&retries, "retries", 0, "override retries per failed unit")
	cmd.Flags().StringSliceVar(&only, "only", nil, "compile only these entry ids")
	return cmd
}

func checkOverrides(c orchestrator.Config) error {
	switch c.Mode {
	case types.ModeAll, types.ModeFirst:
	default:
		return fmt.Errorf("--mode must be %q or %q", types.ModeAll, types.ModeFirst)
	}
	switch c.OnFailure {
	case types.FailAbort, types.FailContinue:
	default:
		return fmt.Errorf("--on-failure must be %q or %q", types.FailAbort, types.FailContinue)
	}
	if c.Retries < 0 {
		return fmt.Errorf("--retries must not be negative")
	}
	return nil
}

func runCompile(cmd *cobra.Command, e *env, ocfg orchestrator.Config, only []string) error {
	entries, err := corpus.Load(e.cfg.Corpus)
	if err != nil {
		return err
	}
	if len(only) > 0 {
		selected := make([]types.CorpusEntry, 0, len(only))
		for _, id := range only {
			entry, ok := corpus.Find(entries, id)
			if !ok {
				return fmt.Errorf("entry %q is not in the corpus", id)
			}
			selected = append(selected, entry)
		}
		entries = selected
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, e.cfg.Telemetry, e.logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			e.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	p, err := newPipeline(ctx, e, ocfg)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	sum, runErr := p.orch.Run(ctx, entries)
	if sum != nil {
		printSummary(cmd.OutOrStdout(), sum)
	}
	return runErr
}

func printSummary(w io.Writer, sum *orchestrator.Summary) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Run %s\n", sum.RunID)
	for _, j := range sum.Jobs {
		status := color.GreenString("%s", j.Outcome)
		if j.Outcome.Failed() {
			status = color.RedString("%s", j.Outcome)
		}
		fmt.Fprintf(w, "  %-40s attempt=%d %-16s %s\n", j.Entry.ID, j.Attempt, status, j.Duration().Round(time.Millisecond))
		if j.Message != "" && j.Outcome.Failed() {
			fmt.Fprintf(w, "      %s\n", j.Message)
		}
	}
	fmt.Fprintf(w, "  succeeded=%d failed=%d skipped=%d remaining=%d\n",
		sum.Succeeded, sum.Failed, len(sum.Skipped), len(sum.Remaining))
}
