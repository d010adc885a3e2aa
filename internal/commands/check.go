package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/factcorpus/internal/corpus"
	"github.com/dwsmith1983/factcorpus/internal/report"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	var (
		scan     bool
		examples int
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report why failed units did not compile",
		Long: `Classifies the build log of every entry whose latest attempt failed.
With --scan every log in the build log directory is classified instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			if e.cfg.BuildLogDir == "" {
				return fmt.Errorf("buildLogDir is not configured")
			}

			var r *report.Report
			if scan {
				r, err = report.Scan(e.cfg.BuildLogDir)
			} else {
				r, err = reportFromStore(cmd.Context(), e)
			}
			if err != nil {
				return err
			}
			return r.Write(cmd.OutOrStdout(), examples)
		},
	}

	cmd.Flags().BoolVar(&scan, "scan", false, "classify every build log instead of the latest failed attempts")
	cmd.Flags().IntVar(&examples, "examples", 5, "example paths printed per category")
	return cmd
}

func reportFromStore(ctx context.Context, e *env) (*report.Report, error) {
	entries, err := corpus.Load(e.cfg.Corpus)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	store, err := newStore(ctx, e.cfg, e.logger)
	if err != nil {
		return nil, fmt.Errorf("creating job store: %w", err)
	}
	defer func() { _ = store.Close() }()

	var jobs []*types.BuildJob
	for _, entry := range entries {
		list, err := store.ListJobs(ctx, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("listing jobs of %s: %w", entry.ID, err)
		}
		for i := range list {
			jobs = append(jobs, &list[i])
		}
	}
	return report.FromJobs(e.cfg.BuildLogDir, jobs)
}
