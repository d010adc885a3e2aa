package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/factcorpus/internal/corpusdb"
	"github.com/dwsmith1983/factcorpus/internal/factdb"
	"github.com/dwsmith1983/factcorpus/internal/orchestrator"
)

// DefaultCorpusDB is the merged database file name under the output dir.
const DefaultCorpusDB = "corpus.db"

// NewMergeCmd creates the merge command.
func NewMergeCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge every promoted fact database into the corpus database",
		Long: `Loads the fact databases of every successfully compiled unit and merges
them into one SQLite database with corpus-wide interned ids. Units already
merged are skipped, so merge can be re-run after every compile.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			schema, err := loadSchema(e.cfg)
			if err != nil {
				return err
			}
			if dbPath == "" {
				dbPath = e.cfg.CorpusDB
			}
			if dbPath == "" {
				dbPath = filepath.Join(e.cfg.OutputDir, DefaultCorpusDB)
			}

			units, err := promotedUnits(e.cfg.OutputDir)
			if err != nil {
				return err
			}

			store, err := corpusdb.Open(dbPath, schema, e.logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var merged, skipped int
			for _, unit := range units {
				files, err := factdb.LoadDir(cmd.Context(), filepath.Join(e.cfg.OutputDir, unit), schema)
				if err != nil {
					return err
				}
				for _, f := range files {
					ok, err := store.Merge(cmd.Context(), unit+"/"+strings.TrimSuffix(f.Name(), factdb.FileExt), f.DB)
					if err != nil {
						return fmt.Errorf("merging %s: %w", f.Path, err)
					}
					if ok {
						merged++
					} else {
						skipped++
					}
				}
			}
			e.logger.Info("merge finished", "db", dbPath, "units", len(units), "merged", merged, "skipped", skipped)
			fmt.Fprintf(cmd.OutOrStdout(), "merged %d fact databases (%d already loaded) into %s\n", merged, skipped, dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "corpus database path (default: corpusDB or <outputDir>/corpus.db)")
	return cmd
}

// promotedUnits lists unit directories under out that carry the success
// marker, in name order.
func promotedUnits(out string) ([]string, error) {
	entries, err := os.ReadDir(out)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var units []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if _, err := os.Stat(filepath.Join(out, e.Name(), orchestrator.SuccessMarker)); err != nil {
			continue
		}
		units = append(units, e.Name())
	}
	return units, nil
}
