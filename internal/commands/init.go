package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/factcorpus/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [project-dir]",
		Short: "Initialize a new factcorpus project",
		Long:  "Creates factcorpus.yaml, an example corpus list and the working directories.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing factcorpus.yaml")
	return cmd
}

const starterConfig = `# Corpus build configuration. Relative paths are resolved against this
# directory and ${VAR} references are expanded (a .env file is read first).
corpus: ./corpus.json
compilationDir: ./work/build
logPath: ./work/run.log
cacheDir: ./work/cache
outputDir: ./work/output
buildLogDir: ./work/logs
compilerPath: ${FACTCORPUS_COMPILER}
command: [cargo, build]
timeout: 20m
mode: all
onFailure: abort
retries: 0
jobStore:
  provider: sqlite
alerts:
  - type: console
`

const starterCorpus = `[
  {"id": "serde-1.0.0", "name": "serde", "version": "1.0.0"}
]
`

const starterEnv = `# Path of the instrumented compiler replacement.
FACTCORPUS_COMPILER=/usr/local/bin/rustc-facts
`

func runInit(cmd *cobra.Command, dir string, force bool) error {
	out := cmd.OutOrStdout()
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(out, "Initializing factcorpus project in %s\n", dir)

	for _, d := range []string{"work/build", "work/cache", "work/output", "work/logs"} {
		path := filepath.Join(dir, d)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", path, err)
		}
	}

	configPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	files := []struct {
		name, content string
	}{
		{config.FileName, starterConfig},
		{"corpus.json", starterCorpus},
		{config.EnvFileName, starterEnv},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if f.name != config.FileName && !force {
			if _, err := os.Stat(path); err == nil {
				continue
			}
		}
		if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", f.name, err)
		}
	}

	_, _ = color.New(color.FgGreen).Fprintln(out, "  ✓ Project scaffolded")
	fmt.Fprintln(out)
	_, _ = bold.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  edit %s and %s\n", filepath.Join(dir, config.EnvFileName), filepath.Join(dir, "corpus.json"))
	fmt.Fprintf(out, "  factcorpus --dir %s compile\n", dir)
	return nil
}
