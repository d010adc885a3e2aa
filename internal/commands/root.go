package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the factcorpus command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "factcorpus",
		Short: "Compile a package corpus into validated fact databases",
		Long: `factcorpus compiles every package of a corpus with an instrumented
compiler replacement, one unit at a time, and keeps the fact databases it
emits. Progress is recorded in an append-only run log so an interrupted
run resumes where it stopped.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String(flagDir, ".", "project directory holding factcorpus.yaml")
	root.PersistentFlags().String(flagLogLevel, "info", "log level: debug, info, warn or error")

	root.AddCommand(
		NewInitCmd(),
		NewCompileCmd(),
		NewStatusCmd(),
		NewCheckCmd(),
		NewInspectCmd(),
		NewGetCmd(),
		NewMergeCmd(),
		NewQueryCmd(),
		NewVerifyCmd(),
	)
	return root
}
