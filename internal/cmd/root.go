package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates and returns the root cobra command for dirstat
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dirstat",
		Short: "Directory statistics through per-entry process pipelines",
		Long: `dirstat walks a directory and, for every entry, runs a small
pipeline of worker processes to write a metadata report.

Directories and symlinks get a report only. Bitmap images are also
converted to grayscale in place. Other regular files are streamed through
a filter that counts the sentences containing a given character; the
counts are summed into a summary file.`,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewWorkerCommand())

	return cmd
}
