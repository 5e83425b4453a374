package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/harrison/dirstat/internal/pipeline"
)

// WorkerCommandName is the hidden verb workers are started with
const WorkerCommandName = "worker"

// exitFunc ends a worker process with its exit code
var exitFunc = os.Exit

// NewWorkerCommand creates the hidden command that runs inside worker
// processes. Its exit code is part of the worker contract, so it exits
// directly instead of returning an error to cobra.
func NewWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:                WorkerCommandName + " <produce|convert|sentences> [args]",
		Short:              "Run a pipeline worker (internal)",
		Hidden:             true,
		DisableFlagParsing: true,
		Run: func(cmd *cobra.Command, args []string) {
			exitFunc(pipeline.RunWorker(args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr()))
		},
	}
}
