package cmd

import (
	"context"
	"couchtransfer/internal/flags"
	"couchtransfer/internal/logging"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. logs receives the logging settings of the
// transfer commands.
func NewRootCmd(logs *logging.Manager) *cobra.Command {
	root := &cobra.Command{
		Use:   "couchtransfer",
		Short: "CLI tool to bulk export and import CouchDB databases",
		Long: `A command-line tool to copy every document of a CouchDB database into a
JSON file and to load such a file back into a database, revisions included.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.AddLoggingFlags(root)

	root.AddCommand(
		newExportCmd(logs),
		newImportCmd(logs),
		newVersionCmd(),
		newCompletionCmd(),
	)
	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	logs := logging.NewManager()
	err := NewRootCmd(logs).ExecuteContext(ctx)
	stop()
	_ = logs.Close()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
