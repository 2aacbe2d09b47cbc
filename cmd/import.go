package cmd

import (
	"couchtransfer/internal/common"
	"couchtransfer/internal/docfile"
	"couchtransfer/internal/flags"
	"couchtransfer/internal/importer"
	"couchtransfer/internal/logging"
	"couchtransfer/internal/worker"
	"fmt"

	"github.com/spf13/cobra"
)

func newImportCmd(logs *logging.Manager) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a JSON file into a database",
		Long: `Import the documents of a {"docs": [...]} JSON file into a CouchDB database.
Documents are sent in bulk batches with new_edits=false so existing revisions
are kept as they are. Batches are sent concurrently; a failed batch does not
stop the others.`,
		Example: `  couchtransfer import --host localhost --user admin --password secret --database users --file users.json --create`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd, logs)
		},
	}

	flags.AddConnectionFlags(cmd)
	flags.AddFileFlag(cmd, "Path of the JSON file to read.")
	flags.AddImportFlags(cmd, worker.DefaultWorkers)
	flags.AddNoProgressFlag(cmd)
	flags.AddMetricsFlags(cmd)
	return cmd
}

func runImport(cmd *cobra.Command, logs *logging.Manager) error {
	env, err := prepare(cmd, logs)
	if err != nil {
		return err
	}
	defer env.close()
	cfg := env.cfg
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Importing %s into database '%s' at %s as %s\n", cfg.File, cfg.Database, cfg.GetBaseURL(), cfg.User)

	imp := importer.New(docfile.New(cfg.File), env.client, env.client.Database(), importer.Options{
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.Concurrency,
		MaxRetries:  cfg.MaxRetries,
		Create:      cfg.Create,
	},
		importer.WithReporter(env.reporter),
		importer.WithRecorder(env.recorder),
		importer.WithLogger(env.logger),
	)

	summary, err := imp.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintf(out, "Documents read: %s\n", common.FormatNumber(int(summary.Expected)))
	fmt.Fprintf(out, "Documents inserted: %s\n", common.FormatNumber(int(summary.Transferred)))
	return finish(out, summary)
}
