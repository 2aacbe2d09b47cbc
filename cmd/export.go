package cmd

import (
	"couchtransfer/internal/common"
	"couchtransfer/internal/docfile"
	"couchtransfer/internal/exporter"
	"couchtransfer/internal/flags"
	"couchtransfer/internal/logging"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd(logs *logging.Manager) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a database into a JSON file",
		Long: `Export every document of a CouchDB database into a local JSON file.
Documents are fetched page by page and written once as {"docs": [...]},
keeping their _id and _rev so the file can be imported elsewhere.`,
		Example: `  couchtransfer export --host localhost --user admin --password secret --database users --file users.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, logs)
		},
	}

	flags.AddConnectionFlags(cmd)
	flags.AddFileFlag(cmd, "Path of the JSON file to write.")
	flags.AddExportFlags(cmd)
	flags.AddAutoApproveFlag(cmd)
	flags.AddNoProgressFlag(cmd)
	flags.AddMetricsFlags(cmd)
	return cmd
}

func runExport(cmd *cobra.Command, logs *logging.Manager) error {
	env, err := prepare(cmd, logs)
	if err != nil {
		return err
	}
	defer env.close()
	cfg := env.cfg
	out := cmd.OutOrStdout()

	file := docfile.New(cfg.File)
	exists, err := file.Exists()
	if err != nil {
		return err
	}
	if exists && !cfg.AutoApprove {
		prompt := fmt.Sprintf("File %s already exists. Overwrite it? (y/N) ", cfg.File)
		ok, err := common.Confirm(cmd.InOrStdin(), out, prompt)
		if errors.Is(err, common.ErrNoAnswer) {
			return &common.ConfigError{
				Op:     "confirm overwrite",
				Reason: fmt.Sprintf("%s already exists and no answer was read; use --auto-approve to overwrite it", cfg.File),
				Err:    err,
			}
		}
		if !ok {
			fmt.Fprintln(out, "Export cancelled.")
			return nil
		}
	}

	fmt.Fprintf(out, "Exporting database '%s' from %s as %s into %s\n", cfg.Database, cfg.GetBaseURL(), cfg.User, cfg.File)

	exp := exporter.New(env.client, file, env.client.Database(), exporter.Options{
		PageSize:    cfg.PageSize,
		Concurrency: cfg.Concurrency,
		MaxRetries:  cfg.MaxRetries,
	},
		exporter.WithReporter(env.reporter),
		exporter.WithRecorder(env.recorder),
		exporter.WithLogger(env.logger),
	)

	summary, err := exp.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(out, "Documents expected: %s\n", common.FormatNumber(int(summary.Expected)))
	fmt.Fprintf(out, "Documents written: %s\n", common.FormatNumber(int(summary.Transferred)))
	return finish(out, summary)
}
