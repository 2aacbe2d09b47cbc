package flags

import (
	"couchtransfer/internal/chunk"

	"github.com/spf13/cobra"
)

// AddConnectionFlags adds document store connection flags to the command.
func AddConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("protocol", "http", "Protocol used to reach the database (http or https).")
	cmd.Flags().String("host", "", "Database host.")
	cmd.Flags().Int("port", 5984, "Database port. Port 443 forces https.")
	cmd.Flags().String("user", "", "Database username.")
	cmd.Flags().String("password", "", "Database password.")
	cmd.Flags().String("database", "", "Database (collection) name.")
	cmd.Flags().Duration("timeout", 0, "Timeout for a single HTTP request (0 disables it).")
}

// AddFileFlag adds the local JSON file flag to the command.
func AddFileFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().String("file", "", usage)
}

// AddExportFlags adds flags that tune paginated export.
func AddExportFlags(cmd *cobra.Command) {
	cmd.Flags().Int("page-size", chunk.DefaultPageSize, "Number of documents fetched per page.")
	cmd.Flags().Int("concurrency", 1, "Number of pages fetched at the same time.")
	cmd.Flags().Int("max-retries", 0, "Maximum number of retries for a failed page.")
}

// AddImportFlags adds flags that tune bulk import.
func AddImportFlags(cmd *cobra.Command, defaultConcurrency int) {
	cmd.Flags().Bool("create", false, "Create the database before importing.")
	cmd.Flags().Int("batch-size", chunk.DefaultBatchSize, "Number of documents sent per bulk request.")
	cmd.Flags().Int("concurrency", defaultConcurrency, "Number of bulk requests in flight at the same time.")
	cmd.Flags().Int("max-retries", 0, "Maximum number of retries for a failed batch.")
}

// AddAutoApproveFlag adds the auto-approve flag to the command.
func AddAutoApproveFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("auto-approve", false, "Skip interactive confirmation prompts.")
}

// AddNoProgressFlag adds the no-progress flag to the command.
func AddNoProgressFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-progress", false, "Disable the progress display.")
}

// AddMetricsFlags adds Prometheus metrics flags to the command.
func AddMetricsFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("metrics-enabled", false, "Expose Prometheus metrics while the transfer runs.")
	cmd.Flags().String("metrics-addr", ":2112", "Address of the metrics HTTP server.")
}

// AddLoggingFlags adds persistent logging flags to the command.
func AddLoggingFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error).")
	cmd.PersistentFlags().String("log-file", "", "Also write logs to this file, rotated by size.")
}
