// Package cmd implements the partsync command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/partsync/partsync/pkg/logging"
)

var (
	configDir   string
	catalogPath string
	verbose     bool

	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "partsync",
	Short: "Electronic part importer",
	Long: `Partsync imports electronic component data from supplier APIs into
a parts catalog. It searches the configured suppliers for each given
identifier, merges what they return into one canonical record, and
reconciles that record with the catalog without clobbering manual edits.`,
	PersistentPreRunE: setupCommand,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the CLI with signal-aware cancellation.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupCommand loads .env credentials and configures logging before any
// subcommand runs.
func setupCommand(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	logger := logging.NewConsole()
	logging.SetDefault(logger)
	cmd.SetContext(logging.WithLogger(cmd.Context(), &logger))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config-dir", "c", ".",
		"directory holding config.yaml, suppliers.yaml and the taxonomy files")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "partsync.db",
		"path of the SQLite catalog database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
}
