// Package commands wires the CLI surface. All business logic lives in the
// internal packages; commands only load configuration, open collaborators
// and print results.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Prakashmaheshwaran/handshook/internal/config"
	"github.com/Prakashmaheshwaran/handshook/internal/store"
	"github.com/Prakashmaheshwaran/handshook/pkg/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "handshook",
	Short:         "Automated job applications for Handshake",
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `handshook — automated job applications for Handshake.

Discovers postings from saved search pages (html/ directory) or the live
postings API, filters them against your keyword interest list, and applies
with your stored resume, cover letter and transcript document IDs.

State lives in a local ledger database: jobs already applied to are never
resubmitted, and postings whose application window is not open yet are
parked and retried on every run until they resolve.

Run one instance at a time per ledger — concurrent runs can double-apply.

Examples:
  handshook run                    # process saved pages or the live search
  handshook extract                # list job IDs found in saved pages
  handshook history                # show every recorded application
  handshook deferred               # show the wait list`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "conf.toml", "path to the run configuration")
	rootCmd.AddCommand(runCmd, extractCmd, historyCmd, deferredCmd, versionCmd)
}

// Execute runs the CLI. Errors are printed here once; commands keep
// SilenceErrors so they are not double-reported.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "handshook: %v\n", err)
	}
	return err
}

// openStore opens the configured ledger backend.
func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		return store.OpenPostgres(ctx, cfg.Storage.DSN, log)
	default:
		return store.OpenSQLite(cfg.Storage.Path, log)
	}
}
