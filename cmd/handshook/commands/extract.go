package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Prakashmaheshwaran/handshook/internal/htmlimport"
	"github.com/Prakashmaheshwaran/handshook/pkg/logging"
)

var extractDir string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract job IDs from saved pages",
	Long: `Scan the saved-pages directory and print the job IDs found, one per
line as CSV with a job_id header. Useful for checking what a run would
process without applying to anything.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractDir, "dir", "html", "directory containing saved search pages")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logging.New("warn", false)
	defer log.Sync()

	ids, err := htmlimport.ScanDir(extractDir, log)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no job IDs found in %s — save search result pages there first\n", extractDir)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), "job_id")
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
