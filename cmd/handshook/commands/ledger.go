package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Prakashmaheshwaran/handshook/internal/config"
	"github.com/Prakashmaheshwaran/handshook/pkg/logging"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show every recorded application",
	RunE:  runHistory,
}

var deferredCmd = &cobra.Command{
	Use:   "deferred",
	Short: "Show the wait list of not-yet-open postings",
	RunE:  runDeferred,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New("warn", false)
	defer log.Sync()

	st, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "history is empty — no applications recorded yet")
		return nil
	}

	for _, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-20s  %q at %s\n",
			e.AppliedAt.Format(time.RFC3339), e.Outcome, e.Title, e.Employer)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d application(s) recorded\n", len(entries))
	return nil
}

func runDeferred(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New("warn", false)
	defer log.Sync()

	st, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	jobs, err := st.ListAll(cmd.Context())
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "wait list is empty")
		return nil
	}

	for _, j := range jobs {
		opens := "unknown"
		if j.ApplyOpensAt != nil {
			opens = j.ApplyOpensAt.Format(time.RFC3339)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-10s  %q at %s — opens %s\n",
			j.JobID, j.Title, j.Employer, opens)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d posting(s) waiting\n", len(jobs))
	return nil
}
