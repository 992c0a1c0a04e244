package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/Prakashmaheshwaran/handshook/internal/config"
	"github.com/Prakashmaheshwaran/handshook/internal/engine"
	"github.com/Prakashmaheshwaran/handshook/internal/filter"
	"github.com/Prakashmaheshwaran/handshook/internal/handshake"
	"github.com/Prakashmaheshwaran/handshook/internal/htmlimport"
	"github.com/Prakashmaheshwaran/handshook/internal/model"
	"github.com/Prakashmaheshwaran/handshook/internal/notify"
	"github.com/Prakashmaheshwaran/handshook/internal/store"
	"github.com/Prakashmaheshwaran/handshook/pkg/logging"
)

var keepHTML bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover postings and apply",
	Long: `Run one full application cycle.

Saved pages in the html/ directory take priority: their job IDs are
extracted and processed directly. With no saved pages, the live postings
API is paged through until postings older than the last clean run appear.

The wait list is always retried first. Exit status is non-zero when the
platform rejects the session cookies or a ledger write fails.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&keepHTML, "keep-html", false, "keep saved pages after a successful run instead of deleting them")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.LogLevel, cfg.JSONLogs)
	defer log.Sync()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	docs := map[model.DocumentType]int64{}
	for _, t := range []model.DocumentType{
		model.DocumentResume, model.DocumentCoverLetter, model.DocumentTranscript, model.DocumentOther,
	} {
		if id := cfg.DocumentID(t); id != 0 {
			docs[t] = id
		}
	}

	client, err := handshake.NewClient(cfg.Cookies, docs, log)
	if err != nil {
		return err
	}
	if cfg.SearchURL != "" {
		if err := client.UseSearchURL(cfg.SearchURL); err != nil {
			return err
		}
	}
	if err := client.Bootstrap(ctx); err != nil {
		return err
	}

	runStart := time.Now().UTC()

	pages, err := htmlimport.ListPages(cfg.HTMLDir)
	if err != nil {
		return err
	}

	var discovered []model.JobRecord
	if len(pages) > 0 {
		ids, err := htmlimport.ScanDir(cfg.HTMLDir, log)
		if err != nil {
			return err
		}
		log.Info("processing saved pages", "pages", len(pages), "job_ids", len(ids))
		discovered, err = client.RecordsFromIDs(ctx, ids)
		if err != nil {
			return err
		}
	} else {
		cutoff, err := lastRunCutoff(cmd, st)
		if err != nil {
			return err
		}
		discovered, err = client.SearchPostings(ctx, cutoff)
		if errors.Is(err, handshake.ErrCookiesRejected) {
			return err
		}
		if err != nil {
			// A partial discovery pass is still worth processing; the
			// missing pages come back next run.
			log.Warn("discovery incomplete", "cause", err, "records", len(discovered))
		}
	}

	params := engine.Params{
		History:            st,
		Deferred:           st,
		Applicator:         client,
		Filter:             filter.Config{Keywords: cfg.Keywords, SkipKeywords: cfg.SkipKeywords},
		AvailableDocuments: cfg.AvailableDocuments(),
		Logger:             log,
	}

	var pub *notify.Publisher
	if cfg.Notify.RedisURL != "" {
		pub, err = notify.New(ctx, cfg.Notify.RedisURL, log)
		if err != nil {
			log.Warn("event publisher unavailable", "cause", err)
		} else {
			defer pub.Close()
			params.Events = pub
		}
	}

	sum, runErr := engine.New(params).Run(ctx, discovered)
	printSummary(cmd.OutOrStdout(), sum)
	if pub != nil {
		pub.RunCompleted(ctx, sum)
	}
	if runErr != nil {
		return runErr
	}

	// Only a clean run advances the cutoff and consumes the saved pages.
	// After an abort or a transient failure the same inputs must be
	// reprocessable, or the unresolved jobs would never resurface.
	if !sum.Clean() {
		log.Warn("transient failures this run, keeping cutoff and saved pages",
			"transient_failures", sum.TransientFailures)
		return nil
	}
	if err := st.SetMeta(ctx, store.MetaLastRun, runStart.Format(time.RFC3339)); err != nil {
		return err
	}
	if len(pages) > 0 && !keepHTML {
		htmlimport.RemovePages(pages, log)
	}
	return nil
}

// lastRunCutoff reads the stored cutoff; first runs have none.
func lastRunCutoff(cmd *cobra.Command, st store.Store) (time.Time, error) {
	v, ok, err := st.GetMeta(cmd.Context(), store.MetaLastRun)
	if err != nil || !ok {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "stored %s is not a timestamp", store.MetaLastRun)
	}
	return t, nil
}

func printSummary(w io.Writer, sum *engine.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run summary")
	fmt.Fprintln(w, "───────────────────────────────")
	fmt.Fprintf(w, "  checked:             %d\n", sum.Checked)
	fmt.Fprintf(w, "  applied:             %d\n", sum.Applied)
	fmt.Fprintf(w, "  deferred:            %d\n", sum.Deferred)
	fmt.Fprintf(w, "  skipped (filter):    %d\n", sum.SkippedFilter)
	fmt.Fprintf(w, "  skipped (documents): %d\n", sum.SkippedDocuments)
	fmt.Fprintf(w, "  skipped (external):  %d\n", sum.SkippedExternal)
	fmt.Fprintf(w, "  already applied:     %d\n", sum.AlreadyApplied)
	fmt.Fprintf(w, "  rejected:            %d\n", sum.Rejected)
	fmt.Fprintf(w, "  transient failures:  %d\n", sum.TransientFailures)
}
