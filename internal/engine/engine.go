package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/Prakashmaheshwaran/handshook/internal/filter"
	"github.com/Prakashmaheshwaran/handshook/internal/model"
	"github.com/Prakashmaheshwaran/handshook/internal/store"
	"github.com/Prakashmaheshwaran/handshook/pkg/logging"
)

// ErrAuthFailure aborts a run: the platform rejected the session cookies and
// no further submission can succeed. Outcomes persisted before the failure
// remain valid.
var ErrAuthFailure = errors.New("platform rejected session credentials")

// SubmitResult classifies one submission attempt.
type SubmitResult int

const (
	// SubmitSuccess — the application was accepted.
	SubmitSuccess SubmitResult = iota
	// SubmitRejected — definitive platform-level rejection (e.g. candidate
	// not qualified). Recorded, never retried.
	SubmitRejected
	// SubmitTransient — ambiguous failure (timeout, 5xx). The job is left
	// unresolved and retried via fresh discovery next run.
	SubmitTransient
	// SubmitAuthFailure — expired or invalid credentials. Fatal to the run.
	SubmitAuthFailure
)

// Applicator performs the actual submission call against the platform.
// Implementations own all network concerns; the engine only sees the
// classified result.
type Applicator interface {
	Submit(ctx context.Context, job model.JobRecord) (SubmitResult, error)
}

// Events receives notifications about recorded outcomes. All methods are
// fire-and-forget; implementations must never fail the run.
type Events interface {
	ApplicationSubmitted(ctx context.Context, job model.JobRecord)
	ApplicationRejected(ctx context.Context, job model.JobRecord)
}

// Summary reports per-outcome counts for one run, enough to tell a
// config/filter problem apart from a platform-side one.
type Summary struct {
	RunID             string
	Checked           int
	Applied           int
	Deferred          int
	SkippedFilter     int
	SkippedDocuments  int
	SkippedExternal   int
	AlreadyApplied    int
	Rejected          int
	TransientFailures int
}

// Clean reports whether every job settled. Transient failures rely on
// rediscovery, so a run that saw any must not consume its inputs: the
// search cutoff may not advance and saved pages may not be deleted, or the
// unresolved jobs would never resurface.
func (s *Summary) Clean() bool {
	return s.TransientFailures == 0
}

func (s *Summary) count(o Outcome) {
	s.Checked++
	switch o {
	case OutcomeApplied:
		s.Applied++
	case OutcomeDeferred:
		s.Deferred++
	case OutcomeSkippedFilter:
		s.SkippedFilter++
	case OutcomeSkippedDocuments:
		s.SkippedDocuments++
	case OutcomeSkippedExternal:
		s.SkippedExternal++
	case OutcomeAlreadyApplied:
		s.AlreadyApplied++
	case OutcomeRejected:
		s.Rejected++
	case OutcomeTransient:
		s.TransientFailures++
	}
}

// Params collects the engine's collaborators.
type Params struct {
	History    store.HistoryStore
	Deferred   store.DeferredStore
	Applicator Applicator
	Filter     filter.Config
	// AvailableDocuments are the document types with a configured ID.
	// Jobs requiring anything outside this set are skipped.
	AvailableDocuments map[model.DocumentType]bool
	Events             Events // optional
	Logger             *logging.Logger
	Now                func() time.Time // optional, defaults to time.Now
}

// Engine converts each job record into exactly one outcome per run.
// Processing is strictly sequential: one job is fully settled, including
// persistence, before the next begins, which gives at-most-once submission
// without any locking.
type Engine struct {
	history    store.HistoryStore
	deferred   store.DeferredStore
	applicator Applicator
	filter     filter.Config
	available  map[model.DocumentType]bool
	events     Events
	log        *logging.Logger
	now        func() time.Time
}

// New constructs an Engine.
func New(p Params) *Engine {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	log := p.Logger
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		history:    p.History,
		deferred:   p.Deferred,
		applicator: p.Applicator,
		filter:     p.Filter,
		available:  p.AvailableDocuments,
		events:     p.Events,
		log:        log,
		now:        now,
	}
}

// Run processes the wait list first, then every freshly discovered job in
// source order. It returns the partial summary alongside any fatal error
// (auth failure or ledger I/O).
func (e *Engine) Run(ctx context.Context, discovered []model.JobRecord) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString()}

	waiting, err := e.deferred.ListAll(ctx)
	if err != nil {
		return sum, errors.Wrap(err, "load deferred queue")
	}

	e.log.Info("run started",
		"run_id", sum.RunID,
		"deferred", len(waiting),
		"discovered", len(discovered),
	)

	for _, job := range waiting {
		out, err := e.retryDeferred(ctx, job)
		if err != nil {
			return sum, err
		}
		sum.count(out)
	}

	for _, job := range discovered {
		parked, err := e.deferred.IsDeferred(ctx, job.JobID)
		if err != nil {
			return sum, errors.Wrap(err, "deferred check")
		}
		if parked {
			// Already settled in the wait-list pass above; the stored
			// snapshot stays authoritative over the fresh record.
			e.log.Debug("already on wait list, skipped", "job_id", job.JobID)
			continue
		}
		out, err := e.processDiscovered(ctx, job)
		if err != nil {
			return sum, err
		}
		sum.count(out)
	}

	e.log.Info("run complete",
		"run_id", sum.RunID,
		"checked", sum.Checked,
		"applied", sum.Applied,
		"deferred", sum.Deferred,
		"skipped_filter", sum.SkippedFilter,
		"skipped_documents", sum.SkippedDocuments,
		"skipped_external", sum.SkippedExternal,
		"already_applied", sum.AlreadyApplied,
		"rejected", sum.Rejected,
		"transient_failures", sum.TransientFailures,
	)
	return sum, nil
}

// processDiscovered runs the full funnel on a freshly discovered job:
// dedup → eligibility → documents → filter → submit.
func (e *Engine) processDiscovered(ctx context.Context, job model.JobRecord) (Outcome, error) {
	applied, err := e.history.HasApplied(ctx, job.JobID)
	if err != nil {
		return "", errors.Wrap(err, "dedup check")
	}
	if applied {
		e.log.Debug("already applied", "job_id", job.JobID)
		return OutcomeAlreadyApplied, nil
	}

	if !job.OpenAt(e.now()) {
		if err := e.deferred.Defer(ctx, job); err != nil {
			return "", errors.Wrap(err, "defer job")
		}
		e.log.Info("application window not open, deferred",
			"job_id", job.JobID, "title", job.Title, "opens_at", job.ApplyOpensAt)
		return OutcomeDeferred, nil
	}

	if !job.RequiresDocuments() {
		e.log.Debug("external application only, skipped", "job_id", job.JobID, "title", job.Title)
		return OutcomeSkippedExternal, nil
	}
	if missing := e.missingDocuments(job); len(missing) > 0 {
		e.log.Warn("required document not configured, skipped",
			"job_id", job.JobID, "title", job.Title, "missing", missing)
		return OutcomeSkippedDocuments, nil
	}

	if !filter.Matches(job, e.filter) {
		return OutcomeSkippedFilter, nil
	}

	return e.submit(ctx, job)
}

// retryDeferred re-evaluates a wait-list snapshot. Filter and document
// checks already passed when the job was deferred; the snapshot is
// authoritative over any fresher platform data, a deliberate staleness
// trade-off. Only eligibility is re-checked, plus two permanent-skip
// conditions that remove the entry for good.
func (e *Engine) retryDeferred(ctx context.Context, job model.JobRecord) (Outcome, error) {
	applied, err := e.history.HasApplied(ctx, job.JobID)
	if err != nil {
		return "", errors.Wrap(err, "dedup check")
	}
	if applied {
		// Recorded by an earlier run that crashed before undeferring, or
		// applied manually. Either way the entry is settled.
		if err := e.deferred.Undefer(ctx, job.JobID); err != nil {
			return "", errors.Wrap(err, "undefer job")
		}
		return OutcomeAlreadyApplied, nil
	}

	if !job.RequiresDocuments() {
		if err := e.deferred.Undefer(ctx, job.JobID); err != nil {
			return "", errors.Wrap(err, "undefer job")
		}
		e.log.Info("deferred job is external-only, permanently skipped", "job_id", job.JobID)
		return OutcomeSkippedExternal, nil
	}
	if missing := e.missingDocuments(job); len(missing) > 0 {
		if err := e.deferred.Undefer(ctx, job.JobID); err != nil {
			return "", errors.Wrap(err, "undefer job")
		}
		e.log.Warn("deferred job requires unavailable documents, permanently skipped",
			"job_id", job.JobID, "missing", missing)
		return OutcomeSkippedDocuments, nil
	}

	if !job.OpenAt(e.now()) {
		// Still waiting; the snapshot stays in the queue untouched.
		return OutcomeDeferred, nil
	}

	return e.submit(ctx, job)
}

// submit attempts the application and persists the outcome. The history
// write happens strictly after the submission call returns, so a crash in
// between costs at most one harmless resubmission attempt next run — the
// platform's own duplicate-application rule is the backstop.
func (e *Engine) submit(ctx context.Context, job model.JobRecord) (Outcome, error) {
	result, err := e.applicator.Submit(ctx, job)

	switch result {
	case SubmitSuccess:
		if err := e.record(ctx, job, model.HistoryApplied); err != nil {
			return "", err
		}
		e.log.Info("applied", "job_id", job.JobID, "title", job.Title, "employer", job.Employer)
		if e.events != nil {
			e.events.ApplicationSubmitted(ctx, job)
		}
		return OutcomeApplied, nil

	case SubmitRejected:
		if err := e.record(ctx, job, model.HistoryRejected); err != nil {
			return "", err
		}
		e.log.Info("rejected by platform", "job_id", job.JobID, "title", job.Title)
		if e.events != nil {
			e.events.ApplicationRejected(ctx, job)
		}
		return OutcomeRejected, nil

	case SubmitAuthFailure:
		e.log.Error("credentials rejected mid-run, aborting", "job_id", job.JobID, "cause", err)
		return "", ErrAuthFailure

	default:
		// Transient: neither recorded nor deferred. A fresh job reappears
		// through discovery next run; a deferred one keeps its snapshot.
		e.log.Warn("transient submission failure", "job_id", job.JobID, "cause", err)
		return OutcomeTransient, nil
	}
}

// record appends the terminal outcome and clears any wait-list entry.
// Ledger order matters: history first, so an interrupted run can never lose
// a job that already has a recorded outcome.
func (e *Engine) record(ctx context.Context, job model.JobRecord, outcome model.HistoryOutcome) error {
	entry := model.HistoryEntry{
		JobID:     job.JobID,
		Title:     job.Title,
		Employer:  job.Employer,
		Outcome:   outcome,
		AppliedAt: e.now().UTC(),
	}
	if err := e.history.RecordOutcome(ctx, entry); err != nil {
		return errors.Wrap(err, "record outcome")
	}
	if err := e.deferred.Undefer(ctx, job.JobID); err != nil {
		return errors.Wrap(err, "undefer job")
	}
	return nil
}

func (e *Engine) missingDocuments(job model.JobRecord) []model.DocumentType {
	var missing []model.DocumentType
	for _, t := range job.RequiredDocuments {
		if !e.available[t] {
			missing = append(missing, t)
		}
	}
	return missing
}
