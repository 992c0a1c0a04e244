package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Prakashmaheshwaran/handshook/internal/engine"
	"github.com/Prakashmaheshwaran/handshook/internal/filter"
	"github.com/Prakashmaheshwaran/handshook/internal/model"
)

// ── In-memory ledgers ──────────────────────────────────────────────────────

type memLedgers struct {
	history       map[string]model.HistoryEntry
	historyOrder  []string
	deferred      map[string]model.JobRecord
	deferredOrder []string
}

func newMemLedgers() *memLedgers {
	return &memLedgers{
		history:  make(map[string]model.HistoryEntry),
		deferred: make(map[string]model.JobRecord),
	}
}

func (m *memLedgers) HasApplied(_ context.Context, jobID string) (bool, error) {
	_, ok := m.history[jobID]
	return ok, nil
}

func (m *memLedgers) RecordOutcome(_ context.Context, entry model.HistoryEntry) error {
	if _, ok := m.history[entry.JobID]; ok {
		return nil
	}
	m.history[entry.JobID] = entry
	m.historyOrder = append(m.historyOrder, entry.JobID)
	return nil
}

func (m *memLedgers) List(_ context.Context) ([]model.HistoryEntry, error) {
	out := make([]model.HistoryEntry, 0, len(m.historyOrder))
	for _, id := range m.historyOrder {
		out = append(out, m.history[id])
	}
	return out, nil
}

func (m *memLedgers) IsDeferred(_ context.Context, jobID string) (bool, error) {
	_, ok := m.deferred[jobID]
	return ok, nil
}

func (m *memLedgers) Defer(_ context.Context, job model.JobRecord) error {
	if _, ok := m.deferred[job.JobID]; !ok {
		m.deferredOrder = append(m.deferredOrder, job.JobID)
	}
	m.deferred[job.JobID] = job
	return nil
}

func (m *memLedgers) Undefer(_ context.Context, jobID string) error {
	if _, ok := m.deferred[jobID]; !ok {
		return nil
	}
	delete(m.deferred, jobID)
	for i, id := range m.deferredOrder {
		if id == jobID {
			m.deferredOrder = append(m.deferredOrder[:i], m.deferredOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memLedgers) ListAll(_ context.Context) ([]model.JobRecord, error) {
	out := make([]model.JobRecord, 0, len(m.deferredOrder))
	for _, id := range m.deferredOrder {
		out = append(out, m.deferred[id])
	}
	return out, nil
}

// ── Scripted applicator ────────────────────────────────────────────────────

type scriptedApplicator struct {
	results map[string]engine.SubmitResult // default SubmitSuccess
	calls   []string
}

func (a *scriptedApplicator) Submit(_ context.Context, job model.JobRecord) (engine.SubmitResult, error) {
	a.calls = append(a.calls, job.JobID)
	r, ok := a.results[job.JobID]
	if !ok {
		return engine.SubmitSuccess, nil
	}
	if r == engine.SubmitAuthFailure {
		return r, errors.New("status 401")
	}
	return r, nil
}

// ── Fixtures ───────────────────────────────────────────────────────────────

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func openJob(id, title string) model.JobRecord {
	return model.JobRecord{
		JobID:             id,
		Title:             title,
		Employer:          "Acme",
		RequiredDocuments: []model.DocumentType{model.DocumentResume},
		Source:            model.SourceAPISearch,
	}
}

func notOpenJob(id, title string) model.JobRecord {
	opens := testNow.Add(24 * time.Hour)
	j := openJob(id, title)
	j.ApplyOpensAt = &opens
	return j
}

func newTestEngine(led *memLedgers, app engine.Applicator, f filter.Config) *engine.Engine {
	return engine.New(engine.Params{
		History:    led,
		Deferred:   led,
		Applicator: app,
		Filter:     f,
		AvailableDocuments: map[model.DocumentType]bool{
			model.DocumentResume:      true,
			model.DocumentCoverLetter: true,
			model.DocumentTranscript:  true,
		},
		Now: func() time.Time { return testNow },
	})
}

// ── Funnel outcomes ────────────────────────────────────────────────────────

func TestRun_AppliesToMatchingOpenJob(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{}
	eng := newTestEngine(led, app, filter.Config{Keywords: []string{"data analyst"}})

	sum, err := eng.Run(context.Background(), []model.JobRecord{openJob("J1", "Data Analyst Intern")})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Applied)
	assert.Equal(t, []string{"J1"}, app.calls)
	require.Contains(t, led.history, "J1")
	assert.Equal(t, model.HistoryApplied, led.history["J1"].Outcome)
	assert.Empty(t, led.deferred)
}

func TestRun_ExternalOnlyJobIsSkippedUnrecorded(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{}
	eng := newTestEngine(led, app, filter.Config{})

	j := openJob("J2", "External Job")
	j.RequiredDocuments = nil // external-application link

	sum, err := eng.Run(context.Background(), []model.JobRecord{j})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.SkippedExternal)
	assert.Empty(t, app.calls, "external jobs must never be submitted")
	assert.Empty(t, led.history)
	assert.Empty(t, led.deferred)
}

func TestRun_UnconfiguredDocumentIsSkipped(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{}
	eng := newTestEngine(led, app, filter.Config{})

	j := openJob("J2b", "Needs Other Doc")
	j.RequiredDocuments = []model.DocumentType{model.DocumentResume, model.DocumentOther}

	sum, err := eng.Run(context.Background(), []model.JobRecord{j})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.SkippedDocuments)
	assert.Empty(t, app.calls)
	assert.Empty(t, led.history)
}

func TestRun_FilteredJobIsNotRemembered(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{}
	eng := newTestEngine(led, app, filter.Config{Keywords: []string{"analyst"}})

	sum, err := eng.Run(context.Background(), []model.JobRecord{openJob("J6", "Registered Nurse")})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.SkippedFilter)
	assert.Empty(t, app.calls)
	assert.Empty(t, led.history)
	assert.Empty(t, led.deferred, "filtered jobs are re-evaluated from fresh source data, not persisted")
}

// ── Deferral lifecycle ─────────────────────────────────────────────────────

func TestRun_NotOpenJobMovesToWaitListThenHistory(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{}
	eng := newTestEngine(led, app, filter.Config{})

	// Run 1: window closed, job is parked.
	sum, err := eng.Run(context.Background(), []model.JobRecord{notOpenJob("J3", "Future Role")})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Deferred)
	assert.Empty(t, app.calls)
	require.Contains(t, led.deferred, "J3")
	assert.True(t, sum.Clean(), "deferrals are settled outcomes, not unresolved ones")

	// Run 2: the stored snapshot's window has opened.
	open := led.deferred["J3"]
	open.ApplyOpensAt = nil
	led.deferred["J3"] = open

	sum, err = eng.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Applied)
	assert.Equal(t, []string{"J3"}, app.calls)
	assert.Contains(t, led.history, "J3")
	assert.Empty(t, led.deferred, "applied jobs must leave the wait list")
}

func TestRun_StillClosedDeferredJobStaysParked(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{}
	eng := newTestEngine(led, app, filter.Config{})
	require.NoError(t, led.Defer(context.Background(), notOpenJob("J3", "Future Role")))

	sum, err := eng.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Deferred)
	assert.Empty(t, app.calls)
	assert.Contains(t, led.deferred, "J3", "a waiting job is never silently dropped")
}

func TestRun_RediscoveredWaitingJobCountedOnce(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{}
	eng := newTestEngine(led, app, filter.Config{})
	require.NoError(t, led.Defer(context.Background(), notOpenJob("J3", "Future Role")))

	// The posting is still live, so discovery surfaces it again.
	sum, err := eng.Run(context.Background(), []model.JobRecord{notOpenJob("J3", "Future Role")})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Checked, "one job, one outcome per run")
	assert.Equal(t, 1, sum.Deferred)
	assert.Empty(t, app.calls)
	assert.Len(t, led.deferred, 1)
}

func TestRun_DeferredJobAlreadyInHistoryIsCleared(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{}
	eng := newTestEngine(led, app, filter.Config{})

	require.NoError(t, led.Defer(context.Background(), openJob("J7", "Settled Role")))
	require.NoError(t, led.RecordOutcome(context.Background(), model.HistoryEntry{
		JobID: "J7", Title: "Settled Role", Employer: "Acme",
		Outcome: model.HistoryApplied, AppliedAt: testNow,
	}))

	sum, err := eng.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.AlreadyApplied)
	assert.Empty(t, app.calls)
	assert.Empty(t, led.deferred)
}

// ── Dedup ──────────────────────────────────────────────────────────────────

func TestRun_HistoryBlocksResubmission(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{}
	eng := newTestEngine(led, app, filter.Config{})

	j := openJob("J4", "Data Analyst")
	sum, err := eng.Run(context.Background(), []model.JobRecord{j})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Applied)

	// Same job rediscovered next run: dedup check stops it cold.
	sum, err = eng.Run(context.Background(), []model.JobRecord{j})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.AlreadyApplied)
	assert.Equal(t, []string{"J4"}, app.calls, "submit must be invoked at most once per job across runs")
}

func TestRun_Idempotent(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{results: map[string]engine.SubmitResult{
		"R1": engine.SubmitRejected,
	}}
	eng := newTestEngine(led, app, filter.Config{})

	jobs := []model.JobRecord{
		openJob("A1", "Data Analyst"),
		openJob("R1", "Rejected Role"),
		notOpenJob("D1", "Future Role"),
	}

	_, err := eng.Run(context.Background(), jobs)
	require.NoError(t, err)

	historyAfterFirst := len(led.history)
	deferredAfterFirst := len(led.deferred)
	callsAfterFirst := len(app.calls)

	// Second run over the unchanged input set and stores.
	_, err = eng.Run(context.Background(), jobs)
	require.NoError(t, err)

	assert.Equal(t, historyAfterFirst, len(led.history), "no duplicate history entries")
	assert.Equal(t, deferredAfterFirst, len(led.deferred), "no duplicate deferred entries")
	assert.Equal(t, callsAfterFirst, len(app.calls), "settled jobs must not be resubmitted")
}

// ── Failure classification ─────────────────────────────────────────────────

func TestRun_PlatformRejectionIsRecordedAndContinues(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{results: map[string]engine.SubmitResult{
		"R1": engine.SubmitRejected,
	}}
	eng := newTestEngine(led, app, filter.Config{})

	sum, err := eng.Run(context.Background(), []model.JobRecord{
		openJob("R1", "Rejected Role"),
		openJob("A1", "Next Role"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Rejected)
	assert.Equal(t, 1, sum.Applied)
	require.Contains(t, led.history, "R1")
	assert.Equal(t, model.HistoryRejected, led.history["R1"].Outcome)
}

func TestRun_TransientFailureLeavesNoTrace(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{results: map[string]engine.SubmitResult{
		"J5": engine.SubmitTransient,
	}}
	eng := newTestEngine(led, app, filter.Config{})

	sum, err := eng.Run(context.Background(), []model.JobRecord{openJob("J5", "Flaky Role")})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.TransientFailures)
	assert.NotContains(t, led.history, "J5")
	assert.NotContains(t, led.deferred, "J5", "transient failures rely on rediscovery, not the wait list")
	assert.False(t, sum.Clean(), "an unresolved job must block cutoff advance and page cleanup")

	// Next run rediscovers the job and, with the platform healthy, applies.
	app.results = nil
	sum, err = eng.Run(context.Background(), []model.JobRecord{openJob("J5", "Flaky Role")})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Applied)
	assert.True(t, sum.Clean())
}

func TestRun_TransientFailureKeepsDeferredSnapshot(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{results: map[string]engine.SubmitResult{
		"D2": engine.SubmitTransient,
	}}
	eng := newTestEngine(led, app, filter.Config{})
	require.NoError(t, led.Defer(context.Background(), openJob("D2", "Waiting Role")))

	sum, err := eng.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.TransientFailures)
	assert.Contains(t, led.deferred, "D2", "a deferred job may not be lost on a transient failure")
}

func TestRun_AuthFailureAbortsRemainingJobs(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{results: map[string]engine.SubmitResult{
		"B2": engine.SubmitAuthFailure,
	}}
	eng := newTestEngine(led, app, filter.Config{})

	sum, err := eng.Run(context.Background(), []model.JobRecord{
		openJob("B1", "First Role"),
		openJob("B2", "Auth Breaks Here"),
		openJob("B3", "Never Reached"),
	})
	require.ErrorIs(t, err, engine.ErrAuthFailure)

	assert.Equal(t, []string{"B1", "B2"}, app.calls, "processing must stop at the auth failure")
	assert.Contains(t, led.history, "B1", "outcomes persisted before the failure remain valid")
	assert.NotContains(t, led.history, "B2")
	assert.Equal(t, 1, sum.Applied)
}

// ── Ordering ───────────────────────────────────────────────────────────────

func TestRun_WaitListProcessedBeforeFreshJobs(t *testing.T) {
	led := newMemLedgers()
	app := &scriptedApplicator{}
	eng := newTestEngine(led, app, filter.Config{})
	require.NoError(t, led.Defer(context.Background(), openJob("W1", "Waiting Role")))

	_, err := eng.Run(context.Background(), []model.JobRecord{
		openJob("F1", "Fresh Role"),
		openJob("F2", "Fresh Role Two"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"W1", "F1", "F2"}, app.calls,
		"deferred snapshots go first, then fresh jobs in source order")
}
