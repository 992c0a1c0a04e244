// Package engine drives each discovered job through the application
// lifecycle.
//
// Per-job funnel for a single run:
//
//	DISCOVERED ──► dedup ──► eligibility ──► documents ──► filter ──► submit
//	                 │            │              │            │          │
//	        ALREADY_APPLIED    DEFERRED       SKIPPED      SKIPPED   APPLIED / REJECTED
//	                                                                 / TRANSIENT
//
// APPLIED and REJECTED land in the history ledger, DEFERRED lands in the
// wait list, SKIPPED outcomes are not persisted at all, and TRANSIENT
// leaves no trace so the job is retried via fresh discovery next run.
package engine

import "github.com/cockroachdb/errors"

// Outcome is the result the engine assigns to one job in one run.
type Outcome string

const (
	OutcomeAlreadyApplied   Outcome = "already_applied"
	OutcomeDeferred         Outcome = "deferred"
	OutcomeSkippedExternal  Outcome = "skipped_external"
	OutcomeSkippedDocuments Outcome = "skipped_documents"
	OutcomeSkippedFilter    Outcome = "skipped_filter"
	OutcomeApplied          Outcome = "applied"
	OutcomeRejected         Outcome = "rejected"
	OutcomeTransient        Outcome = "transient_failure"
)

// ParseOutcome converts a raw string to an Outcome, returning an error for
// unknown values.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(s)
	switch o {
	case OutcomeAlreadyApplied, OutcomeDeferred,
		OutcomeSkippedExternal, OutcomeSkippedDocuments, OutcomeSkippedFilter,
		OutcomeApplied, OutcomeRejected, OutcomeTransient:
		return o, nil
	}
	return "", errors.Newf("unknown outcome %q", s)
}

// Recorded reports whether the outcome writes a history ledger entry.
func (o Outcome) Recorded() bool {
	return o == OutcomeApplied || o == OutcomeRejected
}

// Terminal reports whether the job is settled for good. Deferred jobs are
// retried from the wait list and transient failures via fresh discovery,
// so neither is terminal.
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeDeferred, OutcomeTransient:
		return false
	}
	return true
}
