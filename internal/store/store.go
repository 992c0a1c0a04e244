// Package store persists the two run ledgers: the append-only history of
// applied jobs and the deferred queue of jobs whose application window has
// not opened yet.
//
// Both ledgers are keyed by job_id and every write is checked-before-write,
// so replaying a run against an unchanged input set leaves the stores
// byte-identical. Store I/O errors are fatal to a run: the engine must not
// proceed with unreliable dedup state.
//
// Concurrency boundary: a store file/database must be touched by at most one
// process at a time. Two concurrent runs could both pass HasApplied before
// either records, and nothing in-process guards against that — the invoker
// owns single-instance execution.
package store

import (
	"context"

	"github.com/Prakashmaheshwaran/handshook/internal/model"
)

// HistoryStore is the dedup ledger. A job_id appears at most once; once
// present the job is never resubmitted.
type HistoryStore interface {
	// HasApplied must be consulted before any submission attempt.
	HasApplied(ctx context.Context, jobID string) (bool, error)
	// RecordOutcome appends a terminal entry. Recording an already-present
	// job_id is a no-op, never an error.
	RecordOutcome(ctx context.Context, entry model.HistoryEntry) error
	// List returns every entry, oldest first.
	List(ctx context.Context) ([]model.HistoryEntry, error)
}

// DeferredStore is the wait list of jobs seen but not yet open. Snapshots
// carry everything needed to retry without re-scraping.
type DeferredStore interface {
	IsDeferred(ctx context.Context, jobID string) (bool, error)
	// Defer inserts or overwrites the snapshot for the job's ID.
	Defer(ctx context.Context, job model.JobRecord) error
	// Undefer removes the snapshot. Removing an absent ID is a no-op.
	Undefer(ctx context.Context, jobID string) error
	// ListAll returns every deferred snapshot, oldest deferral first.
	ListAll(ctx context.Context) ([]model.JobRecord, error)
}

// MetaStore holds small run bookkeeping values, keyed by name.
type MetaStore interface {
	GetMeta(ctx context.Context, key string) (value string, ok bool, err error)
	SetMeta(ctx context.Context, key, value string) error
}

// MetaLastRun is the UTC timestamp of the last clean run, used as the
// pagination cutoff for live search.
const MetaLastRun = "last_run"

// Store is a complete ledger backend.
type Store interface {
	HistoryStore
	DeferredStore
	MetaStore
	Close() error
}
