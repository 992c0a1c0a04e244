// Package model defines shared data structures for the application pipeline.
package model

import "time"

// DocumentType identifies a document category attachable to an application.
// Values mirror Handshake's required_job_document_types categories.
type DocumentType string

const (
	DocumentResume      DocumentType = "resume"
	DocumentCoverLetter DocumentType = "cover_letter"
	DocumentTranscript  DocumentType = "transcript"
	DocumentOther       DocumentType = "other"
)

// Source records where a JobRecord was discovered. Diagnostics only — the
// engine never branches on it.
type Source string

const (
	SourceHTMLImport Source = "html_import"
	SourceAPISearch  Source = "api_search"
)

// JobRecord is a normalised job posting as produced by a source adapter.
// Records are transient per run; only their outcome is persisted.
type JobRecord struct {
	JobID              string         `json:"job_id"`
	Title              string         `json:"title"`
	Employer           string         `json:"employer"`
	DescriptionSnippet string         `json:"description_snippet,omitempty"`
	RequiredDocuments  []DocumentType `json:"required_documents"`
	ApplyOpensAt       *time.Time     `json:"apply_opens_at,omitempty"`
	PostedAt           *time.Time     `json:"posted_at,omitempty"`
	Source             Source         `json:"source"`
}

// OpenAt reports whether the posting's application window is open at the
// given instant. Postings with no ApplyOpensAt are open immediately.
func (j JobRecord) OpenAt(now time.Time) bool {
	return j.ApplyOpensAt == nil || !j.ApplyOpensAt.After(now)
}

// RequiresDocuments reports whether the posting accepts in-platform
// applications at all. An empty set means the employer collects
// applications externally.
func (j JobRecord) RequiresDocuments() bool {
	return len(j.RequiredDocuments) > 0
}

// HistoryOutcome is the terminal result stored in the history ledger.
type HistoryOutcome string

const (
	HistoryApplied  HistoryOutcome = "applied"
	HistoryRejected HistoryOutcome = "rejected_by_platform"
)

// HistoryEntry is one row of the append-only history ledger. A job_id
// appears at most once; once present the job is never reprocessed.
type HistoryEntry struct {
	JobID     string         `json:"job_id"`
	Title     string         `json:"title"`
	Employer  string         `json:"employer"`
	Outcome   HistoryOutcome `json:"outcome"`
	AppliedAt time.Time      `json:"applied_at"`
}
