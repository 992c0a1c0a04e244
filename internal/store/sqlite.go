package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Prakashmaheshwaran/handshook/internal/model"
	"github.com/Prakashmaheshwaran/handshook/pkg/logging"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS history (
	job_id     TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	employer   TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS deferred (
	job_id      TEXT PRIMARY KEY,
	snapshot    TEXT NOT NULL,
	deferred_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// SQLiteStore keeps both ledgers in a single local database file.
// This is the default backend: human-inspectable with any sqlite shell and
// trivially copied between machines.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the ledger database at path.
func OpenSQLite(path string, log *logging.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open ledger database %s", path)
	}

	// WAL keeps the file readable while a run is writing.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "exec %q", pragma)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply ledger schema")
	}

	log.Debug("ledger database opened", "driver", "sqlite", "path", path)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ── History ledger ─────────────────────────────────────────────────────────

func (s *SQLiteStore) HasApplied(ctx context.Context, jobID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM history WHERE job_id = ?)`, jobID,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "query history")
	}
	return exists, nil
}

func (s *SQLiteStore) RecordOutcome(ctx context.Context, entry model.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO history (job_id, title, employer, outcome, applied_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.JobID, entry.Title, entry.Employer, string(entry.Outcome), entry.AppliedAt.UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "record outcome for job %s", entry.JobID)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, title, employer, outcome, applied_at
		 FROM history ORDER BY applied_at ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "list history")
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var outcome string
		if err := rows.Scan(&e.JobID, &e.Title, &e.Employer, &outcome, &e.AppliedAt); err != nil {
			return nil, errors.Wrap(err, "scan history row")
		}
		e.Outcome = model.HistoryOutcome(outcome)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ── Deferred queue ─────────────────────────────────────────────────────────

func (s *SQLiteStore) IsDeferred(ctx context.Context, jobID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM deferred WHERE job_id = ?)`, jobID,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "query deferred")
	}
	return exists, nil
}

func (s *SQLiteStore) Defer(ctx context.Context, job model.JobRecord) error {
	snapshot, err := json.Marshal(job)
	if err != nil {
		return errors.Wrapf(err, "marshal snapshot for job %s", job.JobID)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deferred (job_id, snapshot, deferred_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET snapshot = excluded.snapshot`,
		job.JobID, string(snapshot), time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "defer job %s", job.JobID)
	}
	return nil
}

func (s *SQLiteStore) Undefer(ctx context.Context, jobID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM deferred WHERE job_id = ?`, jobID,
	); err != nil {
		return errors.Wrapf(err, "undefer job %s", jobID)
	}
	return nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]model.JobRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot FROM deferred ORDER BY deferred_at ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "list deferred")
	}
	defer rows.Close()

	var jobs []model.JobRecord
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, errors.Wrap(err, "scan deferred row")
		}
		var job model.JobRecord
		if err := json.Unmarshal([]byte(snapshot), &job); err != nil {
			return nil, errors.Wrap(err, "decode deferred snapshot")
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ── Meta ───────────────────────────────────────────────────────────────────

func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "get meta %s", key)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	); err != nil {
		return errors.Wrapf(err, "set meta %s", key)
	}
	return nil
}
