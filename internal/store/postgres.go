package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Prakashmaheshwaran/handshook/internal/model"
	"github.com/Prakashmaheshwaran/handshook/pkg/logging"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS history (
	job_id     TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	employer   TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS deferred (
	job_id      TEXT PRIMARY KEY,
	snapshot    JSONB NOT NULL,
	deferred_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// PostgresStore keeps the ledgers in PostgreSQL. Useful when runs happen on
// more than one machine against shared state; the single-writer invariant
// still applies — only one run at a time.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres creates a verified pgxpool and ensures the ledger schema.
func OpenPostgres(ctx context.Context, dsn string, log *logging.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "pgxpool.New")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres ping failed")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "apply ledger schema")
	}

	log.Debug("ledger database opened", "driver", "postgres")
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ── History ledger ─────────────────────────────────────────────────────────

func (s *PostgresStore) HasApplied(ctx context.Context, jobID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM history WHERE job_id = $1)`, jobID,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "query history")
	}
	return exists, nil
}

func (s *PostgresStore) RecordOutcome(ctx context.Context, entry model.HistoryEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO history (job_id, title, employer, outcome, applied_at)
		 SELECT $1, $2, $3, $4, $5
		 WHERE NOT EXISTS (
		   SELECT 1 FROM history WHERE job_id = $1
		 )`,
		entry.JobID, entry.Title, entry.Employer, string(entry.Outcome), entry.AppliedAt.UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "record outcome for job %s", entry.JobID)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]model.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
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

func (s *PostgresStore) IsDeferred(ctx context.Context, jobID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM deferred WHERE job_id = $1)`, jobID,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "query deferred")
	}
	return exists, nil
}

func (s *PostgresStore) Defer(ctx context.Context, job model.JobRecord) error {
	snapshot, err := json.Marshal(job)
	if err != nil {
		return errors.Wrapf(err, "marshal snapshot for job %s", job.JobID)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO deferred (job_id, snapshot, deferred_at)
		 VALUES ($1, $2::jsonb, $3)
		 ON CONFLICT (job_id) DO UPDATE SET snapshot = EXCLUDED.snapshot`,
		job.JobID, string(snapshot), time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrapf(err, "defer job %s", job.JobID)
	}
	return nil
}

func (s *PostgresStore) Undefer(ctx context.Context, jobID string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM deferred WHERE job_id = $1`, jobID,
	); err != nil {
		return errors.Wrapf(err, "undefer job %s", jobID)
	}
	return nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]model.JobRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT snapshot FROM deferred ORDER BY deferred_at ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "list deferred")
	}
	defer rows.Close()

	var jobs []model.JobRecord
	for rows.Next() {
		var snapshot []byte
		if err := rows.Scan(&snapshot); err != nil {
			return nil, errors.Wrap(err, "scan deferred row")
		}
		var job model.JobRecord
		if err := json.Unmarshal(snapshot, &job); err != nil {
			return nil, errors.Wrap(err, "decode deferred snapshot")
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ── Meta ───────────────────────────────────────────────────────────────────

func (s *PostgresStore) GetMeta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM meta WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "get meta %s", key)
	}
	return value, true, nil
}

func (s *PostgresStore) SetMeta(ctx context.Context, key, value string) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO meta (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	); err != nil {
		return errors.Wrapf(err, "set meta %s", key)
	}
	return nil
}
