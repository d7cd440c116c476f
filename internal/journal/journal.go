// Package journal keeps an operational record of digest flushes and
// backfill runs in a local sqlite database. The journal is diagnostic
// only; nothing reads it on the hot path.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS flushes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	flush_id TEXT NOT NULL,
	key TEXT NOT NULL,
	fragments INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	artifact_url TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_flushes_key ON flushes(key);

CREATE TABLE IF NOT EXISTS backfill_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel TEXT NOT NULL,
	dry_run BOOLEAN NOT NULL DEFAULT 0,
	scanned INTEGER NOT NULL DEFAULT 0,
	report_like INTEGER NOT NULL DEFAULT 0,
	written INTEGER NOT NULL DEFAULT 0,
	skipped_existing INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

type Service struct {
	db *sql.DB
}

func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Service{db: db}, nil
}

func (s *Service) Close() error {
	return s.db.Close()
}

// RecordFlush stores one flush outcome.
func (s *Service) RecordFlush(flushID, key string, fragments int, status, artifactURL string) error {
	_, err := s.db.Exec(
		`INSERT INTO flushes (flush_id, key, fragments, status, artifact_url) VALUES (?, ?, ?, ?, ?)`,
		flushID, key, fragments, status, artifactURL,
	)
	if err != nil {
		return fmt.Errorf("record flush: %w", err)
	}
	return nil
}

// FlushRecord is one row of the flush journal.
type FlushRecord struct {
	FlushID     string
	Key         string
	Fragments   int
	Status      string
	ArtifactURL string
	CreatedAt   time.Time
}

// RecentFlushes returns the newest flush records, up to limit.
func (s *Service) RecentFlushes(limit int) ([]FlushRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT flush_id, key, fragments, status, artifact_url, created_at
		 FROM flushes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query flushes: %w", err)
	}
	defer rows.Close()

	var out []FlushRecord
	for rows.Next() {
		var r FlushRecord
		if err := rows.Scan(&r.FlushID, &r.Key, &r.Fragments, &r.Status, &r.ArtifactURL, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan flush row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BackfillRun summarizes one batch scan.
type BackfillRun struct {
	Channel         string
	DryRun          bool
	Scanned         int
	ReportLike      int
	Written         int
	SkippedExisting int
	Failed          int
	StartedAt       time.Time
}

// RecordBackfillRun stores the tally of a completed backfill.
func (s *Service) RecordBackfillRun(run BackfillRun) error {
	_, err := s.db.Exec(
		`INSERT INTO backfill_runs (channel, dry_run, scanned, report_like, written, skipped_existing, failed, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Channel, run.DryRun, run.Scanned, run.ReportLike, run.Written, run.SkippedExisting, run.Failed, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("record backfill run: %w", err)
	}
	return nil
}
