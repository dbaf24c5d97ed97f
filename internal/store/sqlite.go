package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/WutIsHummus/FreshRoles/internal/model"
)

// SQLite is the single-binary ledger backend. WAL mode plus a busy
// timeout keeps one writer and the status server from tripping over
// each other.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the ledger database at path
// and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	if err := migrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func migrateSQLite(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fingerprints (
			posting_id TEXT PRIMARY KEY,
			first_seen_at DATETIME NOT NULL,
			notified_at DATETIME,
			last_score REAL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_fingerprints_first_seen ON fingerprints(first_seen_at);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			posting_id TEXT NOT NULL,
			notification_id TEXT NOT NULL,
			target TEXT NOT NULL,
			sent_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at DATETIME NOT NULL,
			completed_at DATETIME NOT NULL,
			fetched INTEGER NOT NULL DEFAULT 0,
			new_postings INTEGER NOT NULL DEFAULT 0,
			matched INTEGER NOT NULL DEFAULT 0,
			notified INTEGER NOT NULL DEFAULT 0,
			degraded INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			error_message TEXT
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*model.FingerprintRecord, error) {
	var rec model.FingerprintRecord
	var notified sql.NullTime
	var score sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT posting_id, first_seen_at, notified_at, last_score FROM fingerprints WHERE posting_id=?`, id,
	).Scan(&rec.PostingID, &rec.FirstSeenAt, &notified, &score)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query fingerprint: %w", err)
	}
	if notified.Valid {
		t := notified.Time.UTC()
		rec.NotifiedAt = &t
	}
	if score.Valid {
		v := score.Float64
		rec.LastScore = &v
	}
	return &rec, nil
}

func (s *SQLite) HasSeen(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM fingerprints WHERE posting_id=?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query fingerprint: %w", err)
	}
	return true, nil
}

func (s *SQLite) Notified(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM fingerprints WHERE posting_id=? AND notified_at IS NOT NULL`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query fingerprint: %w", err)
	}
	return true, nil
}

func (s *SQLite) RecordSeen(ctx context.Context, id string, firstSeen time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprints(posting_id, first_seen_at) VALUES(?,?)
		 ON CONFLICT(posting_id) DO NOTHING`,
		id, firstSeen.UTC())
	if err != nil {
		return fmt.Errorf("record seen: %w", err)
	}
	return nil
}

func (s *SQLite) RecordNotified(ctx context.Context, id string, notifiedAt time.Time, score float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprints(posting_id, first_seen_at, notified_at, last_score)
		 VALUES(?,?,?,?)
		 ON CONFLICT(posting_id) DO UPDATE SET
			notified_at = COALESCE(fingerprints.notified_at, excluded.notified_at),
			last_score  = excluded.last_score`,
		id, notifiedAt.UTC(), notifiedAt.UTC(), score)
	if err != nil {
		return fmt.Errorf("record notified: %w", err)
	}
	return nil
}

func (s *SQLite) RecordNotification(ctx context.Context, postingID, notificationID, target string, sentAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications(posting_id, notification_id, target, sent_at) VALUES(?,?,?,?)`,
		postingID, notificationID, target, sentAt.UTC())
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

func (s *SQLite) RecordRun(ctx context.Context, stats model.CycleStats) error {
	status := "completed"
	var errMsg sql.NullString
	if stats.Err != nil {
		status = "failed"
		errMsg = sql.NullString{String: stats.Err.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(started_at, completed_at, fetched, new_postings, matched, notified, degraded, status, error_message)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		stats.StartedAt.UTC(), stats.CompletedAt.UTC(),
		stats.Fetched, stats.New, stats.Matched, stats.Notified,
		boolInt(stats.Degraded), status, errMsg)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func (s *SQLite) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM fingerprints WHERE first_seen_at < ? AND notified_at IS NOT NULL`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
