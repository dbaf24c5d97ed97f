package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WutIsHummus/FreshRoles/internal/model"
)

// Postgres is the shared-database ledger backend.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL, verifies connectivity and applies
// the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := migratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func migratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fingerprints (
			posting_id TEXT PRIMARY KEY,
			first_seen_at TIMESTAMPTZ NOT NULL,
			notified_at TIMESTAMPTZ,
			last_score DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fingerprints_first_seen ON fingerprints(first_seen_at)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			posting_id TEXT NOT NULL,
			notification_id TEXT NOT NULL,
			target TEXT NOT NULL,
			sent_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id BIGSERIAL PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL,
			fetched INT NOT NULL DEFAULT 0,
			new_postings INT NOT NULL DEFAULT 0,
			matched INT NOT NULL DEFAULT 0,
			notified INT NOT NULL DEFAULT 0,
			degraded BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL,
			error_message TEXT
		)`,
	}
	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id string) (*model.FingerprintRecord, error) {
	var rec model.FingerprintRecord
	err := s.pool.QueryRow(ctx,
		`SELECT posting_id, first_seen_at, notified_at, last_score FROM fingerprints WHERE posting_id = $1`, id,
	).Scan(&rec.PostingID, &rec.FirstSeenAt, &rec.NotifiedAt, &rec.LastScore)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query fingerprint: %w", err)
	}
	return &rec, nil
}

func (s *Postgres) HasSeen(ctx context.Context, id string) (bool, error) {
	var seen bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM fingerprints WHERE posting_id = $1)`, id).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("query fingerprint: %w", err)
	}
	return seen, nil
}

func (s *Postgres) Notified(ctx context.Context, id string) (bool, error) {
	var notified bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM fingerprints WHERE posting_id = $1 AND notified_at IS NOT NULL)`,
		id).Scan(&notified)
	if err != nil {
		return false, fmt.Errorf("query fingerprint: %w", err)
	}
	return notified, nil
}

func (s *Postgres) RecordSeen(ctx context.Context, id string, firstSeen time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fingerprints (posting_id, first_seen_at)
		 VALUES ($1, $2)
		 ON CONFLICT (posting_id) DO NOTHING`,
		id, firstSeen.UTC())
	if err != nil {
		return fmt.Errorf("record seen: %w", err)
	}
	return nil
}

func (s *Postgres) RecordNotified(ctx context.Context, id string, notifiedAt time.Time, score float64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fingerprints (posting_id, first_seen_at, notified_at, last_score)
		 VALUES ($1, $2, $2, $3)
		 ON CONFLICT (posting_id) DO UPDATE SET
			notified_at = COALESCE(fingerprints.notified_at, EXCLUDED.notified_at),
			last_score  = EXCLUDED.last_score`,
		id, notifiedAt.UTC(), score)
	if err != nil {
		return fmt.Errorf("record notified: %w", err)
	}
	return nil
}

func (s *Postgres) RecordNotification(ctx context.Context, postingID, notificationID, target string, sentAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (posting_id, notification_id, target, sent_at)
		 VALUES ($1, $2, $3, $4)`,
		postingID, notificationID, target, sentAt.UTC())
	if err != nil {
		return fmt.Errorf("record notification: %w", err)
	}
	return nil
}

func (s *Postgres) RecordRun(ctx context.Context, stats model.CycleStats) error {
	status := "completed"
	var errMsg *string
	if stats.Err != nil {
		status = "failed"
		msg := stats.Err.Error()
		errMsg = &msg
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (started_at, completed_at, fetched, new_postings, matched, notified, degraded, status, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		stats.StartedAt.UTC(), stats.CompletedAt.UTC(),
		stats.Fetched, stats.New, stats.Matched, stats.Notified,
		stats.Degraded, status, errMsg)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func (s *Postgres) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM fingerprints WHERE first_seen_at < $1 AND notified_at IS NOT NULL`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
