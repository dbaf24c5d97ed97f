// Package store implements the fingerprint ledger: the durable record of
// postings already seen and notified. The ledger is the sole source of
// truth for "have we already acted on this posting". If it is
// unreachable the current cycle aborts rather than risking a duplicate
// or missed notification.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/WutIsHummus/FreshRoles/internal/model"
)

// ErrNotFound is returned by Get when no record exists for a posting id.
var ErrNotFound = errors.New("fingerprint not found")

// Ledger is the dedup ledger contract. Implementations must be safe for
// concurrent use and survive process restarts (the in-memory variant
// exists for tests and dry runs only).
type Ledger interface {
	// Get returns the record for a posting id, or ErrNotFound.
	Get(ctx context.Context, id string) (*model.FingerprintRecord, error)

	// HasSeen reports whether any record exists for the id.
	HasSeen(ctx context.Context, id string) (bool, error)

	// Notified reports whether the posting has already been notified.
	Notified(ctx context.Context, id string) (bool, error)

	// RecordSeen creates the record on first sighting. Calling it again
	// for the same id is a no-op: first_seen_at never moves.
	RecordSeen(ctx context.Context, id string, firstSeen time.Time) error

	// RecordNotified sets notified_at and last_score. notified_at is set
	// at most once; later calls keep the original timestamp.
	RecordNotified(ctx context.Context, id string, notifiedAt time.Time, score float64) error

	// RecordNotification appends one delivery-history row.
	RecordNotification(ctx context.Context, postingID, notificationID, target string, sentAt time.Time) error

	// RecordRun appends one cycle-history row.
	RecordRun(ctx context.Context, stats model.CycleStats) error

	// Prune removes records whose first_seen_at is older than the
	// lookback window AND that are already notified. Un-notified records
	// age out on the same clock but are never pruned early, so a restart
	// cannot cause a re-notification. Returns the number removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)

	Close() error
}
