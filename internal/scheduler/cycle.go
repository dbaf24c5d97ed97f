// Package scheduler drives the poll loop: fetch → normalize → dedup →
// match → notify → persist → sleep, with failure isolation per stage.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/WutIsHummus/FreshRoles/internal/match"
	"github.com/WutIsHummus/FreshRoles/internal/model"
	"github.com/WutIsHummus/FreshRoles/internal/normalize"
	"github.com/WutIsHummus/FreshRoles/internal/scoring"
	"github.com/WutIsHummus/FreshRoles/internal/store"
	"github.com/WutIsHummus/FreshRoles/pkg/logging"
)

// scoreWorkers bounds concurrent scoring within a batch.
const scoreWorkers = 4

// Fetcher is the listing-source collaborator.
type Fetcher interface {
	Search(ctx context.Context, query, location string) ([]model.RawPosting, error)
}

// Dispatcher is the notification-transport collaborator.
type Dispatcher interface {
	Dispatch(ctx context.Context, p model.Posting, res model.MatchResult) (string, error)
	Topic() string
}

// Runner executes one full cycle. It owns no timing; the Scheduler (or
// the scan-once command) decides when Cycle runs.
type Runner struct {
	Fetcher    Fetcher
	Ledger     store.Ledger
	Matcher    *match.Matcher
	Semantic   scoring.Backend
	Keyword    scoring.Backend
	Dispatcher Dispatcher
	Profile    *model.Profile

	Query    string
	Location string
	Lookback time.Duration

	Log *logging.Logger
}

// candidate pairs a posting with what the ledger knew about it before
// this cycle.
type candidate struct {
	posting model.Posting
	isNew   bool
	result  model.MatchResult
}

// Cycle runs one fetch-score-notify pass. A fetch or ledger failure
// aborts the cycle (returned as stats.Err); per-posting failures are
// logged and skipped. The fingerprint ledger is only written in the
// serial commit phase, and notified_at strictly after a confirmed
// dispatch success.
func (r *Runner) Cycle(ctx context.Context) model.CycleStats {
	log := r.Log.Component("cycle")
	stats := model.CycleStats{StartedAt: time.Now().UTC()}

	defer func() {
		stats.CompletedAt = time.Now().UTC()
		// Run history is best-effort: a failed insert must not fail an
		// otherwise successful cycle.
		if err := r.Ledger.RecordRun(context.WithoutCancel(ctx), stats); err != nil {
			log.Warn("record run failed", "err", err)
		}
	}()

	// ── Fetch ──────────────────────────────────────────────────────────
	raws, err := r.Fetcher.Search(ctx, r.Query, r.Location)
	if err != nil {
		if len(raws) == 0 {
			stats.Err = fmt.Errorf("fetch: %w", err)
			log.Error("fetch failed, cycle aborted", "err", err)
			return stats
		}
		// A partial batch is still a batch; the source never promises
		// completeness anyway.
		log.Warn("fetch returned partial results", "got", len(raws), "err", err)
	}
	stats.Fetched = len(raws)
	if len(raws) == 0 {
		log.Info("nothing fetched")
		return stats
	}

	// ── Probe the scoring backend once for the whole cycle ─────────────
	backend := scoring.Backend(r.Keyword)
	if r.Semantic != nil && r.Semantic.Available(ctx) {
		backend = r.Semantic
	} else {
		stats.Degraded = true
		log.Warn("semantic backend unavailable, scoring cycle with keyword heuristic")
	}

	// ── Normalize + dedup ──────────────────────────────────────────────
	now := time.Now().UTC()
	var candidates []candidate
	for _, raw := range raws {
		p, err := normalize.Posting(raw, now)
		if err != nil {
			log.Warn("skipping malformed record", "title", raw.Title, "err", err)
			continue
		}

		// Notified hits the redis fast path when the cache is enabled;
		// only un-notified postings need the full record for FirstSeenAt.
		notified, err := r.Ledger.Notified(ctx, p.ID)
		if err != nil {
			stats.Err = fmt.Errorf("ledger: %w", err)
			log.Error("ledger unavailable, cycle aborted", "err", err)
			return stats
		}
		if notified {
			stats.Skipped++
			continue // already acted on, at-most-once holds
		}

		rec, err := r.Ledger.Get(ctx, p.ID)
		switch {
		case err == nil:
			p.FirstSeenAt = rec.FirstSeenAt
			candidates = append(candidates, candidate{posting: p})
		case errors.Is(err, store.ErrNotFound):
			stats.New++
			candidates = append(candidates, candidate{posting: p, isNew: true})
		default:
			// Without the ledger novelty cannot be determined safely.
			stats.Err = fmt.Errorf("ledger: %w", err)
			log.Error("ledger unavailable, cycle aborted", "err", err)
			return stats
		}
	}

	// ── Score concurrently (read-only, side-effect free) ───────────────
	r.scoreAll(ctx, candidates, backend)
	for i := range candidates {
		if candidates[i].result.Degraded {
			stats.Degraded = true
			break
		}
	}

	// ── Serial commit: ledger writes and dispatches in batch order ─────
	// Each posting commits under a non-cancellable context so shutdown
	// finishes the posting in flight; the check between postings stops
	// the rest of the batch.
	commitCtx := context.WithoutCancel(ctx)
	for i := range candidates {
		if ctx.Err() != nil {
			log.Info("cycle interrupted during commit", "committed", i, "total", len(candidates))
			break
		}
		c := &candidates[i]

		if c.isNew {
			if err := r.Ledger.RecordSeen(commitCtx, c.posting.ID, c.posting.FirstSeenAt); err != nil {
				stats.Err = fmt.Errorf("record seen: %w", err)
				log.Error("ledger write failed, cycle aborted", "posting_id", c.posting.ID, "err", err)
				return stats
			}
		}

		if !c.result.Passed {
			continue
		}
		stats.Matched++

		notifID, err := r.Dispatcher.Dispatch(commitCtx, c.posting, c.result)
		if err != nil {
			// Stays un-notified in the ledger; next cycle retries it.
			log.Warn("dispatch failed, will retry next cycle",
				"posting_id", c.posting.ID, "title", c.posting.Title, "err", err)
			continue
		}

		sentAt := time.Now().UTC()
		if err := r.Ledger.RecordNotified(commitCtx, c.posting.ID, sentAt, c.result.Score); err != nil {
			stats.Err = fmt.Errorf("record notified: %w", err)
			log.Error("ledger write failed after dispatch", "posting_id", c.posting.ID, "err", err)
			return stats
		}
		if err := r.Ledger.RecordNotification(commitCtx, c.posting.ID, notifID, r.Dispatcher.Topic(), sentAt); err != nil {
			log.Warn("notification history write failed", "posting_id", c.posting.ID, "err", err)
		}
		stats.Notified++
		log.Info("notified",
			"posting_id", c.posting.ID, "title", c.posting.Title,
			"company", c.posting.Company, "score", c.result.Score)
	}

	// ── Prune the lookback window ──────────────────────────────────────
	if removed, err := r.Ledger.Prune(commitCtx, r.Lookback); err != nil {
		log.Warn("prune failed", "err", err)
	} else if removed > 0 {
		log.Info("pruned fingerprints", "removed", removed)
	}

	return stats
}

// scoreAll evaluates candidates with a bounded worker pool. Each slot is
// written by exactly one worker, so no locking is needed beyond the
// WaitGroup.
func (r *Runner) scoreAll(ctx context.Context, candidates []candidate, backend scoring.Backend) {
	sem := make(chan struct{}, scoreWorkers)
	var wg sync.WaitGroup
	for i := range candidates {
		wg.Add(1)
		sem <- struct{}{}
		go func(c *candidate) {
			defer wg.Done()
			defer func() { <-sem }()
			c.result = r.Matcher.Evaluate(ctx, c.posting, r.Profile, backend)
		}(&candidates[i])
	}
	wg.Wait()
}
