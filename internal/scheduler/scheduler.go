package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/WutIsHummus/FreshRoles/internal/model"
	"github.com/WutIsHummus/FreshRoles/pkg/logging"
)

// maxBackoffFactor caps the exponential backoff at base × 2^5.
const maxBackoffFactor = 32

// RunState is a snapshot of the loop for the status endpoint.
type RunState struct {
	Running             bool      `json:"running"`
	StartedAt           time.Time `json:"started_at,omitempty"`
	LastCompletedAt     time.Time `json:"last_completed_at,omitempty"`
	LastDurationMS      int64     `json:"last_duration_ms"`
	LastError           string    `json:"last_error,omitempty"`
	LastFetched         int       `json:"last_fetched"`
	LastNotified        int       `json:"last_notified"`
	LastDegraded        bool      `json:"last_degraded"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	NextEligibleAt      time.Time `json:"next_eligible_at,omitempty"`
}

// Scheduler fires the Runner on a fixed cron interval. Failed cycles
// push out an exponential-backoff deadline; ticks that arrive before the
// deadline are skipped, so the effective interval stretches under
// upstream failure and snaps back to the base period on the first
// success.
type Scheduler struct {
	cron     *cron.Cron
	runner   *Runner
	interval time.Duration
	log      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	manual sync.WaitGroup // ticks fired outside cron, not covered by cron.Stop

	mu          sync.Mutex
	running     bool
	failures    int
	nextAllowed time.Time
	state       RunState
}

// New creates a Scheduler firing every interval.
func New(runner *Runner, interval time.Duration, log *logging.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     cron.New(),
		runner:   runner,
		interval: interval,
		log:      log.Component("scheduler"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers the cron job and runs one cycle immediately so a fresh
// deploy does not wait a full interval for its first results.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info("poll loop started", "interval", s.interval.String())

	s.manual.Add(1)
	go func() {
		defer s.manual.Done()
		s.tick()
	}()
	return nil
}

// Shutdown stops the cron loop and waits for an in-flight cycle to
// finish its current posting, bounded by ctx. Both cron-fired ticks
// (via cron.Stop) and the immediate first tick (via the WaitGroup) are
// waited on.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.cancel()
	stopCtx := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-stopCtx.Done()
		s.manual.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cycle still running: %w", ctx.Err())
	}
}

// Snapshot returns the current run state.
func (s *Scheduler) Snapshot() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) tick() {
	now := time.Now()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("previous cycle still running, tick skipped")
		return
	}
	if now.Before(s.nextAllowed) {
		wait := time.Until(s.nextAllowed).Round(time.Second)
		s.mu.Unlock()
		s.log.Info("backing off, tick skipped", "next_eligible_in", wait.String())
		return
	}
	s.running = true
	s.state.Running = true
	s.state.StartedAt = now.UTC()
	s.mu.Unlock()

	stats := s.runner.Cycle(s.ctx)
	s.finish(stats)
}

func (s *Scheduler) finish(stats model.CycleStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	s.state.Running = false
	s.state.LastCompletedAt = stats.CompletedAt
	s.state.LastDurationMS = stats.CompletedAt.Sub(stats.StartedAt).Milliseconds()
	s.state.LastFetched = stats.Fetched
	s.state.LastNotified = stats.Notified
	s.state.LastDegraded = stats.Degraded

	if stats.Err != nil {
		s.failures++
		backoff := s.backoff()
		s.nextAllowed = time.Now().Add(backoff)
		s.state.LastError = stats.Err.Error()
		s.state.ConsecutiveFailures = s.failures
		s.state.NextEligibleAt = s.nextAllowed.UTC()
		s.log.Warn("cycle failed",
			"failures", s.failures, "backoff", backoff.String(), "err", stats.Err)
		return
	}

	s.failures = 0
	s.nextAllowed = time.Time{}
	s.state.LastError = ""
	s.state.ConsecutiveFailures = 0
	s.state.NextEligibleAt = time.Time{}
	s.log.Info("cycle complete",
		"fetched", stats.Fetched, "new", stats.New,
		"matched", stats.Matched, "notified", stats.Notified,
		"degraded", stats.Degraded)
}

// backoff returns the extra delay after the current failure streak:
// interval × 2^failures, capped.
func (s *Scheduler) backoff() time.Duration {
	factor := 1 << s.failures
	if factor > maxBackoffFactor {
		factor = maxBackoffFactor
	}
	return s.interval * time.Duration(factor)
}
