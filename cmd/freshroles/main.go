// Command freshroles watches a job listing source and pushes a
// notification the first time a posting matches the configured profile.
//
// Subcommands:
//
//	monitor    run the poll loop until signalled
//	scan-once  run a single fetch-score-notify cycle and exit
//	match      dry-run scoring against the profile, no dispatch, no ledger
//	           writes; reads postings from a JSON file argument when
//	           given, otherwise fetches live
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/WutIsHummus/FreshRoles/internal/config"
	"github.com/WutIsHummus/FreshRoles/internal/fetch"
	"github.com/WutIsHummus/FreshRoles/internal/match"
	"github.com/WutIsHummus/FreshRoles/internal/model"
	"github.com/WutIsHummus/FreshRoles/internal/normalize"
	"github.com/WutIsHummus/FreshRoles/internal/notify"
	"github.com/WutIsHummus/FreshRoles/internal/scheduler"
	"github.com/WutIsHummus/FreshRoles/internal/scoring"
	"github.com/WutIsHummus/FreshRoles/internal/server"
	"github.com/WutIsHummus/FreshRoles/internal/store"
	"github.com/WutIsHummus/FreshRoles/pkg/logging"
	"github.com/WutIsHummus/FreshRoles/pkg/shutdown"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "freshroles: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)
	defer log.Sync()

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		log.Error("load profile", "err", err)
		os.Exit(1)
	}

	switch cmd {
	case "monitor":
		os.Exit(runMonitor(cfg, profile, log))
	case "scan-once":
		os.Exit(runScanOnce(cfg, profile, log))
	case "match":
		var postingsPath string
		if len(os.Args) > 2 {
			postingsPath = os.Args[2]
		}
		os.Exit(runMatch(cfg, profile, log, postingsPath))
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: freshroles <monitor|scan-once|match [postings.json]>")
}

// buildRunner wires the cycle pipeline from config. The ledger and
// dispatcher are only needed by the commands that commit state.
func buildRunner(ctx context.Context, cfg *config.Config, profile *model.Profile, log *logging.Logger) (*scheduler.Runner, store.Ledger, error) {
	fetcher, err := fetch.NewClient(cfg.SourceAppID, cfg.SourceAppKey, cfg.SourceCountry)
	if err != nil {
		return nil, nil, err
	}

	dispatcher, err := notify.NewDispatcher(cfg.NtfyServer, cfg.NtfyTopic)
	if err != nil {
		return nil, nil, err
	}

	ledger, err := openLedger(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	runner := &scheduler.Runner{
		Fetcher:    fetcher,
		Ledger:     ledger,
		Matcher:    match.New(log),
		Semantic:   scoring.NewSemantic(cfg.EmbedBaseURL, cfg.EmbedModel),
		Keyword:    scoring.NewKeyword(),
		Dispatcher: dispatcher,
		Profile:    profile,
		Query:      cfg.SearchQuery,
		Location:   cfg.SearchLocation,
		Lookback:   time.Duration(cfg.LookbackSeconds) * time.Second,
		Log:        log,
	}
	return runner, ledger, nil
}

func openLedger(ctx context.Context, cfg *config.Config, log *logging.Logger) (store.Ledger, error) {
	var (
		ledger store.Ledger
		err    error
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		ledger, err = store.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		ledger, err = store.OpenSQLite(cfg.SQLitePath)
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger (%s): %w", cfg.StoreDriver, err)
	}
	log.Info("ledger opened", "driver", cfg.StoreDriver)

	if cfg.RedisURL != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			ledger.Close()
			return nil, err
		}
		ledger = store.WithSeenCache(ledger, rdb, time.Duration(cfg.LookbackSeconds)*time.Second, log)
		log.Info("redis notified-cache enabled")
	}
	return ledger, nil
}

func runMonitor(cfg *config.Config, profile *model.Profile, log *logging.Logger) int {
	ctx := context.Background()

	runner, ledger, err := buildRunner(ctx, cfg, profile, log)
	if err != nil {
		log.Error("startup", "err", err)
		return 1
	}
	defer ledger.Close()

	sched := scheduler.New(runner, time.Duration(cfg.PollIntervalSeconds)*time.Second, log)
	if err := sched.Start(); err != nil {
		log.Error("start scheduler", "err", err)
		return 1
	}

	srv := server.New(cfg.StatusPort, sched, log)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status server", "err", err)
		}
	}()

	shutdown.Graceful(
		[]os.Signal{os.Interrupt, syscall.SIGTERM},
		stopAll{sched, srv},
		30*time.Second,
		log,
	)
	return 0
}

func runScanOnce(cfg *config.Config, profile *model.Profile, log *logging.Logger) int {
	ctx := context.Background()

	runner, ledger, err := buildRunner(ctx, cfg, profile, log)
	if err != nil {
		log.Error("startup", "err", err)
		return 1
	}
	defer ledger.Close()

	stats := runner.Cycle(ctx)
	if stats.Err != nil {
		log.Error("cycle failed", "err", stats.Err)
		return 1
	}
	log.Info("cycle complete",
		"fetched", stats.Fetched, "new", stats.New,
		"matched", stats.Matched, "notified", stats.Notified,
		"degraded", stats.Degraded)
	return 0
}

// runMatch scores a batch against the profile and prints the results
// without dispatching or touching the ledger. The batch comes from
// postingsPath when given, otherwise from a live fetch.
func runMatch(cfg *config.Config, profile *model.Profile, log *logging.Logger, postingsPath string) int {
	ctx := context.Background()

	var raws []model.RawPosting
	if postingsPath != "" {
		var err error
		if raws, err = fetch.ReadFile(postingsPath); err != nil {
			log.Error("load postings", "err", err)
			return 1
		}
	} else {
		fetcher, err := fetch.NewClient(cfg.SourceAppID, cfg.SourceAppKey, cfg.SourceCountry)
		if err != nil {
			log.Error("startup", "err", err)
			return 1
		}
		if raws, err = fetcher.Search(ctx, cfg.SearchQuery, cfg.SearchLocation); err != nil && len(raws) == 0 {
			log.Error("fetch failed", "err", err)
			return 1
		}
	}

	matcher := match.New(log)
	var backend scoring.Backend = scoring.NewKeyword()
	if sem := scoring.NewSemantic(cfg.EmbedBaseURL, cfg.EmbedModel); sem.Available(ctx) {
		backend = sem
	} else {
		log.Warn("semantic backend unavailable, using keyword heuristic")
	}

	now := time.Now().UTC()
	for _, raw := range raws {
		p, err := normalize.Posting(raw, now)
		if err != nil {
			log.Warn("skipping malformed record", "title", raw.Title, "err", err)
			continue
		}
		res := matcher.Evaluate(ctx, p, profile, backend)
		verdict := "skip"
		if res.Passed {
			verdict = "PASS"
		}
		fmt.Printf("%.2f  %s  %s @ %s [%s]\n", res.Score, verdict, p.Title, p.Company, p.Location)
		for _, r := range res.Reasons {
			fmt.Printf("        - %s\n", r)
		}
	}
	return 0
}

// stopAll shuts the scheduler down before the status server so /status
// answers until the last cycle has settled.
type stopAll struct {
	sched *scheduler.Scheduler
	srv   *server.Server
}

func (s stopAll) Shutdown(ctx context.Context) error {
	err := s.sched.Shutdown(ctx)
	if srvErr := s.srv.Shutdown(ctx); srvErr != nil && err == nil {
		err = srvErr
	}
	return err
}
