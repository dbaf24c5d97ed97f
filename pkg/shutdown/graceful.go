// Package shutdown blocks on OS signals and stops a component with a
// bounded grace period.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/WutIsHummus/FreshRoles/pkg/logging"
)

type Stoppable interface {
	Shutdown(ctx context.Context) error
}

// Graceful waits for one of the given signals, then calls s.Shutdown with
// the given timeout. It returns once shutdown has completed.
func Graceful(signals []os.Signal, s Stoppable, timeout time.Duration, log *logging.Logger) {
	sigCtx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	<-sigCtx.Done()
	log.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		log.Warn("graceful shutdown completed with error", "err", err)
	} else {
		log.Info("graceful shutdown completed")
	}
}
