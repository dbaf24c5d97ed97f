// Package server exposes the watcher's health and run state over HTTP
// while monitor mode runs.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/WutIsHummus/FreshRoles/internal/scheduler"
	"github.com/WutIsHummus/FreshRoles/pkg/logging"
)

// Server serves /healthz and /status.
type Server struct {
	httpSrv *http.Server
	log     *logging.Logger
}

func New(port string, sched *scheduler.Scheduler, log *logging.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]string{"status": "ok", "service": "freshroles"})
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, sched.Snapshot())
	})

	return &Server{
		httpSrv: &http.Server{
			Addr:              ":" + port,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.Component("server"),
	}
}

// Start serves until Shutdown. It returns http.ErrServerClosed on a
// clean stop.
func (s *Server) Start() error {
	s.log.Info("status server listening", "addr", s.httpSrv.Addr)
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
