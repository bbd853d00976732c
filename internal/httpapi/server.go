// Package httpapi implements the gateway's secondary HTTP surface: a
// Prometheus scrape endpoint and a small JSON status/stats endpoint,
// separate from the RFC 3912 TCP/SSH surfaces in internal/server.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"whoisgate/internal/logging"
	"whoisgate/internal/metrics"
	"whoisgate/internal/stats"
)

// Server hosts /metrics, /stats and /healthz over plain HTTP.
type Server struct {
	Addr    string
	Stats   *stats.Stats
	Metrics *metrics.Collector
	Log     *logging.Logger

	router chi.Router
}

// New builds the router and wires its three routes.
func New(addr string, st *stats.Stats, m *metrics.Collector, log *logging.Logger) *Server {
	s := &Server{Addr: addr, Stats: st, Metrics: m, Log: log.With("httpapi")}

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(10 * time.Second))
	r.Handle("/metrics", m.Handler())
	r.Get("/stats", s.handleStats)
	r.Get("/healthz", s.handleHealthz)
	s.router = r
	return s
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	body, err := s.Stats.SnapshotJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ListenAndServe runs the HTTP surface until ctx is cancelled,
// matching internal/server's ctx-cancelled accept-loop shutdown shape.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: s.router}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	s.Log.Info("listening on %s", s.Addr)
	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
