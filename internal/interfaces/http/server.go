// Package http exposes the ops surface: health, Prometheus metrics, an
// on-demand scan trigger, and the latest published result.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/ignitelab/ignite/internal/domain"
	"github.com/ignitelab/ignite/internal/pipeline"
	"github.com/ignitelab/ignite/internal/publish"
	"github.com/ignitelab/ignite/internal/telemetry"
)

// Server wires the mux router over the runner and metrics registry.
type Server struct {
	runner   *pipeline.Runner
	metrics  *telemetry.Metrics
	store    *publish.Store // optional: nil disables /results
	strategy string
	universe []string

	httpServer *http.Server
}

func NewServer(runner *pipeline.Runner, metrics *telemetry.Metrics, store *publish.Store, strategy string, universe []string) *Server {
	return &Server{
		runner:   runner,
		metrics:  metrics,
		store:    store,
		strategy: strategy,
		universe: universe,
	}
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/scan/run", s.handleScanRun).Methods(http.MethodPost)
	r.HandleFunc("/results/latest", s.handleLatest).Methods(http.MethodGet)
	return r
}

// ListenAndServe blocks until ctx is canceled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	log.Info().Str("addr", addr).Msg("ops server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type health struct {
		Status string `json:"status"`
		Schema string `json:"schema"`
		Store  string `json:"store,omitempty"`
	}
	h := health{Status: "ok", Schema: domain.SchemaVersion}
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			h.Status = "degraded"
			h.Store = err.Error()
		} else {
			h.Store = "ok"
		}
	}
	writeJSON(w, http.StatusOK, h)
}

// handleScanRun triggers a run. Synchronous by default; ?async=1 returns
// 202 immediately and the result lands in the publish store.
func (s *Server) handleScanRun(w http.ResponseWriter, r *http.Request) {
	universe := s.universe
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		universe = splitSymbols(raw)
	}

	if r.URL.Query().Get("async") == "1" {
		go func() {
			if _, err := s.runner.Run(context.Background(), universe); err != nil {
				log.Error().Err(err).Msg("async scan failed")
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	result, err := s.runner.Run(r.Context(), universe)
	switch {
	case errors.Is(err, publish.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case errors.Is(err, pipeline.ErrReadiness):
		// The degraded contract is still the response body.
		writeJSON(w, http.StatusServiceUnavailable, result)
		return
	case err != nil:
		log.Error().Err(err).Msg("scan failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no publish store configured"})
		return
	}
	strategy := s.strategy
	if q := r.URL.Query().Get("strategy"); q != "" {
		strategy = q
	}
	result, err := s.store.LatestResult(r.Context(), strategy)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if result == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no published result"})
		return
	}
	result.AgeMinutes = time.Since(result.Timestamp).Minutes()
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("response encode failed")
	}
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if sym := strings.ToUpper(strings.TrimSpace(p)); sym != "" {
			out = append(out, sym)
		}
	}
	return out
}
