package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthStatus is the JSON body served at /healthz: a single
// process-wide degraded flag rather than per-pipeline health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Degraded  bool      `json:"degraded"`
	Checked   time.Time `json:"checked_at"`
	LastError string    `json:"last_error,omitempty"`
}

// HealthRecorder is the process-wide health state the CLI and core
// package update after each snapshot build, read back by /healthz.
type HealthRecorder struct {
	mu     sync.RWMutex
	status HealthStatus
}

func NewHealthRecorder() *HealthRecorder {
	return &HealthRecorder{status: HealthStatus{Status: "ok", Checked: time.Time{}}}
}

func (h *HealthRecorder) RecordSuccess(degraded bool, checkedAt time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = HealthStatus{Status: "ok", Degraded: degraded, Checked: checkedAt}
}

func (h *HealthRecorder) RecordFailure(err error, checkedAt time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = HealthStatus{Status: "failing", Degraded: true, Checked: checkedAt, LastError: err.Error()}
}

func (h *HealthRecorder) Snapshot() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Server exposes /metrics (Prometheus exposition format) and /healthz
// via a constructor plus Handler() building a plain http.ServeMux,
// narrowed to the two operational endpoints this process needs.
type Server struct {
	health *HealthRecorder
	logger *slog.Logger
}

func NewServer(health *HealthRecorder, logger *slog.Logger) *Server {
	return &Server{health: health, logger: logger.With("component", "telemetry")}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := s.health.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if status.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error("encode health response failed", "error", err)
	}
}

// Serve runs the telemetry HTTP server until ctx is cancelled, then
// shuts it down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
