// Package health exposes liveness, readiness and operator status endpoints
// for the running bridge.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tinyland-inc/wahook/pkg/forward"
)

// Status is the operator view returned by /status.
type Status struct {
	State         string                `json:"state"`
	CacheSize     int                   `json:"cache_size"`
	Delivery      forward.StatsSnapshot `json:"delivery"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
}

// StatusFunc supplies the current Status on each request.
type StatusFunc func() Status

type Server struct {
	srv    *http.Server
	status StatusFunc
}

func NewServer(host string, port int, status StatusFunc) *Server {
	s := &Server{status: status}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/status", s.handleStatus)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start blocks serving until Stop is called.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports 200 only while the session is open, so orchestrators
// can gate traffic on a live connection.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	st := s.status()
	if st.State != "open" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"state":  st.State,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}
