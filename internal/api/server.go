// Package api serves the operator-facing HTTP API: controller status,
// configuration, recorded sessions and a setpoint chart.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/subsea-teleop/internal/config"
	"github.com/banshee-data/subsea-teleop/internal/db"
	"github.com/banshee-data/subsea-teleop/internal/monitoring"
	"github.com/banshee-data/subsea-teleop/internal/teleop"
)

// ANSI escape codes for request logging
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// StatusSource provides the latest controller status.
type StatusSource interface {
	Status() teleop.Status
}

// SessionStore reads the session log.
type SessionStore interface {
	ListSessions(ctx context.Context, limit int) ([]db.Session, error)
	GetSession(ctx context.Context, id string) (db.Session, error)
	SessionCycles(ctx context.Context, id string) ([]db.CycleRow, error)
	SessionTransitions(ctx context.Context, id string) ([]teleop.Transition, error)
	SetSessionNote(ctx context.Context, id, note string) error
}

// DeviceStater reports fields received from the input bridge.
type DeviceStater interface {
	DeviceState() map[string]any
}

// Options wires a Server. Only Status is required.
type Options struct {
	Status   StatusSource
	Config   config.ControllerConfig
	Sessions SessionStore
	Device   DeviceStater
	// Diagnostics are named counters from transports and publishers,
	// evaluated per request.
	Diagnostics map[string]func() any
}

type Server struct {
	status      StatusSource
	cfg         config.ControllerConfig
	sessions    SessionStore
	device      DeviceStater
	diagnostics map[string]func() any
	started     time.Time
}

func NewServer(opts Options) *Server {
	return &Server{
		status:      opts.Status,
		cfg:         opts.Config,
		sessions:    opts.Sessions,
		device:      opts.Device,
		diagnostics: opts.Diagnostics,
		started:     time.Now(),
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/diagnostics", s.showDiagnostics)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/sessions/{id}", s.showSession)
	mux.HandleFunc("/api/sessions/{id}/cycles", s.listCycles)
	mux.HandleFunc("/api/sessions/{id}/note", s.setNote)
	mux.HandleFunc("/chart/setpoints", s.setpointChart)
	return mux
}
