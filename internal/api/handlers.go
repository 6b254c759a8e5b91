package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/subsea-teleop/internal/db"
	"github.com/banshee-data/subsea-teleop/internal/httputil"
	"github.com/banshee-data/subsea-teleop/internal/teleop"
	"github.com/banshee-data/subsea-teleop/internal/version"
)

const (
	defaultSessionLimit = 50
	maxNoteLength       = 1024
)

type statusResponse struct {
	teleop.Status
	Version string         `json:"version"`
	Uptime  string         `json:"uptime"`
	Device  map[string]any `json:"device,omitempty"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	resp := statusResponse{
		Status:  s.status.Status(),
		Version: version.String(),
		Uptime:  time.Since(s.started).Truncate(time.Second).String(),
	}
	if s.device != nil {
		resp.Device = s.device.DeviceState()
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.cfg)
}

func (s *Server) showDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	out := make(map[string]any, len(s.diagnostics))
	for name, f := range s.diagnostics {
		out[name] = f()
	}
	httputil.WriteJSONOK(w, out)
}

// requireSessions writes a 503 and returns false when no session log is
// configured.
func (s *Server) requireSessions(w http.ResponseWriter) bool {
	if s.sessions == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "session log disabled")
		return false
	}
	return true
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireSessions(w) {
		return
	}

	limit := defaultSessionLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	sessions, err := s.sessions.ListSessions(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, "failed to list sessions: "+err.Error())
		return
	}
	if sessions == nil {
		sessions = []db.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

type sessionResponse struct {
	db.Session
	TransitionLog []teleop.Transition `json:"transition_log"`
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireSessions(w) {
		return
	}
	id := r.PathValue("id")
	session, err := s.sessions.GetSession(r.Context(), id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	transitions, err := s.sessions.SessionTransitions(r.Context(), id)
	if err != nil {
		httputil.InternalServerError(w, "failed to load transitions: "+err.Error())
		return
	}
	if transitions == nil {
		transitions = []teleop.Transition{}
	}
	httputil.WriteJSONOK(w, sessionResponse{Session: session, TransitionLog: transitions})
}

func (s *Server) listCycles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireSessions(w) {
		return
	}
	id := r.PathValue("id")
	if _, err := s.sessions.GetSession(r.Context(), id); err != nil {
		writeSessionError(w, err)
		return
	}
	cycles, err := s.sessions.SessionCycles(r.Context(), id)
	if err != nil {
		httputil.InternalServerError(w, "failed to load cycles: "+err.Error())
		return
	}
	if cycles == nil {
		cycles = []db.CycleRow{}
	}
	httputil.WriteJSONOK(w, cycles)
}

func (s *Server) setNote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireSessions(w) {
		return
	}
	note := strings.TrimSpace(r.FormValue("note"))
	if len(note) > maxNoteLength {
		httputil.BadRequest(w, "note too long")
		return
	}
	if err := s.sessions.SetSessionNote(r.Context(), r.PathValue("id"), note); err != nil {
		writeSessionError(w, err)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{"note": note})
}

func writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrSessionNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err.Error())
}
