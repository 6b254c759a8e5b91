package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/subsea-teleop/internal/commands"
	"github.com/banshee-data/subsea-teleop/internal/config"
	"github.com/banshee-data/subsea-teleop/internal/db"
	"github.com/banshee-data/subsea-teleop/internal/monitoring"
	"github.com/banshee-data/subsea-teleop/internal/teleop"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

type fixedStatus teleop.Status

func (f fixedStatus) Status() teleop.Status { return teleop.Status(f) }

type fakeDevice map[string]any

func (f fakeDevice) DeviceState() map[string]any { return f }

type fakeStore struct {
	sessions    []db.Session
	cycles      map[string][]db.CycleRow
	transitions map[string][]teleop.Transition
	notes       map[string]string
	err         error
}

func (f *fakeStore) ListSessions(_ context.Context, limit int) ([]db.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.sessions) {
		return f.sessions[:limit], nil
	}
	return f.sessions, nil
}

func (f *fakeStore) GetSession(_ context.Context, id string) (db.Session, error) {
	for _, s := range f.sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return db.Session{}, fmt.Errorf("%w: %s", db.ErrSessionNotFound, id)
}

func (f *fakeStore) SessionCycles(_ context.Context, id string) ([]db.CycleRow, error) {
	return f.cycles[id], nil
}

func (f *fakeStore) SessionTransitions(_ context.Context, id string) ([]teleop.Transition, error) {
	return f.transitions[id], nil
}

func (f *fakeStore) SetSessionNote(ctx context.Context, id, note string) error {
	if _, err := f.GetSession(ctx, id); err != nil {
		return err
	}
	if f.notes == nil {
		f.notes = make(map[string]string)
	}
	f.notes[id] = note
	return nil
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newStore() *fakeStore {
	rows := make([]db.CycleRow, 0, 10)
	for i := uint64(1); i <= 10; i++ {
		row := db.CycleRow{Seq: i, Time: t0, AttitudeMode: "setpoint", Yaw: float64(i), DepthMode: "setpoint", Depth: 2}
		if i > 5 {
			row.AttitudeMode, row.MomentZ = "moment", 4
			row.DepthMode, row.ForceZ = "force", -3
		}
		rows = append(rows, row)
	}
	return &fakeStore{
		sessions: []db.Session{
			{ID: "b", Started: t0.Add(time.Minute), StartSeq: 100},
			{ID: "a", Started: t0, StartSeq: 1, Cycles: 10, Transitions: 1},
		},
		cycles: map[string][]db.CycleRow{"a": rows},
		transitions: map[string][]teleop.Transition{
			"a": {{Seq: 1, Time: t0, Kind: teleop.TransitionArm, Enabled: true}},
		},
	}
}

func newTestServer(store SessionStore) *Server {
	st := teleop.Status{LinkHealthy: true, Published: 12}
	st.State = teleop.StateArmed
	st.Plane = commands.PlaneYZ
	return NewServer(Options{
		Status:   fixedStatus(st),
		Config:   config.ControllerConfig{Rate: 20, MaxDepth: 10},
		Sessions: store,
		Device:   fakeDevice{"battery": 11.9},
		Diagnostics: map[string]func() any{
			"udp": func() any { return map[string]int{"datagrams": 3} },
		},
	})
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestShowStatus(t *testing.T) {
	rec := get(t, newTestServer(newStore()), "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, "ARMED", body["state"])
	assert.Equal(t, true, body["link_healthy"])
	assert.Equal(t, 12.0, body["published"])
	assert.Equal(t, float64(commands.PlaneYZ), body["plane"])
	assert.Equal(t, map[string]any{"battery": 11.9}, body["device"])
	assert.Contains(t, body, "version")
	assert.Contains(t, body, "loop")
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(newStore())
	for _, target := range []string{"/api/status", "/api/config", "/api/diagnostics", "/api/sessions", "/api/sessions/a", "/api/sessions/a/cycles", "/chart/setpoints"} {
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, target, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, target)
	}
	rec := get(t, s, "/api/sessions/a/note")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestShowConfigAndDiagnostics(t *testing.T) {
	s := newTestServer(newStore())

	cfg := decode(t, get(t, s, "/api/config"))
	assert.Equal(t, 20.0, cfg["Rate"])
	assert.Equal(t, 10.0, cfg["MaxDepth"])

	diag := decode(t, get(t, s, "/api/diagnostics"))
	assert.Equal(t, map[string]any{"datagrams": 3.0}, diag["udp"])
}

func TestListSessions(t *testing.T) {
	s := newTestServer(newStore())

	rec := get(t, s, "/api/sessions?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []db.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "b", sessions[0].ID)

	for _, bad := range []string{"0", "-1", "abc"} {
		rec := get(t, s, "/api/sessions?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}

	rec = get(t, newTestServer(&fakeStore{}), "/api/sessions")
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = get(t, newTestServer(&fakeStore{err: errors.New("disk on fire")}), "/api/sessions")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk on fire")
}

func TestSessionsDisabled(t *testing.T) {
	s := NewServer(Options{Status: fixedStatus{}})
	for _, target := range []string{"/api/sessions", "/api/sessions/a", "/api/sessions/a/cycles", "/chart/setpoints"} {
		rec := get(t, s, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
}

func TestShowSession(t *testing.T) {
	s := newTestServer(newStore())

	body := decode(t, get(t, s, "/api/sessions/a"))
	assert.Equal(t, "a", body["id"])
	assert.Equal(t, 10.0, body["cycles"])
	log := body["transition_log"].([]any)
	require.Len(t, log, 1)
	assert.Equal(t, "arm", log[0].(map[string]any)["kind"])

	body = decode(t, get(t, s, "/api/sessions/b"))
	assert.Equal(t, []any{}, body["transition_log"])

	rec := get(t, s, "/api/sessions/zzz")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCycles(t *testing.T) {
	s := newTestServer(newStore())

	rec := get(t, s, "/api/sessions/a/cycles")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []db.CycleRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Len(t, rows, 10)

	assert.Equal(t, "[]\n", get(t, s, "/api/sessions/b/cycles").Body.String())
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/sessions/zzz/cycles").Code)
}

func TestSetNote(t *testing.T) {
	store := newStore()
	s := newTestServer(store)

	post := func(id, note string) *httptest.ResponseRecorder {
		form := url.Values{"note": {note}}
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/note", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.ServeMux().ServeHTTP(rec, req)
		return rec
	}

	rec := post("a", "  pool trial 3 ")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pool trial 3", store.notes["a"])

	assert.Equal(t, http.StatusNotFound, post("zzz", "x").Code)
	assert.Equal(t, http.StatusBadRequest, post("a", strings.Repeat("x", maxNoteLength+1)).Code)
}

func TestSetpointChart(t *testing.T) {
	s := newTestServer(newStore())

	rec := get(t, s, "/chart/setpoints?session=a")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "yaw sp")
	assert.Contains(t, body, "heave force")
	assert.Contains(t, body, "session=a")

	// Without a session parameter the newest session is charted.
	rec = get(t, s, "/chart/setpoints")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "session=b")

	assert.Equal(t, http.StatusNotFound, get(t, s, "/chart/setpoints?session=zzz").Code)
	assert.Equal(t, http.StatusNotFound, get(t, newTestServer(&fakeStore{}), "/chart/setpoints").Code)
}

func TestStride(t *testing.T) {
	assert.Equal(t, 1, stride(0))
	assert.Equal(t, 1, stride(maxChartPoints))
	assert.Equal(t, 2, stride(maxChartPoints+1))
	assert.Equal(t, 3, stride(3*maxChartPoints))
}

func TestLoggingMiddleware(t *testing.T) {
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		logged = append(logged, fmt.Sprintf(format, v...))
	})
	defer monitoring.SetLogger(nil)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status?x=1", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.Len(t, logged, 1)
	assert.Contains(t, logged[0], "418")
	assert.Contains(t, logged[0], "/api/status?x=1")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"404"+colorReset, statusCodeColor(404))
	assert.Equal(t, colorBoldRed+"503"+colorReset, statusCodeColor(503))
	assert.Equal(t, "101", statusCodeColor(101))
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(newStore())
	mux := http.NewServeMux()
	s.AttachAdminRoutes(mux)

	debugGet := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:12345"
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	rec := debugGet("/debug/teleop/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "state ARMED\n")
	assert.Contains(t, rec.Body.String(), "published 12\n")

	rec = debugGet("/debug/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Teleop state")

	rec = debugGet("/debug/teleop/chart")
	assert.Equal(t, get(t, s, "/chart/setpoints").Code, rec.Code)
}
