package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MJE43/vision-guard-go/internal/breaktimer"
	"github.com/MJE43/vision-guard-go/internal/diagnosis"
	"github.com/MJE43/vision-guard-go/internal/jumpgame"
	"github.com/MJE43/vision-guard-go/internal/medication"
	"github.com/MJE43/vision-guard-go/internal/schedule"
	"github.com/MJE43/vision-guard-go/internal/session"
	"github.com/MJE43/vision-guard-go/internal/targetgame"
	"github.com/MJE43/vision-guard-go/internal/trial"
	"github.com/MJE43/vision-guard-go/internal/verdict"
)

type fakeGenerator struct {
	text string
	err  error
}

func (f fakeGenerator) Generate(context.Context, diagnosis.Prompt) (string, error) {
	return f.text, f.err
}

type testServer struct {
	handler  http.Handler
	sessions *session.Manager
	sched    *schedule.Manual
	metrics  *Metrics
}

func newTestServer(t *testing.T, gen diagnosis.Generator, maxSessions int) *testServer {
	t.Helper()
	store, err := medication.NewStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sched := schedule.NewManual()
	metrics := NewMetrics()
	mgr := session.NewManager(session.Config{MaxSessions: maxSessions}, sched, store, zap.NewNop(), metrics)
	t.Cleanup(func() { _ = mgr.Shutdown(context.Background()) })

	var svc *diagnosis.Service
	if gen != nil {
		svc = diagnosis.NewService(gen, zap.NewNop())
	}
	srv := NewServer(Options{
		Sessions:    mgr,
		Store:       store,
		Diagnosis:   svc,
		Logger:      zap.NewNop(),
		Metrics:     metrics,
		MaxSessions: maxSessions,
	})
	return &testServer{handler: srv.Routes(), sessions: mgr, sched: sched, metrics: metrics}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func (ts *testServer) create(t *testing.T, kind session.Kind, seed string) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{Kind: string(kind), Seed: seed})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[SessionResponse](t, w).Session.ID
}

func sessionPath(id, op string) string {
	if op == "" {
		return "/api/v1/sessions/" + id
	}
	return "/api/v1/sessions/" + id + "/" + op
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, errType string) EngineError {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	assert.Equal(t, errType, w.Header().Get("X-Error-Type"))
	assert.Equal(t, string(GetErrorCategory(errType)), w.Header().Get("X-Error-Category"))
	e := decode[EngineError](t, w)
	assert.Equal(t, errType, e.Type)
	assert.NotEmpty(t, e.Timestamp)
	return e
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, 10)

	w := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, EngineVersion, w.Header().Get("X-Engine-Version"))

	resp := decode[HealthCheckResponse](t, w)
	assert.Equal(t, HealthStatusDegraded, resp.Status)
	assert.Equal(t, HealthStatusHealthy, resp.Checks["store"].Status)
	assert.Equal(t, HealthStatusHealthy, resp.Checks["sessions"].Status)
	assert.Equal(t, HealthStatusDegraded, resp.Checks["diagnosis"].Status)
	assert.NotEmpty(t, resp.System.GoVersion)
}

func TestHealthDegradesAtSessionLimit(t *testing.T) {
	ts := newTestServer(t, fakeGenerator{}, 1)
	ts.create(t, session.KindBreak, "")

	resp := decode[HealthCheckResponse](t, ts.do(t, http.MethodGet, "/health", nil))
	assert.Equal(t, HealthStatusDegraded, resp.Checks["sessions"].Status)
}

func TestProbes(t *testing.T) {
	ts := newTestServer(t, nil, 10)

	w := ts.do(t, http.MethodGet, "/health/live", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["alive"])

	w = ts.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["ready"])
}

func TestVersionEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, 10)
	w := ts.do(t, http.MethodGet, "/api/v1/version", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, GetVersionInfo(), decode[VersionInfo](t, w))
}

func TestListTests(t *testing.T) {
	ts := newTestServer(t, nil, 10)

	w := ts.do(t, http.MethodGet, "/api/v1/tests", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[TestsResponse](t, w)
	require.Len(t, resp.Tests, 3)

	byID := map[string]TestInfo{}
	for _, ti := range resp.Tests {
		byID[ti.ID] = ti
	}
	assert.Equal(t, 15, byID[trial.AcuityID].TrialCount)
	assert.Equal(t, 60, byID[trial.AmblyopiaID].DurationSeconds)
	assert.Equal(t, trial.MatchExact, byID[trial.ColorID].Match)
	assert.Equal(t, EngineVersion, resp.EngineVersion)
}

func TestAcuityRunOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil, 10)
	id := ts.create(t, session.KindAcuity, "fixed-seed")

	w := ts.do(t, http.MethodGet, sessionPath(id, "verdict"), nil)
	requireError(t, w, http.StatusConflict, ErrTypeInvalidState)

	w = ts.do(t, http.MethodPost, sessionPath(id, "start"), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	snap := decode[trial.Snapshot](t, w)
	require.Equal(t, trial.PhaseRunning, snap.State.Phase)

	for i := 0; i < 15; i++ {
		w = ts.do(t, http.MethodPost, sessionPath(id, "answer"), AnswerRequest{Answer: snap.State.Current.Symbol})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		res := decode[trial.Result](t, w)
		require.True(t, res.Correct)
		snap = res.Snapshot
	}
	assert.Equal(t, trial.PhaseComplete, snap.State.Phase)

	w = ts.do(t, http.MethodGet, sessionPath(id, "verdict"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	v := decode[verdict.Verdict](t, w)
	assert.Equal(t, "Excellent", v.Label)
	assert.Equal(t, 15, v.Correct)
	assert.Equal(t, 15, v.Total)
}

func TestSessionErrors(t *testing.T) {
	ts := newTestServer(t, nil, 10)

	w := ts.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{Kind: "reading"})
	requireError(t, w, http.StatusUnprocessableEntity, ErrTypeValidation)

	w = ts.do(t, http.MethodPost, "/api/v1/sessions", "{not json")
	e := requireError(t, w, http.StatusBadRequest, ErrTypeInvalidParams)
	assert.Equal(t, "body", e.Context["field"])

	w = ts.do(t, http.MethodGet, sessionPath("missing", ""), nil)
	requireError(t, w, http.StatusNotFound, ErrTypeSessionNotFound)

	id := ts.create(t, session.KindAcuity, "")
	w = ts.do(t, http.MethodPost, sessionPath(id, "move"), MoveRequest{Direction: "left"})
	requireError(t, w, http.StatusConflict, ErrTypeUnsupported)

	w = ts.do(t, http.MethodPost, sessionPath(id, "answer"), AnswerRequest{Answer: "E"})
	requireError(t, w, http.StatusConflict, ErrTypeInvalidState)

	ts.do(t, http.MethodPost, sessionPath(id, "start"), nil)
	w = ts.do(t, http.MethodPost, sessionPath(id, "answer"), AnswerRequest{Answer: "   "})
	requireError(t, w, http.StatusUnprocessableEntity, ErrTypeValidation)

	breakID := ts.create(t, session.KindBreak, "")
	w = ts.do(t, http.MethodPost, sessionPath(breakID, "start"), nil)
	requireError(t, w, http.StatusConflict, ErrTypeUnsupported)
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, nil, 10)
	id := ts.create(t, session.KindJump, "seed")

	w := ts.do(t, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[SessionsResponse](t, w)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, id, list.Sessions[0].ID)
	assert.NotContains(t, w.Body.String(), `"seed"`)

	w = ts.do(t, http.MethodGet, sessionPath(id, ""), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, session.KindJump, decode[SessionResponse](t, w).Session.Kind)

	w = ts.do(t, http.MethodDelete, sessionPath(id, ""), nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodDelete, sessionPath(id, ""), nil)
	requireError(t, w, http.StatusNotFound, ErrTypeSessionNotFound)
}

func TestSessionLimit(t *testing.T) {
	ts := newTestServer(t, nil, 1)
	ts.create(t, session.KindTarget, "")

	w := ts.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{Kind: string(session.KindTarget)})
	requireError(t, w, http.StatusTooManyRequests, ErrTypeSessionLimit)
}

func TestCreateAfterShutdown(t *testing.T) {
	ts := newTestServer(t, nil, 10)
	require.NoError(t, ts.sessions.Shutdown(context.Background()))

	w := ts.do(t, http.MethodPost, "/api/v1/sessions", CreateSessionRequest{Kind: string(session.KindBreak)})
	requireError(t, w, http.StatusServiceUnavailable, ErrTypeServiceUnavailable)
}

func TestJumpMove(t *testing.T) {
	ts := newTestServer(t, nil, 10)
	id := ts.create(t, session.KindJump, "seed")

	w := ts.do(t, http.MethodPost, sessionPath(id, "start"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	start := decode[jumpgame.State](t, w)
	require.Equal(t, jumpgame.PhaseRunning, start.Phase)

	w = ts.do(t, http.MethodPost, sessionPath(id, "move"), MoveRequest{Direction: "left"})
	require.Equal(t, http.StatusOK, w.Code)
	moved := decode[jumpgame.State](t, w)
	assert.InDelta(t, start.Player.X-jumpgame.MoveStep, moved.Player.X, 1e-9)

	w = ts.do(t, http.MethodPost, sessionPath(id, "move"), MoveRequest{Direction: "up"})
	requireError(t, w, http.StatusUnprocessableEntity, ErrTypeValidation)
}

func TestTargetGame(t *testing.T) {
	ts := newTestServer(t, nil, 10)
	id := ts.create(t, session.KindTarget, "seed")

	w := ts.do(t, http.MethodPost, sessionPath(id, "click"), ClickRequest{ObjectID: "x"})
	requireError(t, w, http.StatusConflict, ErrTypeInvalidState)

	w = ts.do(t, http.MethodPost, sessionPath(id, "start"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, targetgame.PhaseRunning, decode[targetgame.State](t, w).Phase)

	w = ts.do(t, http.MethodPost, sessionPath(id, "click"), ClickRequest{ObjectID: "nope"})
	requireError(t, w, http.StatusNotFound, ErrTypeNotFound)

	w = ts.do(t, http.MethodPost, sessionPath(id, "click"), ClickRequest{})
	requireError(t, w, http.StatusBadRequest, ErrTypeInvalidParams)

	ts.sched.Advance(targetgame.SpawnPeriod)
	snap := decode[SessionResponse](t, ts.do(t, http.MethodGet, sessionPath(id, ""), nil))
	raw, err := json.Marshal(snap.State)
	require.NoError(t, err)
	var st targetgame.State
	require.NoError(t, json.Unmarshal(raw, &st))
	require.Len(t, st.Objects, 1)

	w = ts.do(t, http.MethodPost, sessionPath(id, "click"), ClickRequest{ObjectID: st.Objects[0].ID})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[targetgame.ClickResult](t, w)
	if res.Outcome == targetgame.Hit {
		assert.Empty(t, res.State.Objects)
		assert.Equal(t, targetgame.HitScore, res.State.Score)
	} else {
		assert.Len(t, res.State.Objects, 1)
		assert.Equal(t, 0, res.State.Score)
	}

	w = ts.do(t, http.MethodPost, sessionPath(id, "pause"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, targetgame.PhasePaused, decode[targetgame.State](t, w).Phase)
}

func TestBreakTimer(t *testing.T) {
	ts := newTestServer(t, nil, 10)
	id := ts.create(t, session.KindBreak, "")

	w := ts.do(t, http.MethodPost, sessionPath(id, "toggle"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[breaktimer.State](t, w)
	assert.True(t, st.Active)
	assert.Equal(t, breaktimer.NoticeStarted, st.Notice)
	assert.Equal(t, "20:00", st.TimeLeftText)

	w = ts.do(t, http.MethodPost, sessionPath(id, "reset"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[breaktimer.State](t, w).Active)
}

func TestMedications(t *testing.T) {
	ts := newTestServer(t, nil, 10)
	id := ts.create(t, session.KindMedication, "")

	w := ts.do(t, http.MethodPost, sessionPath(id, "reminders"), nil)
	e := requireError(t, w, http.StatusUnprocessableEntity, ErrTypeValidation)
	assert.Equal(t, medication.NoticeNoMedications, e.Message)

	w = ts.do(t, http.MethodPost, sessionPath(id, "medications"), MedicationRequest{Name: "Timolol"})
	e = requireError(t, w, http.StatusUnprocessableEntity, ErrTypeValidation)
	assert.Equal(t, medication.NoticeMissingField, e.Message)

	w = ts.do(t, http.MethodPost, sessionPath(id, "medications"),
		MedicationRequest{Name: "Timolol", Purpose: "Glaucoma", Timing: "08:00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	added := decode[MedicationsResponse](t, w)
	require.Len(t, added.Medications, 1)
	assert.Equal(t, medication.NoticeAdded, added.Notice)

	w = ts.do(t, http.MethodGet, sessionPath(id, "medications"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[MedicationsResponse](t, w).Medications, 1)

	w = ts.do(t, http.MethodPost, sessionPath(id, "reminders"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, medication.NoticeReminders, decode[NoticeResponse](t, w).Notice)

	w = ts.do(t, http.MethodDelete, sessionPath(id, "medications/"+added.Medications[0].ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	removed := decode[MedicationsResponse](t, w)
	assert.Empty(t, removed.Medications)
	assert.Equal(t, medication.NoticeRemoved, removed.Notice)

	w = ts.do(t, http.MethodDelete, sessionPath(id, "medications/"+added.Medications[0].ID), nil)
	requireError(t, w, http.StatusNotFound, ErrTypeNotFound)
}

func TestDiagnose(t *testing.T) {
	body := diagnosis.Request{MedicalHistory: "myopia", Symptoms: "blurred vision"}

	t.Run("not configured", func(t *testing.T) {
		ts := newTestServer(t, nil, 10)
		w := ts.do(t, http.MethodPost, "/api/v1/diagnose", body)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "GEMINI_API_KEY is not configured", decode[DiagnoseError](t, w).Error)
	})

	t.Run("empty key", func(t *testing.T) {
		ts := newTestServer(t, fakeGenerator{err: diagnosis.ErrNotConfigured}, 10)
		w := ts.do(t, http.MethodPost, "/api/v1/diagnose", body)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "GEMINI_API_KEY is not configured", decode[DiagnoseError](t, w).Error)
	})

	t.Run("ok", func(t *testing.T) {
		ts := newTestServer(t, fakeGenerator{text: "See an optometrist."}, 10)
		w := ts.do(t, http.MethodPost, "/api/v1/diagnose", body)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "See an optometrist.", decode[diagnosis.Response](t, w).Diagnosis)
	})

	t.Run("missing input", func(t *testing.T) {
		ts := newTestServer(t, fakeGenerator{text: "unused"}, 10)
		w := ts.do(t, http.MethodPost, "/api/v1/diagnose", diagnosis.Request{})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Please provide medical history or symptoms", decode[DiagnoseError](t, w).Error)
	})

	t.Run("bad body", func(t *testing.T) {
		ts := newTestServer(t, fakeGenerator{}, 10)
		w := ts.do(t, http.MethodPost, "/api/v1/diagnose", "[")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", decode[DiagnoseError](t, w).Error)
	})

	t.Run("upstream failure", func(t *testing.T) {
		ts := newTestServer(t, fakeGenerator{err: &diagnosis.UpstreamError{Code: 503}}, 10)
		w := ts.do(t, http.MethodPost, "/api/v1/diagnose", body)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Gemini API error: 503", decode[DiagnoseError](t, w).Error)
	})
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil, 10)
	w := ts.do(t, http.MethodOptions, "/api/v1/diagnose", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "content-type")
}

func TestRecoveryHandler(t *testing.T) {
	eh := NewErrorHandler(zap.NewNop(), NewMetrics())
	h := eh.RecoveryHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	e := requireError(t, w, http.StatusInternalServerError, ErrTypeInternal)
	assert.Equal(t, "Internal server error", e.Message)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil, 10)
	id := ts.create(t, session.KindBreak, "")
	ts.do(t, http.MethodGet, sessionPath("missing", ""), nil)
	ts.do(t, http.MethodDelete, sessionPath(id, ""), nil)

	w := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := w.Body.String()
	assert.Contains(t, out, `visionguard_sessions_created_total{kind="break"} 1`)
	assert.Contains(t, out, `visionguard_sessions_disposed_total{kind="break",reason="client"} 1`)
	assert.Contains(t, out, `visionguard_http_errors_total{category="session",type="session_not_found"} 1`)
	assert.Contains(t, out, `route="/api/v1/sessions"`)
}
