package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/vision-guard-go/internal/breaktimer"
	"github.com/MJE43/vision-guard-go/internal/session"
)

type breakEvent struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Kind      session.Kind     `json:"kind"`
	Data      breaktimer.State `json:"data"`
}

func readEvent(t *testing.T, conn *websocket.Conn) breakEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev breakEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t, nil, 10)
	srv := httptest.NewServer(ts.handler)
	t.Cleanup(srv.Close)

	id := ts.create(t, session.KindBreak, "")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + sessionPath(id, "events")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	first := readEvent(t, conn)
	assert.Equal(t, session.EventState, first.Type)
	assert.Equal(t, id, first.SessionID)
	assert.Equal(t, session.KindBreak, first.Kind)
	assert.False(t, first.Data.Active)

	res, err := http.Post(srv.URL+sessionPath(id, "toggle"), "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	toggled := readEvent(t, conn)
	assert.Equal(t, session.EventState, toggled.Type)
	assert.True(t, toggled.Data.Active)
	assert.Equal(t, breaktimer.NoticeStarted, toggled.Data.Notice)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+sessionPath(id, ""), nil)
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	assert.Equal(t, session.EventDisposed, readEvent(t, conn).Type)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestEventStreamUnknownSession(t *testing.T) {
	ts := newTestServer(t, nil, 10)
	srv := httptest.NewServer(ts.handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + sessionPath("missing", "events")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, ErrTypeSessionNotFound, resp.Header.Get("X-Error-Type"))
}
