package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/MJE43/vision-guard-go/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// handleEvents streams a session's change events over a websocket. The first
// message is the current state. The stream ends when the client goes away or
// the session is disposed.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	initial, err := sess.Snapshot(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	events, cancel := sess.Subscribe()
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket_upgrade_failed",
			zap.String("session_id", sess.ID()),
			zap.Error(err))
		return
	}
	s.metrics.streams.Inc()
	defer s.metrics.streams.Dec()

	log := s.logger.With(
		zap.String("session_id", sess.ID()),
		zap.String("request_id", middleware.GetReqID(r.Context())))
	log.Info("event_stream_opened")

	done := make(chan struct{})
	go readPump(conn, done)
	defer func() {
		conn.Close()
		<-done
		log.Info("event_stream_closed")
	}()

	first := session.Event{
		Type:      initialEventType(sess.Kind()),
		SessionID: sess.ID(),
		Kind:      sess.Kind(),
		Data:      initial,
		Time:      time.Now().UTC(),
	}
	if err := writeEvent(conn, first); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func initialEventType(k session.Kind) string {
	if k == session.KindMedication {
		return session.EventMedications
	}
	return session.EventState
}

func writeEvent(conn *websocket.Conn, ev session.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}

// readPump drains client frames so control messages are processed. Clients
// have nothing to say on this stream.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}
