package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/vision-guard-go/internal/jumpgame"
	"github.com/MJE43/vision-guard-go/internal/session"
	"github.com/MJE43/vision-guard-go/internal/trial"
)

func (s *Server) handleListTests(w http.ResponseWriter, r *http.Request) {
	cfgs := trial.List()
	tests := make([]TestInfo, 0, len(cfgs))
	for _, c := range cfgs {
		tests = append(tests, testInfo(c))
	}
	s.writeJSON(w, http.StatusOK, TestsResponse{Tests: tests, EngineVersion: EngineVersion})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos := s.sessions.List()
	s.writeJSON(w, http.StatusOK, SessionsResponse{Sessions: infos, Count: len(infos)})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON: "+err.Error())
		return
	}
	kind, err := session.ParseKind(req.Kind)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	sess, err := s.sessions.Create(kind, req.Seed)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeSession(w, r, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Dispose(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, sess *session.Session) {
	state, err := sess.Snapshot(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, status, SessionResponse{Session: sess.Info(), State: state})
}

// session resolves the {id} parameter, writing the error response when the
// session does not exist.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var (
		state any
		err   error
	)
	switch kind := sess.Kind(); {
	case kind.IsTrial():
		c, _ := sess.Trial()
		state, err = c.Start()
	case kind == session.KindJump:
		g, _ := sess.Jump()
		state, err = g.Start()
	case kind == session.KindTarget:
		g, _ := sess.Target()
		state, err = g.Start()
	default:
		err = fmt.Errorf("%w: start on %s", session.ErrWrongKind, kind)
	}
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	c, err := sess.Trial()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	var req AnswerRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON: "+err.Error())
		return
	}
	res, err := c.Submit(req.Answer)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleVerdict(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	c, err := sess.Trial()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	v, err := c.Verdict()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	g, err := sess.Jump()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	var req MoveRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON: "+err.Error())
		return
	}
	dir, err := jumpgame.ParseDirection(req.Direction)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	state, err := g.Move(dir)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	g, err := sess.Target()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	var req ClickRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON: "+err.Error())
		return
	}
	if req.ObjectID == "" {
		s.errorHandler.HandleValidationError(w, r, "object_id", "object_id is required")
		return
	}
	res, err := g.Click(req.ObjectID)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	g, err := sess.Target()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	state, err := g.Pause()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	t, err := sess.Break()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	state, err := t.Toggle()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	t, err := sess.Break()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	state, err := t.Reset()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}
