package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/vision-guard-go/internal/medication"
	"github.com/MJE43/vision-guard-go/internal/session"
)

func (s *Server) medicationList(w http.ResponseWriter, r *http.Request) (*session.Session, *medication.Manager, bool) {
	sess, ok := s.session(w, r)
	if !ok {
		return nil, nil, false
	}
	m, err := sess.Medication()
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return nil, nil, false
	}
	return sess, m, true
}

func (s *Server) handleListMedications(w http.ResponseWriter, r *http.Request) {
	_, m, ok := s.medicationList(w, r)
	if !ok {
		return
	}
	list, err := m.List(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, MedicationsResponse{Medications: list})
}

func (s *Server) handleAddMedication(w http.ResponseWriter, r *http.Request) {
	sess, m, ok := s.medicationList(w, r)
	if !ok {
		return
	}
	var req MedicationRequest
	if err := decodeJSON(w, r, maxBodyBytes, &req); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON: "+err.Error())
		return
	}
	if _, err := m.Add(r.Context(), req.Name, req.Purpose, req.Timing); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeMedications(w, r, http.StatusCreated, sess, m, medication.NoticeAdded)
}

func (s *Server) handleRemoveMedication(w http.ResponseWriter, r *http.Request) {
	sess, m, ok := s.medicationList(w, r)
	if !ok {
		return
	}
	if err := m.Remove(r.Context(), chi.URLParam(r, "medID")); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeMedications(w, r, http.StatusOK, sess, m, medication.NoticeRemoved)
}

// writeMedications answers a change with the new list and pushes the same
// list to event subscribers.
func (s *Server) writeMedications(w http.ResponseWriter, r *http.Request, status int, sess *session.Session, m *medication.Manager, notice string) {
	list, err := m.List(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	sess.Publish(session.EventMedications, list)
	s.writeJSON(w, status, MedicationsResponse{Medications: list, Notice: notice})
}

func (s *Server) handleReminders(w http.ResponseWriter, r *http.Request) {
	_, m, ok := s.medicationList(w, r)
	if !ok {
		return
	}
	notice, err := m.EnableReminders(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NoticeResponse{Notice: notice})
}
