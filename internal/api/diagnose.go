package api

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/MJE43/vision-guard-go/internal/diagnosis"
)

// handleDiagnose keeps the {error} body the diagnosis view expects instead of
// the structured error shape used elsewhere.
func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	if s.diagnosis == nil {
		s.diagnoseError(w, http.StatusInternalServerError, diagnosis.NoticeNotConfigured)
		return
	}
	var req diagnosis.Request
	if err := decodeJSON(w, r, maxDiagnoseBytes, &req); err != nil {
		s.logger.Warn("diagnose_bad_body", zap.Error(err))
		s.diagnoseError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	resp, err := s.diagnosis.Diagnose(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, diagnosis.ErrMissingInput) || errors.Is(err, diagnosis.ErrInvalidImage) {
			status = http.StatusBadRequest
		}
		s.diagnoseError(w, status, diagnoseMessage(err))
		return
	}
	s.metrics.diagnoses.WithLabelValues("ok").Inc()
	s.writeJSON(w, http.StatusOK, resp)
}

// diagnoseMessage maps a diagnosis failure to the text the view shows.
func diagnoseMessage(err error) string {
	var upstream *diagnosis.UpstreamError
	switch {
	case errors.Is(err, diagnosis.ErrMissingInput):
		return diagnosis.NoticeMissingInput
	case errors.Is(err, diagnosis.ErrNotConfigured):
		return diagnosis.NoticeNotConfigured
	case errors.As(err, &upstream) && upstream.Code != 0:
		return fmt.Sprintf("%s: %d", diagnosis.NoticeUpstream, upstream.Code)
	case errors.Is(err, diagnosis.ErrUpstream):
		return diagnosis.NoticeUpstream
	}
	return err.Error()
}

func (s *Server) diagnoseError(w http.ResponseWriter, status int, message string) {
	outcome := "failed"
	if status == http.StatusBadRequest {
		outcome = "rejected"
	}
	s.metrics.diagnoses.WithLabelValues(outcome).Inc()
	s.writeJSON(w, status, DiagnoseError{Error: message})
}
