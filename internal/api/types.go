package api

import (
	"github.com/MJE43/vision-guard-go/internal/medication"
	"github.com/MJE43/vision-guard-go/internal/session"
	"github.com/MJE43/vision-guard-go/internal/stimulus"
	"github.com/MJE43/vision-guard-go/internal/trial"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types
const (
	// Input validation errors
	ErrTypeInvalidParams = "invalid_params"
	ErrTypeValidation    = "validation_error"

	// Session and view errors
	ErrTypeSessionNotFound = "session_not_found"
	ErrTypeNotFound        = "not_found"
	ErrTypeUnsupported     = "unsupported_operation"
	ErrTypeInvalidState    = "invalid_state"

	// System errors
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeSessionLimit       = "session_limit_reached"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategorySession    ErrorCategory = "session"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeInvalidParams, ErrTypeValidation:
		return CategoryValidation
	case ErrTypeSessionNotFound, ErrTypeNotFound, ErrTypeUnsupported, ErrTypeInvalidState:
		return CategorySession
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains engine version information
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// TestInfo describes one registered vision test.
type TestInfo struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Instructions    []string        `json:"instructions"`
	TrialCount      int             `json:"trial_count,omitempty"`
	DurationSeconds int             `json:"duration_seconds,omitempty"`
	Match           trial.MatchMode `json:"match"`
	MaxInputLen     int             `json:"max_input_len"`
	Stimuli         stimulus.Config `json:"stimuli"`
}

func testInfo(c trial.Config) TestInfo {
	return TestInfo{
		ID:              c.ID,
		Name:            c.Name,
		Description:     c.Description,
		Instructions:    c.Instructions,
		TrialCount:      c.TrialCount,
		DurationSeconds: c.DurationSeconds(),
		Match:           c.Match,
		MaxInputLen:     c.MaxInputLen,
		Stimuli:         c.Stimuli,
	}
}

// TestsResponse lists the vision tests.
type TestsResponse struct {
	Tests         []TestInfo `json:"tests"`
	EngineVersion string     `json:"engine_version"`
}

// CreateSessionRequest opens a view. An empty seed is replaced by a random one.
type CreateSessionRequest struct {
	Kind string `json:"kind"`
	Seed string `json:"seed,omitempty"`
}

// SessionResponse is a session summary with the current view state.
type SessionResponse struct {
	Session session.Info `json:"session"`
	State   any          `json:"state"`
}

// SessionsResponse lists live sessions.
type SessionsResponse struct {
	Sessions []session.Info `json:"sessions"`
	Count    int            `json:"count"`
}

type AnswerRequest struct {
	Answer string `json:"answer"`
}

type MoveRequest struct {
	Direction string `json:"direction"`
}

type ClickRequest struct {
	ObjectID string `json:"object_id"`
}

type MedicationRequest struct {
	Name    string `json:"name"`
	Purpose string `json:"purpose"`
	Timing  string `json:"timing"`
}

// MedicationsResponse carries a medication list and the notice of the change
// that produced it.
type MedicationsResponse struct {
	Medications []medication.Medication `json:"medications"`
	Notice      string                  `json:"notice,omitempty"`
}

// NoticeResponse carries a user-facing message.
type NoticeResponse struct {
	Notice string `json:"notice"`
}

// DiagnoseError is the error body of the diagnose endpoint.
type DiagnoseError struct {
	Error string `json:"error"`
}
