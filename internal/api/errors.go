package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MJE43/vision-guard-go/internal/breaktimer"
	"github.com/MJE43/vision-guard-go/internal/jumpgame"
	"github.com/MJE43/vision-guard-go/internal/medication"
	"github.com/MJE43/vision-guard-go/internal/session"
	"github.com/MJE43/vision-guard-go/internal/targetgame"
	"github.com/MJE43/vision-guard-go/internal/trial"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	ctx := eb.context
	if len(ctx) == 0 {
		ctx = nil
	}
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// classify maps a domain error onto an HTTP status and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, ErrTypeSessionNotFound
	case errors.Is(err, medication.ErrNotFound),
		errors.Is(err, targetgame.ErrUnknownObject):
		return http.StatusNotFound, ErrTypeNotFound
	case errors.Is(err, session.ErrWrongKind):
		return http.StatusConflict, ErrTypeUnsupported
	case errors.Is(err, session.ErrLimitReached):
		return http.StatusTooManyRequests, ErrTypeSessionLimit
	case errors.Is(err, session.ErrUnknownKind),
		errors.Is(err, trial.ErrEmptyAnswer),
		errors.Is(err, jumpgame.ErrInvalidDirection),
		errors.Is(err, medication.ErrMissingField),
		errors.Is(err, medication.ErrNoMedications):
		return http.StatusUnprocessableEntity, ErrTypeValidation
	case errors.Is(err, trial.ErrNotRunning),
		errors.Is(err, trial.ErrNotComplete),
		errors.Is(err, trial.ErrDisposed),
		errors.Is(err, jumpgame.ErrNotRunning),
		errors.Is(err, jumpgame.ErrDisposed),
		errors.Is(err, targetgame.ErrNotRunning),
		errors.Is(err, targetgame.ErrDisposed),
		errors.Is(err, breaktimer.ErrDisposed):
		return http.StatusConflict, ErrTypeInvalidState
	case errors.Is(err, session.ErrShutdown),
		errors.Is(err, session.ErrNoStore):
		return http.StatusServiceUnavailable, ErrTypeServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrTypeTimeout
	default:
		return http.StatusInternalServerError, ErrTypeInternal
	}
}

// userMessage is the notice a view shows for a validation error, when the
// domain has one.
func userMessage(err error) string {
	switch {
	case errors.Is(err, medication.ErrMissingField):
		return medication.NoticeMissingField
	case errors.Is(err, medication.ErrNoMedications):
		return medication.NoticeNoMedications
	}
	return err.Error()
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger  *zap.Logger
	metrics *Metrics
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, metrics *Metrics) *ErrorHandler {
	return &ErrorHandler{logger: logger, metrics: metrics}
}

// HandleError maps err and writes the structured error response.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType := classify(err)
	message := userMessage(err)
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	b := NewError(errType, message).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method)
	if status == http.StatusInternalServerError {
		b.WithContext("cause", err.Error())
	}
	eh.respond(w, r, status, b.Build())
}

// HandleValidationError handles validation-specific errors
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	engineErr := NewError(ErrTypeInvalidParams, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("field", field).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()
	eh.respond(w, r, http.StatusBadRequest, engineErr)
}

func (eh *ErrorHandler) respond(w http.ResponseWriter, r *http.Request, status int, engineErr EngineError) {
	eh.logError(r, engineErr, status)
	if eh.metrics != nil {
		eh.metrics.errors.WithLabelValues(engineErr.Type, string(GetErrorCategory(engineErr.Type))).Inc()
	}
	writeErrorResponse(w, status, engineErr)
}

// logError logs the error with a level chosen by category.
func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int) {
	category := GetErrorCategory(engineErr.Type)
	fields := []zap.Field{
		zap.String("type", engineErr.Type),
		zap.String("category", string(category)),
		zap.Int("status", status),
		zap.String("request_id", engineErr.RequestID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("message", engineErr.Message),
	}
	if cause, ok := engineErr.Context["cause"]; ok {
		fields = append(fields, zap.Any("cause", cause))
	}
	if status >= http.StatusInternalServerError {
		eh.logger.Error("error_occurred", fields...)
		return
	}
	eh.logger.Warn("error_occurred", fields...)
}

// writeErrorResponse writes the error response as JSON
func writeErrorResponse(w http.ResponseWriter, status int, engineErr EngineError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set("X-Error-Type", engineErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(engineErr)
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			requestID := middleware.GetReqID(r.Context())
			eh.logger.Error("panic_recovered",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
				zap.Any("panic", rvr),
				zap.Stack("stack"))

			engineErr := NewError(ErrTypeInternal, "Internal server error").
				WithRequestID(requestID).
				WithContext("path", r.URL.Path).
				WithContext("method", r.Method).
				Build()
			writeErrorResponse(w, http.StatusInternalServerError, engineErr)
		}()

		next.ServeHTTP(w, r)
	})
}
