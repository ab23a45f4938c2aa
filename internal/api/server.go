// Package api serves the vision views over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/MJE43/vision-guard-go/internal/diagnosis"
	"github.com/MJE43/vision-guard-go/internal/medication"
	"github.com/MJE43/vision-guard-go/internal/session"
)

const (
	defaultRequestTimeout = 60 * time.Second
	maxBodyBytes          = 1 << 20
	maxDiagnoseBytes      = 10 << 20
)

// Options wires the server to its collaborators. Diagnosis may be nil, in
// which case the diagnose endpoint reports that it is not configured.
type Options struct {
	Sessions       *session.Manager
	Store          *medication.Store
	Diagnosis      *diagnosis.Service
	Logger         *zap.Logger
	Metrics        *Metrics
	RequestTimeout time.Duration
	MaxSessions    int
}

// Server handles HTTP requests
type Server struct {
	sessions       *session.Manager
	store          *medication.Store
	diagnosis      *diagnosis.Service
	errorHandler   *ErrorHandler
	logger         *zap.Logger
	metrics        *Metrics
	requestTimeout time.Duration
	maxSessions    int
	upgrader       websocket.Upgrader
	startTime      time.Time
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	s := &Server{
		sessions:       opts.Sessions,
		store:          opts.Store,
		diagnosis:      opts.Diagnosis,
		errorHandler:   NewErrorHandler(logger, metrics),
		logger:         logger,
		metrics:        metrics,
		requestTimeout: timeout,
		maxSessions:    opts.MaxSessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		startTime: time.Now(),
	}

	logger.Info("server_initialized",
		zap.Bool("diagnosis_enabled", s.diagnosis != nil),
		zap.Bool("store_enabled", s.store != nil),
		zap.Int("max_sessions", s.maxSessions),
		zap.String("engine_version", EngineVersion))
	return s
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLogging)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(s.CORSMiddleware)

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Event streams are long-lived and stay outside the request timeout.
		r.Get("/sessions/{id}/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.requestTimeout))

			r.Get("/version", s.handleVersion)
			r.Get("/tests", s.handleListTests)
			r.Post("/diagnose", s.handleDiagnose)

			r.Get("/sessions", s.handleListSessions)
			r.Post("/sessions", s.handleCreateSession)
			r.Route("/sessions/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)

				r.Post("/start", s.handleStart)
				r.Post("/answer", s.handleAnswer)
				r.Get("/verdict", s.handleVerdict)

				r.Post("/move", s.handleMove)
				r.Post("/click", s.handleClick)
				r.Post("/pause", s.handlePause)

				r.Post("/toggle", s.handleToggle)
				r.Post("/reset", s.handleReset)

				r.Get("/medications", s.handleListMedications)
				r.Post("/medications", s.handleAddMedication)
				r.Delete("/medications/{medID}", s.handleRemoveMedication)
				r.Post("/reminders", s.handleReminders)
			})
		})
	})

	return r
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("response_encode_failed", zap.Error(err))
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GetVersionInfo())
}
