package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MJE43/vision-guard-go/internal/breaktimer"
	"github.com/MJE43/vision-guard-go/internal/engine"
	"github.com/MJE43/vision-guard-go/internal/jumpgame"
	"github.com/MJE43/vision-guard-go/internal/medication"
	"github.com/MJE43/vision-guard-go/internal/schedule"
	"github.com/MJE43/vision-guard-go/internal/targetgame"
	"github.com/MJE43/vision-guard-go/internal/trial"
)

// Config bounds the registry.
type Config struct {
	MaxSessions  int
	IdleTTL      time.Duration
	ReapInterval time.Duration
}

// Observer receives lifecycle notifications, typically for metrics.
type Observer interface {
	SessionCreated(kind Kind)
	SessionDisposed(kind Kind, reason string)
	EventDropped(kind Kind)
}

type nopObserver struct{}

func (nopObserver) SessionCreated(Kind)          {}
func (nopObserver) SessionDisposed(Kind, string) {}
func (nopObserver) EventDropped(Kind)            {}

// Dispose reasons.
const (
	ReasonClient   = "client"
	ReasonIdle     = "idle"
	ReasonShutdown = "shutdown"
)

// Manager owns every live session.
type Manager struct {
	cfg    Config
	sched  schedule.Scheduler
	store  *medication.Store
	log    *zap.Logger
	obs    Observer
	now    func() time.Time
	reaper schedule.Task

	mu       sync.Mutex
	sessions map[string]*Session
	shutdown bool
}

// NewManager creates a registry and starts the idle reaper when an idle TTL
// is configured. store may be nil, in which case medication sessions cannot
// be created.
func NewManager(cfg Config, sched schedule.Scheduler, store *medication.Store, log *zap.Logger, obs Observer) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	m := &Manager{
		cfg:      cfg,
		sched:    sched,
		store:    store,
		log:      log,
		obs:      obs,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	if cfg.IdleTTL > 0 && cfg.ReapInterval > 0 {
		m.reaper = sched.Every(cfg.ReapInterval, m.reap)
	}
	return m
}

// Create starts a session of the given kind. An empty seed draws a fresh one.
func (m *Manager) Create(kind Kind, seed string) (*Session, error) {
	if seed == "" {
		seed = engine.NewSeed()
	}
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil, ErrShutdown
	}
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrLimitReached, m.cfg.MaxSessions)
	}
	m.mu.Unlock()

	now := m.now()
	s := &Session{
		id:        uuid.NewString(),
		kind:      kind,
		seed:      seed,
		createdAt: now.UTC(),
		lastSeen:  now,
		subs:      make(map[int]chan Event),
		now:       m.now,
		dropped:   func() { m.obs.EventDropped(kind) },
	}
	if err := m.attachView(s); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		_ = s.dispose(context.Background())
		return nil, fmt.Errorf("%w: %d", ErrLimitReached, m.cfg.MaxSessions)
	}
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.obs.SessionCreated(kind)
	m.log.Info("session_created",
		zap.String("session_id", s.id),
		zap.String("kind", string(kind)),
		zap.String("seed_hash", engine.HashSeed(seed)))
	return s, nil
}

func (m *Manager) attachView(s *Session) error {
	src := engine.NewStream(s.seed, string(s.kind))
	switch s.kind {
	case KindJump:
		g := jumpgame.New(src, m.sched)
		g.OnChange(func(st jumpgame.State) { s.Publish(EventState, st) })
		s.jump = g
	case KindTarget:
		g := targetgame.New(src, m.sched)
		g.OnChange(func(st targetgame.State) { s.Publish(EventState, st) })
		s.target = g
	case KindBreak:
		t := breaktimer.New(m.sched)
		t.OnChange(func(st breaktimer.State) { s.Publish(EventState, st) })
		s.breakTimer = t
	case KindMedication:
		if m.store == nil {
			return ErrNoStore
		}
		s.medication = medication.NewManager(m.store, s.id)
	default:
		cfg, ok := trial.Lookup(string(s.kind))
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownKind, s.kind)
		}
		c, err := trial.NewController(cfg, src, m.sched)
		if err != nil {
			return err
		}
		c.OnChange(func(snap trial.Snapshot) { s.Publish(EventState, snap) })
		s.trial = c
	}
	return nil
}

// Get returns a live session and marks it as seen.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.touch()
	return s, nil
}

// Dispose ends a session.
func (m *Manager) Dispose(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.disposeSession(ctx, s, ReasonClient)
}

func (m *Manager) disposeSession(ctx context.Context, s *Session, reason string) error {
	err := s.dispose(ctx)
	m.obs.SessionDisposed(s.kind, reason)
	m.log.Info("session_disposed",
		zap.String("session_id", s.id),
		zap.String("kind", string(s.kind)),
		zap.String("reason", reason))
	if err != nil {
		m.log.Warn("session_dispose_failed", zap.String("session_id", s.id), zap.Error(err))
	}
	return err
}

// List returns every live session, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown stops the reaper and disposes every session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.shutdown = true
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	if m.reaper != nil {
		m.reaper.Stop()
	}
	var errs []error
	for _, s := range sessions {
		if err := m.disposeSession(ctx, s, ReasonShutdown); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) reap() {
	cutoff := m.now().Add(-m.cfg.IdleTTL)
	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		// A session with an open event stream is in use even when the
		// client sends no requests.
		if s.watched() {
			continue
		}
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		_ = m.disposeSession(context.Background(), s, ReasonIdle)
	}
}
