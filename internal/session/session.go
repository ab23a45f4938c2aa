// Package session hosts the live views. Every session owns exactly one view
// (a test run, a game, the break timer or a medication list), its own
// randomness and at most one scheduled task. Sessions never share state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MJE43/vision-guard-go/internal/breaktimer"
	"github.com/MJE43/vision-guard-go/internal/engine"
	"github.com/MJE43/vision-guard-go/internal/jumpgame"
	"github.com/MJE43/vision-guard-go/internal/medication"
	"github.com/MJE43/vision-guard-go/internal/targetgame"
	"github.com/MJE43/vision-guard-go/internal/trial"
)

var (
	ErrNotFound     = errors.New("session not found")
	ErrLimitReached = errors.New("session limit reached")
	ErrWrongKind    = errors.New("operation not supported by this session kind")
	ErrUnknownKind  = errors.New("unknown session kind")
	ErrShutdown     = errors.New("session manager is shut down")
	ErrNoStore      = errors.New("medication store is not configured")
)

// Kind names the view a session hosts.
type Kind string

const (
	KindAcuity     Kind = trial.AcuityID
	KindColor      Kind = trial.ColorID
	KindAmblyopia  Kind = trial.AmblyopiaID
	KindJump       Kind = "jump"
	KindTarget     Kind = "target"
	KindBreak      Kind = "break"
	KindMedication Kind = "medication"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindAcuity, KindColor, KindAmblyopia, KindJump, KindTarget, KindBreak, KindMedication}

// ParseKind accepts the built-in kinds and any registered test id.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	if _, ok := trial.Lookup(s); ok {
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// IsTrial reports whether the kind is a vision test.
func (k Kind) IsTrial() bool {
	_, ok := trial.Lookup(string(k))
	return ok
}

// Event is pushed to subscribers whenever the view changes.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Kind      Kind      `json:"kind"`
	Data      any       `json:"data,omitempty"`
	Time      time.Time `json:"time"`
}

// Event types.
const (
	EventState       = "state"
	EventMedications = "medications"
	EventDisposed    = "disposed"
)

// subscriberBuffer is the per-subscriber queue. A full queue drops events.
const subscriberBuffer = 32

// Info is a summary of a session. The seed itself is never listed.
type Info struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	SeedHash  string    `json:"seed_hash"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// Session is one live view.
type Session struct {
	id        string
	kind      Kind
	seed      string
	createdAt time.Time

	trial      *trial.Controller
	jump       *jumpgame.Game
	target     *targetgame.Game
	breakTimer *breaktimer.Timer
	medication *medication.Manager

	mu       sync.Mutex
	lastSeen time.Time

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
	closed  bool
	now     func() time.Time
	dropped func()
}

func (s *Session) ID() string { return s.id }
func (s *Session) Kind() Kind { return s.kind }

// Info returns a summary.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:        s.id,
		Kind:      s.kind,
		SeedHash:  engine.HashSeed(s.seed),
		CreatedAt: s.createdAt,
		LastSeen:  s.lastSeen,
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = s.now()
	s.mu.Unlock()
}

// watched reports whether an event stream is open on the session.
func (s *Session) watched() bool {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	return len(s.subs) > 0
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) Trial() (*trial.Controller, error) {
	if s.trial == nil {
		return nil, s.wrongKind("trial")
	}
	return s.trial, nil
}

func (s *Session) Jump() (*jumpgame.Game, error) {
	if s.jump == nil {
		return nil, s.wrongKind("jump")
	}
	return s.jump, nil
}

func (s *Session) Target() (*targetgame.Game, error) {
	if s.target == nil {
		return nil, s.wrongKind("target")
	}
	return s.target, nil
}

func (s *Session) Break() (*breaktimer.Timer, error) {
	if s.breakTimer == nil {
		return nil, s.wrongKind("break")
	}
	return s.breakTimer, nil
}

func (s *Session) Medication() (*medication.Manager, error) {
	if s.medication == nil {
		return nil, s.wrongKind("medication")
	}
	return s.medication, nil
}

func (s *Session) wrongKind(op string) error {
	return fmt.Errorf("%w: %s on %s", ErrWrongKind, op, s.kind)
}

// Snapshot returns the current state of the hosted view.
func (s *Session) Snapshot(ctx context.Context) (any, error) {
	switch {
	case s.trial != nil:
		return s.trial.Snapshot(), nil
	case s.jump != nil:
		return s.jump.Snapshot(), nil
	case s.target != nil:
		return s.target.Snapshot(), nil
	case s.breakTimer != nil:
		return s.breakTimer.Snapshot(), nil
	case s.medication != nil:
		return s.medication.List(ctx)
	}
	return nil, fmt.Errorf("session %s has no view", s.id)
}

// Subscribe returns a channel of change events and a cancel func. The
// channel is closed on cancel or when the session is disposed. Events are
// dropped, never queued without bound, when the subscriber falls behind.
func (s *Session) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
			s.subMu.Unlock()
			// The idle clock restarts when a stream goes away.
			s.touch()
		})
	}
}

// Publish fans an event out to every subscriber without blocking.
func (s *Session) Publish(eventType string, data any) {
	ev := Event{Type: eventType, SessionID: s.id, Kind: s.kind, Data: data, Time: s.now().UTC()}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return
	}
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			if s.dropped != nil {
				s.dropped()
			}
		}
	}
}

// dispose stops the view and closes every subscriber. It is only called by
// the Manager, once per session.
func (s *Session) dispose(ctx context.Context) error {
	var err error
	switch {
	case s.trial != nil:
		s.trial.Dispose()
	case s.jump != nil:
		s.jump.Dispose()
	case s.target != nil:
		s.target.Dispose()
	case s.breakTimer != nil:
		s.breakTimer.Dispose()
	case s.medication != nil:
		err = s.medication.Clear(ctx)
	}

	s.Publish(EventDisposed, nil)
	s.subMu.Lock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subMu.Unlock()
	return err
}
