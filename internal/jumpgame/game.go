// Package jumpgame is the platform-jumping exercise: a fixed-period tick
// applies gravity, lands the player on platforms and scrolls the field
// while the player climbs.
//
// Coordinates are percent of the play area, y growing downward.
package jumpgame

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/MJE43/vision-guard-go/internal/engine"
	"github.com/MJE43/vision-guard-go/internal/schedule"
)

const (
	TickPeriod      = 50 * time.Millisecond
	Gravity         = 0.5
	JumpImpulse     = -10.0
	LandTolerance   = 2.0
	ScrollThreshold = 40.0
	ScrollStep      = 2.0
	SpawnY          = -10.0
	SpawnBelow      = 10.0
	PlatformWidth   = 15.0
	MaxPlatforms    = 10
	MoveStep        = 5.0
	JumpScore       = 10

	initialPlatforms = 8
	platformSpacing  = 12.0
	platformTop      = 10.0
	startX           = 50.0
	startY           = 80.0
	floor            = 100.0
)

var (
	ErrNotRunning       = errors.New("game is not running")
	ErrDisposed         = errors.New("game has been disposed")
	ErrInvalidDirection = errors.New("direction must be left or right")
)

// Phase is the lifecycle position of a game.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhaseOver    Phase = "over"
)

// Direction is a horizontal move.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
)

// ParseDirection validates a direction string.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case Left, Right:
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

type Player struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Platform struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Width float64 `json:"width"`
}

// State is a copy of the game state. Platforms are ordered newest first.
type State struct {
	Player    Player     `json:"player"`
	VelocityY float64    `json:"velocity_y"`
	Platforms []Platform `json:"platforms"`
	Score     int        `json:"score"`
	Phase     Phase      `json:"phase"`
	Ticks     int        `json:"ticks"`
}

// Game owns one run of the jump game.
type Game struct {
	mu       sync.Mutex
	src      engine.Source
	sched    schedule.Scheduler
	state    State
	task     schedule.Task
	run      uint64
	disposed bool
	onChange func(State)
}

// New creates an idle game.
func New(src engine.Source, sched schedule.Scheduler) *Game {
	return &Game{
		src:   src,
		sched: sched,
		state: State{Player: Player{X: startX, Y: startY}, Phase: PhaseIdle},
	}
}

// OnChange registers fn to receive the state after every change. fn runs
// with the game locked and must not call back into it.
func (g *Game) OnChange(fn func(State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

// Start lays out a fresh field and starts the tick loop.
func (g *Game) Start() (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return State{}, ErrDisposed
	}

	g.stopTask()
	g.run++
	platforms := make([]Platform, 0, MaxPlatforms)
	for i := 0; i < initialPlatforms; i++ {
		platforms = append(platforms, g.spawn(float64(i)*platformSpacing+platformTop))
	}
	g.state = State{
		Player:    Player{X: startX, Y: startY},
		Platforms: platforms,
		Phase:     PhaseRunning,
	}
	run := g.run
	g.task = g.sched.Every(TickPeriod, func() { g.scheduledTick(run) })
	return g.changed(), nil
}

// Move shifts the player horizontally. It is a no-op unless the game is
// running.
func (g *Game) Move(dir Direction) (State, error) {
	if dir != Left && dir != Right {
		return State{}, fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return State{}, ErrDisposed
	}
	if g.state.Phase != PhaseRunning {
		return g.snapshot(), nil
	}
	x := g.state.Player.X + MoveStep
	if dir == Left {
		x = g.state.Player.X - MoveStep
	}
	g.state.Player.X = math.Max(0, math.Min(floor, x))
	return g.changed(), nil
}

// Tick advances the game by one step outside the scheduled loop.
func (g *Game) Tick() (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return State{}, ErrDisposed
	}
	if g.state.Phase != PhaseRunning {
		return State{}, ErrNotRunning
	}
	g.step()
	return g.changed(), nil
}

// Snapshot returns a copy of the current state.
func (g *Game) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

// Dispose stops the loop for good.
func (g *Game) Dispose() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return
	}
	g.disposed = true
	g.run++
	g.stopTask()
}

func (g *Game) scheduledTick(run uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed || run != g.run || g.state.Phase != PhaseRunning {
		return
	}
	g.step()
	g.changed()
}

func (g *Game) step() {
	s := &g.state
	s.Ticks++

	v := s.VelocityY + Gravity
	newY := s.Player.Y + v

	// every qualifying platform pays out, not just the first
	descending := v > 0
	for _, p := range s.Platforms {
		if math.Abs(s.Player.X-p.X) < p.Width/2 && math.Abs(newY-p.Y) < LandTolerance && descending {
			v = JumpImpulse
			s.Score += JumpScore
		}
	}
	s.VelocityY = v

	if newY > floor {
		s.Player.Y = floor
		s.Phase = PhaseOver
		g.stopTask()
		return
	}
	s.Player.Y = newY

	if s.Player.Y < ScrollThreshold && s.VelocityY < 0 {
		g.scroll()
	}
}

func (g *Game) scroll() {
	scrolled := make([]Platform, 0, len(g.state.Platforms)+1)
	for _, p := range g.state.Platforms {
		p.Y += ScrollStep
		scrolled = append(scrolled, p)
	}
	if len(scrolled) == 0 || scrolled[0].Y > SpawnBelow {
		scrolled = append([]Platform{g.spawn(SpawnY)}, scrolled...)
	}

	kept := scrolled[:0]
	for _, p := range scrolled {
		if p.Y < floor {
			kept = append(kept, p)
		}
	}
	if len(kept) > MaxPlatforms {
		kept = kept[:MaxPlatforms]
	}
	g.state.Platforms = kept
}

func (g *Game) spawn(y float64) Platform {
	return Platform{X: engine.Between(g.src, 10, 90), Y: y, Width: PlatformWidth}
}

func (g *Game) stopTask() {
	if g.task != nil {
		g.task.Stop()
		g.task = nil
	}
}

func (g *Game) snapshot() State {
	s := g.state
	s.Platforms = append([]Platform(nil), g.state.Platforms...)
	return s
}

func (g *Game) changed() State {
	s := g.snapshot()
	if g.onChange != nil {
		g.onChange(s)
	}
	return s
}
