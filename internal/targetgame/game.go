// Package targetgame is the lazy-eye exercise. Shapes appear on a timer and
// the player clicks the ones matching the current target's shape and colour.
package targetgame

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/vision-guard-go/internal/engine"
	"github.com/MJE43/vision-guard-go/internal/schedule"
)

const (
	SpawnPeriod = 2 * time.Second
	MaxObjects  = 8
	HitScore    = 10
	MissPenalty = 5
)

var (
	Shapes  = []string{"●", "■", "▲", "★", "♥"}
	Colours = []string{"red", "blue", "green", "yellow", "purple"}
)

var (
	ErrNotRunning    = errors.New("exercise is not running")
	ErrUnknownObject = errors.New("unknown object")
	ErrDisposed      = errors.New("exercise has been disposed")
)

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhasePaused  Phase = "paused"
)

type Target struct {
	Shape  string `json:"shape"`
	Colour string `json:"colour"`
}

// Object is a clickable shape, positioned in percent of the play area.
type Object struct {
	ID     string  `json:"id"`
	Shape  string  `json:"shape"`
	Colour string  `json:"colour"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

func (o Object) matches(t Target) bool {
	return o.Shape == t.Shape && o.Colour == t.Colour
}

type State struct {
	Phase   Phase    `json:"phase"`
	Score   int      `json:"score"`
	Target  Target   `json:"target"`
	Objects []Object `json:"objects"`
}

type Outcome string

const (
	Hit  Outcome = "hit"
	Miss Outcome = "miss"
)

// ClickResult is the outcome of one click with the notice a view shows.
type ClickResult struct {
	Outcome Outcome `json:"outcome"`
	Notice  string  `json:"notice"`
	State   State   `json:"state"`
}

type Game struct {
	mu       sync.Mutex
	src      engine.Source
	sched    schedule.Scheduler
	newID    func() string
	state    State
	task     schedule.Task
	run      uint64
	disposed bool
	onChange func(State)
}

func New(src engine.Source, sched schedule.Scheduler) *Game {
	return &Game{
		src:   src,
		sched: sched,
		newID: uuid.NewString,
		state: State{Phase: PhaseIdle},
	}
}

// OnChange registers fn to receive the state after every change. fn runs
// with the game locked and must not call back into it.
func (g *Game) OnChange(fn func(State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

// Start resets the score, picks a target and begins spawning objects.
func (g *Game) Start() (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return State{}, ErrDisposed
	}
	g.stopTask()
	g.run++
	g.state = State{Phase: PhaseRunning, Target: g.pickTarget()}
	run := g.run
	g.task = g.sched.Every(SpawnPeriod, func() { g.scheduledSpawn(run) })
	return g.changed(), nil
}

// Pause stops spawning. Objects and score stay as they are.
func (g *Game) Pause() (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return State{}, ErrDisposed
	}
	if g.state.Phase != PhaseRunning {
		return State{}, ErrNotRunning
	}
	g.run++
	g.stopTask()
	g.state.Phase = PhasePaused
	return g.changed(), nil
}

// Click scores a click on the object with the given id.
func (g *Game) Click(id string) (ClickResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return ClickResult{}, ErrDisposed
	}
	if g.state.Phase != PhaseRunning {
		return ClickResult{}, ErrNotRunning
	}
	idx := -1
	for i, o := range g.state.Objects {
		if o.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ClickResult{}, fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}

	if g.state.Objects[idx].matches(g.state.Target) {
		g.state.Score += HitScore
		g.state.Objects = append(g.state.Objects[:idx], g.state.Objects[idx+1:]...)
		g.state.Target = g.pickTarget()
		return ClickResult{Outcome: Hit, Notice: fmt.Sprintf("+%d points!", HitScore), State: g.changed()}, nil
	}
	g.state.Score = max(0, g.state.Score-MissPenalty)
	return ClickResult{Outcome: Miss, Notice: fmt.Sprintf("-%d points", MissPenalty), State: g.changed()}, nil
}

func (g *Game) Snapshot() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshot()
}

// Dispose stops spawning for good.
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

func (g *Game) scheduledSpawn(run uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed || run != g.run || g.state.Phase != PhaseRunning {
		return
	}
	obj := Object{
		ID:     g.newID(),
		Shape:  Shapes[engine.Pick(g.src, len(Shapes))],
		Colour: Colours[engine.Pick(g.src, len(Colours))],
		X:      engine.Between(g.src, 10, 90),
		Y:      engine.Between(g.src, 10, 80),
	}
	objects := append(g.state.Objects, obj)
	if len(objects) > MaxObjects {
		objects = append([]Object(nil), objects[len(objects)-MaxObjects:]...)
	}
	g.state.Objects = objects
	g.changed()
}

func (g *Game) pickTarget() Target {
	return Target{
		Shape:  Shapes[engine.Pick(g.src, len(Shapes))],
		Colour: Colours[engine.Pick(g.src, len(Colours))],
	}
}

func (g *Game) stopTask() {
	if g.task != nil {
		g.task.Stop()
		g.task = nil
	}
}

func (g *Game) snapshot() State {
	s := g.state
	s.Objects = append([]Object(nil), g.state.Objects...)
	return s
}

func (g *Game) changed() State {
	s := g.snapshot()
	if g.onChange != nil {
		g.onChange(s)
	}
	return s
}
