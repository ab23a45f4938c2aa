// Package trial runs the vision tests: present a stimulus, take an answer,
// score it, and finish either after a fixed number of trials or when a
// countdown runs out.
package trial

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MJE43/vision-guard-go/internal/engine"
	"github.com/MJE43/vision-guard-go/internal/schedule"
	"github.com/MJE43/vision-guard-go/internal/stimulus"
	"github.com/MJE43/vision-guard-go/internal/verdict"
)

var (
	ErrEmptyAnswer = errors.New("answer is empty")
	ErrNotRunning  = errors.New("test is not running")
	ErrNotComplete = errors.New("test is not complete")
	ErrDisposed    = errors.New("test has been disposed")
)

// Phase is the lifecycle position of a run.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseRunning    Phase = "running"
	PhaseComplete   Phase = "complete"
)

// State is the live state of a run.
type State struct {
	Index            int               `json:"index"`
	Current          stimulus.Stimulus `json:"current"`
	CorrectCount     int               `json:"correct_count"`
	Presented        int               `json:"presented"`
	RemainingSeconds *int              `json:"remaining_seconds,omitempty"`
	Phase            Phase             `json:"phase"`
}

// Snapshot is a copy of the run safe to hand to other goroutines.
type Snapshot struct {
	TestID          string           `json:"test_id"`
	Name            string           `json:"name"`
	TrialCount      int              `json:"trial_count,omitempty"`
	DurationSeconds int              `json:"duration_seconds,omitempty"`
	State           State            `json:"state"`
	Verdict         *verdict.Verdict `json:"verdict,omitempty"`
}

// Result reports what a submitted answer did.
type Result struct {
	Correct  bool     `json:"correct"`
	Advanced bool     `json:"advanced"`
	Snapshot Snapshot `json:"snapshot"`
}

// Controller owns one run of one test. All methods are safe for concurrent
// use; the countdown callback takes the same lock.
type Controller struct {
	mu       sync.Mutex
	cfg      Config
	gen      *stimulus.Generator
	sched    schedule.Scheduler
	state    State
	task     schedule.Task
	run      uint64
	disposed bool
	onChange func(Snapshot)
}

// NewController prepares a run of cfg. Nothing is presented until Start.
func NewController(cfg Config, src engine.Source, sched schedule.Scheduler) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		cfg:   cfg,
		gen:   stimulus.NewGenerator(src),
		sched: sched,
		state: State{Phase: PhaseNotStarted},
	}, nil
}

// OnChange registers fn to receive a snapshot after every state change. fn
// runs with the controller locked and must not call back into it.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Config returns the test being run.
func (c *Controller) Config() Config {
	return c.cfg
}

// Start begins a fresh run, discarding any previous one.
func (c *Controller) Start() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return Snapshot{}, ErrDisposed
	}

	c.stopTask()
	c.run++
	c.state = State{
		Current:   c.gen.Present(c.cfg.Stimuli, 0),
		Presented: 1,
		Phase:     PhaseRunning,
	}
	if c.cfg.TimeBounded() {
		secs := c.cfg.DurationSeconds()
		c.state.RemainingSeconds = &secs
		run := c.run
		c.task = c.sched.Every(time.Second, func() { c.tick(run) })
	}
	return c.changed(), nil
}

// Submit scores one answer.
func (c *Controller) Submit(answer string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return Result{}, ErrDisposed
	}
	if c.state.Phase != PhaseRunning {
		return Result{}, ErrNotRunning
	}
	// A whitespace-only answer counts as empty and does not use up the trial.
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Result{}, ErrEmptyAnswer
	}

	correct := c.matches(answer)
	if c.cfg.TimeBounded() {
		if !correct {
			return Result{Snapshot: c.snapshot()}, nil
		}
		c.state.CorrectCount++
		c.present()
		return Result{Correct: true, Advanced: true, Snapshot: c.changed()}, nil
	}

	if correct {
		c.state.CorrectCount++
	}
	if c.state.Index+1 >= c.cfg.TrialCount {
		c.complete()
	} else {
		c.present()
	}
	return Result{Correct: correct, Advanced: true, Snapshot: c.changed()}, nil
}

// Verdict classifies a completed run.
func (c *Controller) Verdict() (verdict.Verdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseComplete {
		return verdict.Verdict{}, ErrNotComplete
	}
	return c.verdict(), nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Dispose cancels the countdown. Later Start and Submit calls fail with
// ErrDisposed. Dispose is idempotent.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	c.run++
	c.stopTask()
}

func (c *Controller) tick(run uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || run != c.run || c.state.Phase != PhaseRunning {
		return
	}
	left := *c.state.RemainingSeconds - 1
	if left <= 0 {
		left = 0
		c.complete()
	}
	*c.state.RemainingSeconds = left
	c.changed()
}

func (c *Controller) matches(answer string) bool {
	want := c.state.Current.Symbol
	if c.cfg.Match == MatchFold {
		return strings.EqualFold(answer, want)
	}
	return answer == want
}

func (c *Controller) present() {
	c.state.Index++
	c.state.Presented++
	c.state.Current = c.gen.Present(c.cfg.Stimuli, c.state.Index)
}

func (c *Controller) complete() {
	c.state.Phase = PhaseComplete
	c.stopTask()
}

func (c *Controller) stopTask() {
	if c.task != nil {
		c.task.Stop()
		c.task = nil
	}
}

// total is the denominator of the verdict: the configured trial count, or
// the stimuli presented when the run is timed.
func (c *Controller) total() int {
	if c.cfg.TimeBounded() {
		return c.state.Presented
	}
	return c.cfg.TrialCount
}

func (c *Controller) verdict() verdict.Verdict {
	return c.cfg.Classifier.Classify(c.state.CorrectCount, c.total())
}

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{
		TestID:          c.cfg.ID,
		Name:            c.cfg.Name,
		TrialCount:      c.cfg.TrialCount,
		DurationSeconds: c.cfg.DurationSeconds(),
		State:           c.state,
	}
	if c.state.RemainingSeconds != nil {
		left := *c.state.RemainingSeconds
		s.State.RemainingSeconds = &left
	}
	if c.state.Current.Position != nil {
		pos := *c.state.Current.Position
		s.State.Current.Position = &pos
	}
	if c.state.Phase == PhaseComplete {
		v := c.verdict()
		s.Verdict = &v
	}
	return s
}

func (c *Controller) changed() Snapshot {
	s := c.snapshot()
	if c.onChange != nil {
		c.onChange(s)
	}
	return s
}
