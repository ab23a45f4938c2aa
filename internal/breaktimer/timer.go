// Package breaktimer implements the 20-20-20 reminder: every 20 minutes of
// work, look at something 20 feet away for 20 seconds.
package breaktimer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MJE43/vision-guard-go/internal/schedule"
)

const (
	WorkPeriod  = 20 * time.Minute
	BreakPeriod = 20 * time.Second
)

const (
	NoticeStarted       = "20-20-20 timer started!"
	NoticePaused        = "Timer paused"
	NoticeBreak         = "Time for a 20-second break! Look at something 20 feet away."
	NoticeBreakComplete = "Break complete! Back to work."
)

var ErrDisposed = errors.New("timer has been disposed")

// State is a copy of the timer. Notice is set only on the change that
// produced it.
type State struct {
	Active        bool   `json:"active"`
	OnBreak       bool   `json:"on_break"`
	TimeLeft      int    `json:"time_left"`
	BreakLeft     int    `json:"break_left"`
	TimeLeftText  string `json:"time_left_text"`
	BreakLeftText string `json:"break_left_text"`
	Notice        string `json:"notice,omitempty"`
}

var (
	workSeconds  = int(WorkPeriod / time.Second)
	breakSeconds = int(BreakPeriod / time.Second)
)

type Timer struct {
	mu        sync.Mutex
	sched     schedule.Scheduler
	task      schedule.Task
	run       uint64
	disposed  bool
	active    bool
	onBreak   bool
	timeLeft  int
	breakLeft int
	onChange  func(State)
}

func New(sched schedule.Scheduler) *Timer {
	return &Timer{sched: sched, timeLeft: workSeconds, breakLeft: breakSeconds}
}

// OnChange registers fn to receive the state after every change. fn runs
// with the timer locked and must not call back into it.
func (t *Timer) OnChange(fn func(State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Toggle starts a paused timer or pauses a running one. Counters carry over.
func (t *Timer) Toggle() (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return State{}, ErrDisposed
	}
	if t.active {
		t.pause()
		return t.changed(NoticePaused), nil
	}
	t.active = true
	t.run++
	run := t.run
	t.task = t.sched.Every(time.Second, func() { t.tick(run) })
	return t.changed(NoticeStarted), nil
}

// Reset pauses and restores both counters.
func (t *Timer) Reset() (State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return State{}, ErrDisposed
	}
	t.pause()
	t.onBreak = false
	t.timeLeft = workSeconds
	t.breakLeft = breakSeconds
	return t.changed(""), nil
}

func (t *Timer) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot("")
}

func (t *Timer) Dispose() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return
	}
	t.disposed = true
	t.pause()
}

func (t *Timer) pause() {
	t.active = false
	t.run++
	if t.task != nil {
		t.task.Stop()
		t.task = nil
	}
}

func (t *Timer) tick(run uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed || run != t.run || !t.active {
		return
	}
	var notice string
	if t.onBreak {
		if t.breakLeft <= 1 {
			t.onBreak = false
			t.timeLeft = workSeconds
			t.breakLeft = breakSeconds
			notice = NoticeBreakComplete
		} else {
			t.breakLeft--
		}
	} else {
		if t.timeLeft <= 1 {
			t.onBreak = true
			t.timeLeft = workSeconds
			notice = NoticeBreak
		} else {
			t.timeLeft--
		}
	}
	t.changed(notice)
}

func (t *Timer) snapshot(notice string) State {
	return State{
		Active:        t.active,
		OnBreak:       t.onBreak,
		TimeLeft:      t.timeLeft,
		BreakLeft:     t.breakLeft,
		TimeLeftText:  Format(t.timeLeft),
		BreakLeftText: Format(t.breakLeft),
		Notice:        notice,
	}
}

func (t *Timer) changed(notice string) State {
	s := t.snapshot(notice)
	if t.onChange != nil {
		t.onChange(s)
	}
	return s
}

// Format renders seconds as MM:SS. Minutes are not capped at 59.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
