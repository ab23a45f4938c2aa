// Package schedule runs periodic callbacks for views that own a timer.
//
// A Task is cancelled by Stop. Stop never blocks on the callback, so it is
// safe to call from inside the callback itself or while holding a lock the
// callback also takes. A callback already in flight when Stop is called may
// still run once; owners guard against that with their own phase checks.
package schedule

import (
	"sync"
	"time"
)

// Task is a running periodic callback.
type Task interface {
	Stop()
}

// Scheduler starts periodic callbacks.
type Scheduler interface {
	Every(period time.Duration, fn func()) Task
}

// Ticker is the production Scheduler backed by time.Ticker.
type Ticker struct{}

// NewTicker returns a Scheduler driven by the wall clock.
func NewTicker() Ticker { return Ticker{} }

// Every starts a goroutine that calls fn every period until Stop.
func (Ticker) Every(period time.Duration, fn func()) Task {
	t := &tickerTask{done: make(chan struct{})}
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				select {
				case <-t.done:
					return
				default:
				}
				fn()
			}
		}
	}()
	return t
}

type tickerTask struct {
	once sync.Once
	done chan struct{}
}

func (t *tickerTask) Stop() {
	t.once.Do(func() { close(t.done) })
}
