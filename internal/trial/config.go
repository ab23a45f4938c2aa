package trial

import (
	"errors"
	"fmt"
	"time"

	"github.com/MJE43/vision-guard-go/internal/stimulus"
	"github.com/MJE43/vision-guard-go/internal/verdict"
)

// MatchMode controls how an answer is compared with the shown symbol.
type MatchMode string

const (
	MatchFold  MatchMode = "case_insensitive"
	MatchExact MatchMode = "exact"
)

// Config describes one vision test.
type Config struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Instructions []string           `json:"instructions"`
	Stimuli      stimulus.Config    `json:"stimuli"`
	TrialCount   int                `json:"trial_count,omitempty"`
	Duration     time.Duration      `json:"-"`
	Match        MatchMode          `json:"match"`
	MaxInputLen  int                `json:"max_input_len"`
	Classifier   verdict.Classifier `json:"-"`
}

// DurationSeconds is the time limit in whole seconds, 0 when count-bounded.
func (c Config) DurationSeconds() int {
	return int(c.Duration / time.Second)
}

// TimeBounded reports whether the run ends on a countdown.
func (c Config) TimeBounded() bool {
	return c.Duration > 0
}

// Validate checks that exactly one termination rule is set and that there is
// something to present.
func (c Config) Validate() error {
	if c.ID == "" {
		return errors.New("trial config: id is required")
	}
	switch {
	case c.TrialCount > 0 && c.Duration > 0:
		return fmt.Errorf("trial config %q: trial count and duration are mutually exclusive", c.ID)
	case c.TrialCount <= 0 && c.Duration <= 0:
		return fmt.Errorf("trial config %q: one of trial count or duration is required", c.ID)
	case c.Duration > 0 && c.Duration%time.Second != 0:
		return fmt.Errorf("trial config %q: duration must be whole seconds, got %s", c.ID, c.Duration)
	}
	if c.Stimuli.Sequential() {
		if c.TrialCount > len(c.Stimuli.Sequence) {
			return fmt.Errorf("trial config %q: %d trials but only %d plates", c.ID, c.TrialCount, len(c.Stimuli.Sequence))
		}
	} else if len(c.Stimuli.Symbols) == 0 {
		return fmt.Errorf("trial config %q: no symbols", c.ID)
	}
	if c.Match != MatchFold && c.Match != MatchExact {
		return fmt.Errorf("trial config %q: unknown match mode %q", c.ID, c.Match)
	}
	return nil
}
