// Package stimulus produces the randomized items shown during a vision test.
package stimulus

import (
	"github.com/MJE43/vision-guard-go/internal/engine"
)

// Position is a point in percent of the display area.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stimulus is one presented item. Size and Position are zero when the test
// does not use them.
type Stimulus struct {
	Symbol   string    `json:"symbol"`
	Size     int       `json:"size,omitempty"`
	Position *Position `json:"position,omitempty"`
}

// Range is a half-open interval [Min, Max).
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Config describes the candidate sets for one test.
//
// Symbols are drawn uniformly with replacement, so the same symbol may come up
// twice in a row. Sequence, when set, is presented in order instead.
type Config struct {
	Symbols  []string `json:"symbols,omitempty"`
	Sequence []string `json:"sequence,omitempty"`
	Sizes    []int    `json:"sizes,omitempty"`
	XRange   *Range   `json:"x_range,omitempty"`
	YRange   *Range   `json:"y_range,omitempty"`
}

// Sequential reports whether stimuli come from the ordered Sequence.
func (c Config) Sequential() bool {
	return len(c.Sequence) > 0
}

// Generator draws stimuli from a Source. It keeps no state between calls.
type Generator struct {
	src engine.Source
}

// NewGenerator creates a generator over src.
func NewGenerator(src engine.Source) *Generator {
	return &Generator{src: src}
}

// Next draws a random stimulus from cfg.
func (g *Generator) Next(cfg Config) Stimulus {
	var s Stimulus
	if len(cfg.Symbols) > 0 {
		s.Symbol = cfg.Symbols[engine.Pick(g.src, len(cfg.Symbols))]
	}
	if len(cfg.Sizes) > 0 {
		s.Size = cfg.Sizes[engine.Pick(g.src, len(cfg.Sizes))]
	}
	if cfg.XRange != nil && cfg.YRange != nil {
		s.Position = &Position{
			X: engine.Between(g.src, cfg.XRange.Min, cfg.XRange.Max),
			Y: engine.Between(g.src, cfg.YRange.Min, cfg.YRange.Max),
		}
	}
	return s
}

// At returns item i of the ordered sequence. Out of range indexes return the
// zero Stimulus.
func (g *Generator) At(cfg Config, i int) Stimulus {
	if i < 0 || i >= len(cfg.Sequence) {
		return Stimulus{}
	}
	return Stimulus{Symbol: cfg.Sequence[i]}
}

// Present picks the stimulus for trial i: the ordered item for sequential
// configs, a random draw otherwise.
func (g *Generator) Present(cfg Config, i int) Stimulus {
	if cfg.Sequential() {
		return g.At(cfg, i)
	}
	return g.Next(cfg)
}
