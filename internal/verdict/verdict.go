// Package verdict maps a test score onto a qualitative result.
//
// Every test variant is described by the same Table shape: ordered rules,
// checked best to worst, each with an inclusive lower bound. The first rule
// whose bound is met wins; the Fallback applies when none is.
package verdict

import (
	"github.com/shopspring/decimal"
)

// Basis selects the score a Table compares against.
type Basis string

const (
	// Percent compares correct/total*100.
	Percent Basis = "percent"
	// Count compares the raw correct count.
	Count Basis = "count"
)

// Tone is the colour hint a view renders the verdict with.
type Tone string

const (
	ToneSuccess     Tone = "success"
	TonePrimary     Tone = "primary"
	ToneWarning     Tone = "warning"
	ToneDestructive Tone = "destructive"
)

// Rule is one row of a verdict table.
type Rule struct {
	Min     decimal.Decimal
	Label   string
	Message string
	Tone    Tone
}

// Table is an ordered verdict table.
type Table struct {
	Basis    Basis
	Rules    []Rule
	Fallback Rule
}

// Match returns the first rule whose bound is met by the score.
func (t Table) Match(correct, total int) Rule {
	score := t.score(correct, total)
	for _, r := range t.Rules {
		if score.GreaterThanOrEqual(r.Min) {
			return r
		}
	}
	return t.Fallback
}

func (t Table) score(correct, total int) decimal.Decimal {
	if t.Basis == Count {
		return decimal.NewFromInt(int64(correct))
	}
	return percent(correct, total)
}

func percent(correct, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(correct)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total)))
}

// Verdict is the classified outcome of a completed run.
type Verdict struct {
	Label   string          `json:"label"`
	Message string          `json:"message"`
	Tone    Tone            `json:"tone"`
	Correct int             `json:"correct"`
	Total   int             `json:"total"`
	Percent decimal.Decimal `json:"percent"`
}

// Classifier produces verdicts. The label always comes from Label; when
// Message is set, the message text is taken from that table instead.
type Classifier struct {
	Label   Table
	Message *Table
}

// Classify returns exactly one verdict for (correct, total).
func (c Classifier) Classify(correct, total int) Verdict {
	r := c.Label.Match(correct, total)
	v := Verdict{
		Label:   r.Label,
		Message: r.Message,
		Tone:    r.Tone,
		Correct: correct,
		Total:   total,
		Percent: percent(correct, total).Round(1),
	}
	if c.Message != nil {
		v.Message = c.Message.Match(correct, total).Message
	}
	return v
}

func atLeast(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
