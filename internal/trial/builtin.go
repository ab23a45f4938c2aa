package trial

import (
	"time"

	"github.com/MJE43/vision-guard-go/internal/stimulus"
	"github.com/MJE43/vision-guard-go/internal/verdict"
)

// Built-in test ids.
const (
	AcuityID    = "acuity"
	ColorID     = "color"
	AmblyopiaID = "amblyopia"
)

// Acuity shows 15 random letters at random sizes. P and E appear twice in the
// letter set and come up more often.
var Acuity = Config{
	ID:          AcuityID,
	Name:        "Visual Acuity Test",
	Description: "This test will display 15 random letters in varying sizes. Enter each letter you see.",
	Instructions: []string{
		"Position yourself at a comfortable distance from the screen",
		"Make sure you have good lighting",
		"If you wear glasses, keep them on",
	},
	Stimuli: stimulus.Config{
		Symbols: []string{"E", "F", "P", "T", "O", "Z", "L", "P", "E", "D"},
		Sizes:   []int{80, 72, 64, 56, 48, 40, 32, 28, 24, 20, 18, 16, 14, 12, 10},
	},
	TrialCount:  15,
	Match:       MatchFold,
	MaxInputLen: 1,
	Classifier:  verdict.Acuity,
}

// Color walks the 14 simulated Ishihara plates in order.
var Color = Config{
	ID:          ColorID,
	Name:        "Color Blindness Test",
	Description: "This test uses Ishihara plates to detect color vision deficiencies. You'll see 14 plates with numbers hidden in colored dots.",
	Instructions: []string{
		"View in good lighting conditions",
		"Do not adjust your screen's color settings",
		"Enter the number you see in each plate",
	},
	Stimuli: stimulus.Config{
		Sequence: []string{"12", "8", "6", "29", "57", "5", "3", "15", "74", "2", "6", "97", "45", "5"},
	},
	TrialCount:  14,
	Match:       MatchExact,
	MaxInputLen: 2,
	Classifier:  verdict.Color,
}

// Amblyopia shows letters at random positions and sizes for 60 seconds.
var Amblyopia = Config{
	ID:          AmblyopiaID,
	Name:        "Amblyopia Test",
	Description: "This test checks eye coordination by displaying letters in different positions and sizes. You have 60 seconds to identify as many letters as possible.",
	Instructions: []string{
		"Letters will appear in random positions",
		"Type the letter you see and press Enter",
		"Work as quickly and accurately as possible",
	},
	Stimuli: stimulus.Config{
		Symbols: []string{"A", "B", "C", "D", "E", "F", "G", "H", "K", "M", "N", "P", "R", "T", "V", "X", "Y", "Z"},
		Sizes:   []int{60, 52, 44, 36, 28, 24, 20},
		XRange:  &stimulus.Range{Min: 15, Max: 85},
		YRange:  &stimulus.Range{Min: 20, Max: 80},
	},
	Duration:    60 * time.Second,
	Match:       MatchFold,
	MaxInputLen: 1,
	Classifier:  verdict.Amblyopia,
}
