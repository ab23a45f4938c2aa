package verdict

// Acuity grades the letter chart by percentage correct.
var Acuity = Classifier{
	Label: Table{
		Basis: Percent,
		Rules: []Rule{
			{Min: atLeast(90), Label: "Excellent", Message: "Your vision is excellent!", Tone: ToneSuccess},
			{Min: atLeast(70), Label: "Good", Message: "Your vision is good, but consider a checkup.", Tone: TonePrimary},
			{Min: atLeast(50), Label: "Fair", Message: "You may need corrective lenses. Please consult an eye doctor.", Tone: ToneWarning},
		},
		Fallback: Rule{Label: "Poor", Message: "Please consult an eye doctor soon.", Tone: ToneDestructive},
	},
}

// colorMessage is keyed on the raw count, independent of the label.
var colorMessage = Table{
	Basis: Count,
	Rules: []Rule{
		{Min: atLeast(12), Message: "Your color vision appears normal."},
	},
	Fallback: Rule{Message: "You may have some form of color vision deficiency. Please consult an eye specialist for a comprehensive evaluation."},
}

// Color grades the plate test. Label by percentage, message by count.
var Color = Classifier{
	Label: Table{
		Basis: Percent,
		Rules: []Rule{
			{Min: atLeast(90), Label: "Normal Color Vision", Tone: ToneSuccess},
			{Min: atLeast(70), Label: "Possible Color Deficiency", Tone: ToneWarning},
		},
		Fallback: Rule{Label: "Likely Color Blindness", Tone: ToneDestructive},
	},
	Message: &colorMessage,
}

// Amblyopia grades the timed exercise by number of correct answers.
var Amblyopia = Classifier{
	Label: Table{
		Basis: Count,
		Rules: []Rule{
			{Min: atLeast(40), Label: "Excellent", Message: "Your eye coordination is excellent!", Tone: ToneSuccess},
			{Min: atLeast(25), Label: "Good", Message: "Your eye coordination is good.", Tone: TonePrimary},
			{Min: atLeast(15), Label: "Fair", Message: "Consider consulting an eye specialist.", Tone: ToneWarning},
		},
		Fallback: Rule{Label: "Needs Attention", Message: "Please consult an eye specialist.", Tone: ToneDestructive},
	},
}
