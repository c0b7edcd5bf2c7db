package model

// Label maps an outcome category to its signals. Unknown and empty categories
// map to all-zero signals.
func Label(o Outcome) Signals {
	switch o {
	case OutcomeSingle:
		return Signals{IsHit: 1, IsOnBase: 1, TotalBases: 1}
	case OutcomeDouble:
		return Signals{IsHit: 1, IsOnBase: 1, TotalBases: 2}
	case OutcomeTriple:
		return Signals{IsHit: 1, IsOnBase: 1, TotalBases: 3}
	case OutcomeHomeRun:
		return Signals{IsHit: 1, IsOnBase: 1, TotalBases: 4}
	case OutcomeWalk, OutcomeHitByPitch:
		return Signals{IsOnBase: 1}
	default:
		return Signals{}
	}
}

// LabelEvents attaches signals to every event in place.
func LabelEvents(events []Event) {
	for i := range events {
		events[i].Signals = Label(events[i].Outcome)
	}
}
