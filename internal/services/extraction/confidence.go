package extraction

// Signals are observations that raise confidence in a candidate
type Signals struct {
	HasDeadline    bool
	KnownContact   bool
	ExplicitAction bool
}

// AdjustConfidence applies signal boosts to a base score, capped at 100
func AdjustConfidence(base int, s Signals) int {
	score := base
	if s.HasDeadline {
		score += 5
	}
	if s.KnownContact {
		score += 5
	}
	if s.ExplicitAction {
		score += 10
	}
	if score > 100 {
		return 100
	}
	return score
}
