package result

// ScoreTier is a qualitative label for a page's violation count.
// It is cosmetic: the thresholds are display conventions, not a contract.
type ScoreTier struct {
	Label string
	Score int
}

// Tier maps a violation count to a label using a linear five-point penalty.
func Tier(violations int) ScoreTier {
	score := 100 - violations*5
	switch {
	case score >= 90:
		return ScoreTier{Label: "Excellent", Score: score}
	case score >= 70:
		return ScoreTier{Label: "Good", Score: score}
	case score >= 50:
		return ScoreTier{Label: "Fair", Score: score}
	default:
		return ScoreTier{Label: "Poor", Score: score}
	}
}
