package result

import "testing"

func TestTierScore(t *testing.T) {
	tests := []struct {
		violations int
		label      string
		score      int
	}{
		{violations: 0, label: "Excellent", score: 100},
		{violations: 2, label: "Excellent", score: 90},
		{violations: 3, label: "Good", score: 85},
		{violations: 6, label: "Good", score: 70},
		{violations: 7, label: "Fair", score: 65},
		{violations: 10, label: "Fair", score: 50},
		{violations: 11, label: "Poor", score: 45},
		{violations: 40, label: "Poor", score: -100},
	}

	for _, tt := range tests {
		got := Tier(tt.violations)
		if got.Label != tt.label || got.Score != tt.score {
			t.Errorf("Tier(%d) = %+v, want %s/%d", tt.violations, got, tt.label, tt.score)
		}
	}
}
