package scoring

import "testing"

func TestDecide(t *testing.T) {
	tests := []struct {
		probability float64
		threshold   float64
		want        Decision
	}{
		{0.0, 0.05, Accept},
		{0.0499999, 0.05, Accept},
		{0.05, 0.05, Reject}, // tie rejects
		{0.1, 0.05, Reject},
		{1.0, 0.05, Reject},
		{0.5, 1.0, Accept},
		{1.0, 1.0, Reject},
	}

	for _, tt := range tests {
		if got := Decide(tt.probability, tt.threshold); got != tt.want {
			t.Errorf("Decide(%v, %v) = %s, want %s", tt.probability, tt.threshold, got, tt.want)
		}
	}
}

func TestDecide_MonotoneInProbability(t *testing.T) {
	threshold := 0.05
	seenReject := false
	for i := 0; i <= 1000; i++ {
		p := float64(i) / 1000
		d := Decide(p, threshold)
		if seenReject && d == Accept {
			t.Fatalf("decision flipped back to ACCEPT at p=%v", p)
		}
		if d == Reject {
			seenReject = true
		}
		if (d == Reject) != (p >= threshold) {
			t.Fatalf("p=%v: got %s", p, d)
		}
	}
}
