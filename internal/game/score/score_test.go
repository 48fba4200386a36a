package score

import "testing"

func TestPointsCorrectRewardsSpeed(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		elapsed float64
		want    float64
	}{
		{0, 10},
		{0.25, 9.8},
		{1.5, 8.5},
		{5, 5},
		{8.96, 1},
		{9.5, 1},    // floor kicks in
		{20, 1},     // elapsed beyond the ceiling still earns the floor
		{10, 1},     // exactly at the ceiling
		{4.449, 5.6},
	}
	for _, tt := range tests {
		if got := cfg.Points(tt.elapsed, true); got != tt.want {
			t.Fatalf("points(%f, true) = %f, want %f", tt.elapsed, got, tt.want)
		}
	}
}

func TestPointsCorrectNeverBelowFloor(t *testing.T) {
	cfg := DefaultConfig()
	for elapsed := 0.0; elapsed <= cfg.MaxPointsPerRound; elapsed += 0.1 {
		if got := cfg.Points(elapsed, true); got < cfg.MinCorrectPoints {
			t.Fatalf("points(%f, true) = %f below floor %f", elapsed, got, cfg.MinCorrectPoints)
		}
	}
}

func TestPointsCorrectNonIncreasing(t *testing.T) {
	cfg := DefaultConfig()
	prev := cfg.Points(0, true)
	for elapsed := 0.1; elapsed <= cfg.MaxPointsPerRound; elapsed += 0.1 {
		got := cfg.Points(elapsed, true)
		if got > prev {
			t.Fatalf("points increased from %f to %f at elapsed %f", prev, got, elapsed)
		}
		prev = got
	}
}

func TestPointsIncorrectIsFixedPenalty(t *testing.T) {
	cfg := DefaultConfig()
	for _, elapsed := range []float64{0, 0.5, 3, 9.9, 100} {
		if got := cfg.Points(elapsed, false); got != cfg.IncorrectPenalty {
			t.Fatalf("points(%f, false) = %f, want %f", elapsed, got, cfg.IncorrectPenalty)
		}
	}
}

func TestPointsCustomConfig(t *testing.T) {
	cfg := Config{MaxPointsPerRound: 5, MinCorrectPoints: 0.5, IncorrectPenalty: -1}

	if got := cfg.Points(1, true); got != 4 {
		t.Fatalf("points(1, true) = %f, want 4", got)
	}
	if got := cfg.Points(9, true); got != 0.5 {
		t.Fatalf("points(9, true) = %f, want 0.5", got)
	}
	if got := cfg.Points(1, false); got != -1 {
		t.Fatalf("points(1, false) = %f, want -1", got)
	}
}
