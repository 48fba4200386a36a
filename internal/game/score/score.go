// Package score maps elapsed time and correctness to round points.
package score

import "math"

// Config holds the scoring constants. Values come from service configuration,
// never from call sites.
type Config struct {
	// MaxPointsPerRound is the ceiling an instant correct answer earns.
	MaxPointsPerRound float64 `env:"TRACKSTAR_SCORE_MAX_POINTS" envDefault:"10"`
	// MinCorrectPoints is the floor any correct answer earns, however slow.
	MinCorrectPoints float64 `env:"TRACKSTAR_SCORE_MIN_CORRECT" envDefault:"1"`
	// IncorrectPenalty is the fixed signed value an incorrect answer earns.
	IncorrectPenalty float64 `env:"TRACKSTAR_SCORE_PENALTY" envDefault:"-2"`
}

// DefaultConfig returns the standard scoring constants.
func DefaultConfig() Config {
	return Config{
		MaxPointsPerRound: 10,
		MinCorrectPoints:  1,
		IncorrectPenalty:  -2,
	}
}

// Points computes the points awarded for an answer.
//
// Incorrect answers earn the fixed penalty regardless of speed. Correct
// answers earn max points minus elapsed seconds, rounded to one decimal,
// floored at MinCorrectPoints so a slow correct answer is never penalized.
func (c Config) Points(elapsedSeconds float64, correct bool) float64 {
	if !correct {
		return c.IncorrectPenalty
	}
	earned := math.Round((c.MaxPointsPerRound-elapsedSeconds)*10) / 10
	return math.Max(c.MinCorrectPoints, earned)
}
