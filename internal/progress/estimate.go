package progress

import (
	"math"
	"time"
)

// Config tunes the mastery estimate.
type Config struct {
	// Alpha and Beta are the prior pseudo-counts of correct and incorrect
	// answers.
	Alpha float64
	Beta  float64

	// HalfLife is the age at which an answer counts half.
	HalfLife time.Duration

	MasteryThreshold float64
	MinAttempts      int
}

// DefaultConfig returns the standard estimate parameters.
func DefaultConfig() Config {
	return Config{
		Alpha:            1,
		Beta:             1,
		HalfLife:         30 * 24 * time.Hour,
		MasteryThreshold: 0.8,
		MinAttempts:      3,
	}
}

// observation is a single answer contributing to an entry.
type observation struct {
	correct bool
	at      time.Time
}

// weight returns the recency weight of an answer given at t.
func (c Config) weight(t, now time.Time) float64 {
	if c.HalfLife <= 0 {
		return 1
	}
	age := now.Sub(t)
	if age <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/float64(c.HalfLife))
}

// estimate returns the recency-weighted Beta posterior mean.
func (c Config) estimate(obs []observation, now time.Time) float64 {
	var wCorrect, wTotal float64
	for _, o := range obs {
		w := c.weight(o.at, now)
		wTotal += w
		if o.correct {
			wCorrect += w
		}
	}
	denom := wTotal + c.Alpha + c.Beta
	if denom <= 0 {
		return 0
	}
	return (wCorrect + c.Alpha) / denom
}

// state classifies an entry.
func (c Config) state(prob float64, attempts int) MasteryState {
	switch {
	case attempts == 0:
		return StateNew
	case attempts >= c.MinAttempts && prob >= c.MasteryThreshold:
		return StateMastered
	default:
		return StateLearning
	}
}
