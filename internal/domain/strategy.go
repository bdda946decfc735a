package domain

import "time"

// Decay maps the age of a vote to a weight multiplier.
// Implementations must be pure: the same age always yields the same weight.
type Decay interface {
	Weight(age time.Duration) float64
}

// Escalator maps elapsed window time to the share of total weight a value
// needs to be declared the winner.
type Escalator interface {
	Threshold(elapsed time.Duration) float64
}
