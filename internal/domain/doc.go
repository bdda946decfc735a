// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (vote.go, strategy.go, errors.go, engine.go)
// with shared types and cross-cutting interfaces. Beyond the contracts it holds only
// pure value logic such as Tally.Decide, which applies the threshold to a computed tally.
// Prevents circular imports by keeping interfaces on the consumer side.
package domain
