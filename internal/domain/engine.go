package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RoundSpec describes the strategies and window for a new round.
type RoundSpec struct {
	Decay     Decay
	Escalator Escalator
	Window    time.Duration
	// MinWeight is the floor applied to each decayed vote weight.
	// Nil selects the aggregator's default.
	MinWeight *float64
}

// RoundStatus is a snapshot of a round's window state.
type RoundStatus struct {
	ID        uuid.UUID
	VoteCount int
	Open      bool
	Remaining time.Duration
	Threshold float64
}

type Engine interface {
	Open(ctx context.Context, spec RoundSpec) (uuid.UUID, error)
	Cast(ctx context.Context, roundID uuid.UUID, value string) (bool, error)
	Result(ctx context.Context, roundID uuid.UUID) (Decision, error)
	Tally(ctx context.Context, roundID uuid.UUID) (Tally, error)
	Status(ctx context.Context, roundID uuid.UUID) (RoundStatus, error)
	Close(ctx context.Context, roundID uuid.UUID) error
}
