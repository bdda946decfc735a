package consensus

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/notur-urus/consensus-repo/internal/domain"
	apperrors "github.com/notur-urus/consensus-repo/internal/errors"
)

// DefaultMinWeight is the floor applied to every decayed vote weight.
const DefaultMinWeight = 0.1

// Option configures a Consensus.
type Option func(*Consensus)

// WithClock sets the time source. Defaults to the real clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Consensus) { c.clock = clock }
}

// WithMinWeight overrides DefaultMinWeight.
func WithMinWeight(w float64) Option {
	return func(c *Consensus) { c.minWeight = w }
}

// WithID sets the round identifier. Defaults to a random UUID.
func WithID(id uuid.UUID) Option {
	return func(c *Consensus) { c.id = id }
}

// Consensus collects votes while its window is open and computes a decayed
// majority on demand. Cast takes the write lock; every query takes the read lock.
type Consensus struct {
	mu        sync.RWMutex
	id        uuid.UUID
	clock     clockwork.Clock
	decay     domain.Decay
	escalator domain.Escalator
	window    *Window
	votes     []domain.Vote
	minWeight float64
}

// New creates a Consensus whose window opens now and lasts for duration.
func New(decay domain.Decay, escalator domain.Escalator, duration time.Duration, opts ...Option) (*Consensus, error) {
	if decay == nil {
		return nil, apperrors.ValidationError("decay strategy is required", domain.ErrInvalidParameter)
	}
	if escalator == nil {
		return nil, apperrors.ValidationError("escalator strategy is required", domain.ErrInvalidParameter)
	}

	c := &Consensus{
		clock:     clockwork.NewRealClock(),
		decay:     decay,
		escalator: escalator,
		minWeight: DefaultMinWeight,
	}
	for _, opt := range opts {
		opt(c)
	}

	if math.IsNaN(c.minWeight) || math.IsInf(c.minWeight, 0) || c.minWeight < 0 {
		return nil, apperrors.ValidationError("min weight must be a non-negative number", domain.ErrInvalidParameter).
			WithField("min_weight", c.minWeight)
	}
	if c.id == uuid.Nil {
		c.id = uuid.New()
	}

	window, err := NewWindow(c.clock, duration)
	if err != nil {
		return nil, err
	}
	c.window = window

	return c, nil
}

func (c *Consensus) ID() uuid.UUID { return c.id }

// MinWeight returns the floor applied to each decayed vote weight.
func (c *Consensus) MinWeight() float64 { return c.minWeight }

// Window exposes the round's window. It is immutable.
func (c *Consensus) Window() *Window { return c.window }

// Cast records a vote for value if the window is still open.
// A cast after the window closes is dropped silently; the return value
// reports whether the vote was recorded.
func (c *Consensus) Cast(value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if !c.window.openAt(now) {
		return false
	}
	c.votes = append(c.votes, domain.Vote{Value: value, CastAt: now})
	return true
}

// Result returns the value whose decayed share meets the current threshold.
// The second value is false when there is no decision.
func (c *Consensus) Result() (string, bool) {
	d := c.Decision()
	return d.Value, d.Reached
}

// Decision is Result with the winning share and threshold attached.
func (c *Consensus) Decision() domain.Decision {
	return c.Tally().Decide()
}

// Tally computes the per-value weight breakdown as of now.
func (c *Consensus) Tally() domain.Tally {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.tallyAt(c.clock.Now())
}

func (c *Consensus) tallyAt(now time.Time) domain.Tally {
	tally := domain.Tally{
		Threshold: c.escalator.Threshold(c.window.elapsedAt(now)),
		VoteCount: len(c.votes),
	}

	index := make(map[string]int)
	for _, v := range c.votes {
		age := now.Sub(v.CastAt)
		if age < 0 {
			age = 0
		}
		w := math.Max(c.decay.Weight(age), c.minWeight)

		i, ok := index[v.Value]
		if !ok {
			i = len(tally.Values)
			index[v.Value] = i
			tally.Values = append(tally.Values, domain.ValueTally{Value: v.Value, FirstCastAt: v.CastAt})
		}
		tally.Values[i].Weight += w
		tally.Values[i].Votes++
	}

	for _, vt := range tally.Values {
		tally.Total += vt.Weight
	}
	if tally.Total == 0 {
		return tally
	}

	for i := range tally.Values {
		tally.Values[i].Share = tally.Values[i].Weight / tally.Total
	}
	sort.SliceStable(tally.Values, func(i, j int) bool {
		a, b := tally.Values[i], tally.Values[j]
		if a.Share != b.Share {
			return a.Share > b.Share
		}
		if !a.FirstCastAt.Equal(b.FirstCastAt) {
			return a.FirstCastAt.Before(b.FirstCastAt)
		}
		return a.Value < b.Value
	})

	return tally
}

func (c *Consensus) VoteCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.votes)
}

// Votes returns a copy of the recorded votes in cast order.
func (c *Consensus) Votes() []domain.Vote {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Vote, len(c.votes))
	copy(out, c.votes)
	return out
}

func (c *Consensus) CurrentThreshold() float64 {
	return c.escalator.Threshold(c.window.Elapsed())
}

func (c *Consensus) IsWindowOpen() bool {
	return c.window.IsOpen()
}

// TimeRemaining returns how long the window stays open; false once it has closed.
func (c *Consensus) TimeRemaining() (time.Duration, bool) {
	return c.window.Remaining()
}

// Status bundles the window accessors into one consistent snapshot.
func (c *Consensus) Status() domain.RoundStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	remaining, _ := c.window.remainingAt(now)
	return domain.RoundStatus{
		ID:        c.id,
		VoteCount: len(c.votes),
		Open:      c.window.openAt(now),
		Remaining: remaining,
		Threshold: c.escalator.Threshold(c.window.elapsedAt(now)),
	}
}
