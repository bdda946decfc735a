// Package escalator implements strategies that set the share of total weight a
// value needs to win, as a function of elapsed window time.
package escalator

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/notur-urus/consensus-repo/internal/domain"
	apperrors "github.com/notur-urus/consensus-repo/internal/errors"
)

// Kind names an escalator strategy.
type Kind string

const (
	KindLinear   Kind = "linear"
	KindConstant Kind = "constant"
)

func (k Kind) String() string { return string(k) }

// Parse resolves an escalator selector.
func Parse(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return KindLinear, nil
	case "constant":
		return KindConstant, nil
	default:
		return "", apperrors.ValidationError("unsupported escalator strategy", domain.ErrUnknownEscalator).
			WithField("escalator", s)
	}
}

// Config holds the parameters of every strategy. Constant uses Base as its
// fixed threshold and ignores the rest.
type Config struct {
	Kind  Kind
	Base  float64
	Slope float64
	Cap   float64
	Floor float64
}

// Build constructs the strategy selected by c.Kind.
func (c Config) Build() (domain.Escalator, error) {
	var (
		e   domain.Escalator
		err error
	)
	switch c.Kind {
	case KindLinear:
		e, err = NewLinear(c.Base, c.Slope, c.Cap, c.Floor)
	case KindConstant:
		e, err = NewConstant(c.Base)
	default:
		_, err = Parse(string(c.Kind))
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Linear raises (or lowers, with a negative slope) the threshold by slope per
// elapsed second starting at base, clamped to [floor, cap].
type Linear struct {
	base  float64
	slope float64
	cap   float64
	floor float64
}

// NewLinear validates and builds a Linear escalator.
// cap and floor must lie in [0, 1] with floor <= cap.
func NewLinear(base, slope, cap, floor float64) (*Linear, error) {
	for name, v := range map[string]float64{"base": base, "slope": slope, "cap": cap, "floor": floor} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, invalid(fmt.Sprintf("escalator %s must be finite", name)).WithField(name, v)
		}
	}
	if floor < 0 {
		return nil, invalid("escalator floor must not be negative").WithField("floor", floor)
	}
	if cap > 1 {
		return nil, invalid("escalator cap must not exceed 1").WithField("cap", cap)
	}
	if floor > cap {
		return nil, invalid("escalator floor must not exceed cap").
			WithField("floor", floor).
			WithField("cap", cap)
	}

	return &Linear{base: base, slope: slope, cap: cap, floor: floor}, nil
}

func (l *Linear) Threshold(elapsed time.Duration) float64 {
	if elapsed < 0 {
		elapsed = 0
	}
	t := l.base + l.slope*elapsed.Seconds()
	return math.Min(l.cap, math.Max(l.floor, t))
}

func (l *Linear) String() string {
	return fmt.Sprintf("linear(base=%g, slope=%g, cap=%g, floor=%g)", l.base, l.slope, l.cap, l.floor)
}

// Constant requires the same share for the whole window.
type Constant struct {
	threshold float64
}

func NewConstant(threshold float64) (*Constant, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, invalid("constant threshold must be within [0, 1]").WithField("threshold", threshold)
	}
	return &Constant{threshold: threshold}, nil
}

func (c *Constant) Threshold(time.Duration) float64 { return c.threshold }

func (c *Constant) String() string { return fmt.Sprintf("constant(%g)", c.threshold) }

func invalid(msg string) *apperrors.Error {
	return apperrors.ValidationError(msg, domain.ErrInvalidParameter)
}
