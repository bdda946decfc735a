package decay

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/notur-urus/consensus-repo/internal/domain"
	apperrors "github.com/notur-urus/consensus-repo/internal/errors"
)

// LinearFloor is the lowest weight the Linear strategy produces.
const LinearFloor = 0.1

// Kind names a decay strategy.
type Kind string

const (
	KindExponential Kind = "exp"
	KindLinear      Kind = "linear"
	KindStep        Kind = "step"
)

func (k Kind) String() string { return string(k) }

// Parse resolves a strategy selector. "exponential" is accepted as an alias of "exp".
func Parse(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exp", "exponential":
		return KindExponential, nil
	case "linear":
		return KindLinear, nil
	case "step":
		return KindStep, nil
	default:
		return "", apperrors.ValidationError("unsupported decay strategy", domain.ErrUnknownDecay).
			WithField("decay", s)
	}
}

// Config holds the parameter of every strategy; only the one matching Kind is used.
type Config struct {
	Kind           Kind
	HalfLife       time.Duration
	LinearDuration time.Duration
	StepSize       time.Duration
}

// Build constructs the strategy selected by c.Kind.
func (c Config) Build() (domain.Decay, error) {
	var (
		d   domain.Decay
		err error
	)
	switch c.Kind {
	case KindExponential:
		d, err = NewExponential(c.HalfLife)
	case KindLinear:
		d, err = NewLinear(c.LinearDuration)
	case KindStep:
		d, err = NewStep(c.StepSize)
	default:
		return nil, apperrors.ValidationError("unsupported decay strategy", domain.ErrUnknownDecay).
			WithField("decay", string(c.Kind))
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// New constructs the strategy of the given kind with its single parameter.
func New(kind Kind, param time.Duration) (domain.Decay, error) {
	return Config{Kind: kind, HalfLife: param, LinearDuration: param, StepSize: param}.Build()
}

func checkParam(name string, d time.Duration) error {
	if d <= 0 {
		return apperrors.ValidationError(fmt.Sprintf("%s must be positive", name), domain.ErrInvalidParameter).
			WithField(name, d.String())
	}
	return nil
}

func clampAge(age time.Duration) time.Duration {
	if age < 0 {
		return 0
	}
	return age
}

// Exponential halves a vote's weight every half-life: 0.5^(age/halfLife).
type Exponential struct {
	halfLife time.Duration
}

func NewExponential(halfLife time.Duration) (*Exponential, error) {
	if err := checkParam("half_life", halfLife); err != nil {
		return nil, err
	}
	return &Exponential{halfLife: halfLife}, nil
}

func (e *Exponential) HalfLife() time.Duration { return e.halfLife }

func (e *Exponential) Weight(age time.Duration) float64 {
	ratio := float64(clampAge(age)) / float64(e.halfLife)
	return math.Pow(0.5, ratio)
}

func (e *Exponential) String() string { return fmt.Sprintf("exp(half_life=%s)", e.halfLife) }

// Linear falls from 1 towards zero over duration, but never below LinearFloor.
type Linear struct {
	duration time.Duration
}

func NewLinear(duration time.Duration) (*Linear, error) {
	if err := checkParam("linear_duration", duration); err != nil {
		return nil, err
	}
	return &Linear{duration: duration}, nil
}

func (l *Linear) Duration() time.Duration { return l.duration }

func (l *Linear) Weight(age time.Duration) float64 {
	ratio := float64(clampAge(age)) / float64(l.duration)
	return math.Max(LinearFloor, 1-ratio)
}

func (l *Linear) String() string { return fmt.Sprintf("linear(duration=%s)", l.duration) }

// Step weighs a vote 1/(k+1) once it is k whole steps old.
type Step struct {
	step time.Duration
}

func NewStep(step time.Duration) (*Step, error) {
	if err := checkParam("step", step); err != nil {
		return nil, err
	}
	return &Step{step: step}, nil
}

func (s *Step) StepSize() time.Duration { return s.step }

func (s *Step) Weight(age time.Duration) float64 {
	steps := int64(clampAge(age) / s.step)
	return 1 / float64(steps+1)
}

func (s *Step) String() string { return fmt.Sprintf("step(step=%s)", s.step) }
