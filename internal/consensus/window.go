package consensus

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/notur-urus/consensus-repo/internal/domain"
	apperrors "github.com/notur-urus/consensus-repo/internal/errors"
)

// Window is the span during which votes are accepted. start never changes.
type Window struct {
	clock    clockwork.Clock
	start    time.Time
	duration time.Duration
}

// NewWindow opens a window of the given duration starting at clock.Now().
func NewWindow(clock clockwork.Clock, duration time.Duration) (*Window, error) {
	if duration <= 0 {
		return nil, apperrors.ValidationError("window duration must be positive", domain.ErrInvalidParameter).
			WithField("window", duration.String())
	}
	return &Window{clock: clock, start: clock.Now(), duration: duration}, nil
}

func (w *Window) Start() time.Time        { return w.start }
func (w *Window) Duration() time.Duration { return w.duration }
func (w *Window) End() time.Time          { return w.start.Add(w.duration) }

// Elapsed returns the time since start, or zero if the clock reads earlier than start.
func (w *Window) Elapsed() time.Duration {
	return w.elapsedAt(w.clock.Now())
}

func (w *Window) IsOpen() bool {
	return w.openAt(w.clock.Now())
}

// Remaining returns the time left before the window closes.
// The second value is false once the window has closed.
func (w *Window) Remaining() (time.Duration, bool) {
	return w.remainingAt(w.clock.Now())
}

func (w *Window) elapsedAt(now time.Time) time.Duration {
	elapsed := now.Sub(w.start)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func (w *Window) openAt(now time.Time) bool {
	return w.elapsedAt(now) < w.duration
}

func (w *Window) remainingAt(now time.Time) (time.Duration, bool) {
	elapsed := w.elapsedAt(now)
	if elapsed > w.duration {
		return 0, false
	}
	return w.duration - elapsed, true
}
