package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/notur-urus/consensus-repo/internal/consensus"
	"github.com/notur-urus/consensus-repo/internal/domain"
	apperrors "github.com/notur-urus/consensus-repo/internal/errors"
	"github.com/notur-urus/consensus-repo/internal/metrics"
	"github.com/notur-urus/consensus-repo/internal/platform/correlation"
)

const (
	defaultRetention     = 5 * time.Minute
	defaultEvictInterval = 10 * time.Second
	commandBuffer        = 512
)

var _ domain.Engine = (*Engine)(nil)

// --- Command types ---

type engineCmd interface{ engineCmd() }

type cmdRegister struct {
	round   *consensus.Consensus
	replyCh chan struct{}
}

func (cmdRegister) engineCmd() {}

type cmdCast struct {
	roundID uuid.UUID
	value   string
	replyCh chan castReply
}

func (cmdCast) engineCmd() {}

type castReply struct {
	accepted bool
	found    bool
}

type cmdResult struct {
	roundID uuid.UUID
	replyCh chan resultReply
}

func (cmdResult) engineCmd() {}

type resultReply struct {
	tally domain.Tally
	found bool
}

type cmdStatus struct {
	roundID uuid.UUID
	replyCh chan statusReply
}

func (cmdStatus) engineCmd() {}

type statusReply struct {
	status domain.RoundStatus
	found  bool
}

type cmdClose struct {
	roundID uuid.UUID
	replyCh chan bool
}

func (cmdClose) engineCmd() {}

type cmdCount struct {
	replyCh chan int
}

func (cmdCount) engineCmd() {}

type cmdEvict struct {
	replyCh chan int // nil when sent by the ticker
}

func (cmdEvict) engineCmd() {}

type cmdStop struct {
	doneCh chan struct{}
}

func (cmdStop) engineCmd() {}

// --- Engine ---

// Option configures an Engine.
type Option func(*Engine)

// WithRetention sets how long a closed round stays queryable before eviction.
func WithRetention(d time.Duration) Option {
	return func(e *Engine) { e.retention = d }
}

// WithEvictInterval sets how often the ticker sweeps for closed rounds.
func WithEvictInterval(d time.Duration) Option {
	return func(e *Engine) { e.evictInterval = d }
}

type Engine struct {
	cmdCh         chan engineCmd
	clock         clockwork.Clock
	rounds        map[uuid.UUID]*consensus.Consensus
	retention     time.Duration
	evictInterval time.Duration
	voteMetrics   *metrics.VoteMetrics
	roundMetrics  *metrics.RoundMetrics
	stopCh        chan struct{}
	stopOnce      sync.Once
	started       atomic.Bool
}

func New(clock clockwork.Clock, voteMetrics *metrics.VoteMetrics, roundMetrics *metrics.RoundMetrics, opts ...Option) *Engine {
	e := &Engine{
		cmdCh:         make(chan engineCmd, commandBuffer),
		clock:         clock,
		rounds:        make(map[uuid.UUID]*consensus.Consensus),
		retention:     defaultRetention,
		evictInterval: defaultEvictInterval,
		voteMetrics:   voteMetrics,
		roundMetrics:  roundMetrics,
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins the engine's background goroutines (ticker and actor).
// It is a no-op once the engine has been started or stopped.
func (e *Engine) Start() {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	go e.tickerLoop()
	go e.run()
}

func (e *Engine) run() {
	for cmd := range e.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			e.rounds[c.round.ID()] = c.round
			e.roundMetrics.Opened.Inc()
			e.roundMetrics.Active.Set(float64(len(e.rounds)))
			close(c.replyCh)

		case cmdCast:
			round, ok := e.rounds[c.roundID]
			if !ok {
				c.replyCh <- castReply{}
				break
			}
			accepted := round.Cast(c.value)
			e.voteMetrics.ObserveCast(accepted)
			c.replyCh <- castReply{accepted: accepted, found: true}

		case cmdResult:
			round, ok := e.rounds[c.roundID]
			if !ok {
				c.replyCh <- resultReply{}
				break
			}
			started := time.Now()
			tally := round.Tally()
			d := tally.Decide()
			e.voteMetrics.ObserveResult(d.Reached, d.Threshold, time.Since(started).Seconds())
			c.replyCh <- resultReply{tally: tally, found: true}

		case cmdStatus:
			round, ok := e.rounds[c.roundID]
			if !ok {
				c.replyCh <- statusReply{}
				break
			}
			c.replyCh <- statusReply{status: round.Status(), found: true}

		case cmdClose:
			_, ok := e.rounds[c.roundID]
			delete(e.rounds, c.roundID)
			e.roundMetrics.Active.Set(float64(len(e.rounds)))
			c.replyCh <- ok

		case cmdCount:
			c.replyCh <- len(e.rounds)

		case cmdEvict:
			evicted := e.evictClosed()
			if c.replyCh != nil {
				c.replyCh <- evicted
			}

		case cmdStop:
			close(e.stopCh)
			close(c.doneCh)
			return
		}
	}
}

func (e *Engine) evictClosed() int {
	evicted := 0
	for id, round := range e.rounds {
		if round.IsWindowOpen() {
			continue
		}
		if e.clock.Since(round.Window().End()) > e.retention {
			delete(e.rounds, id)
			evicted++
		}
	}

	if evicted > 0 {
		slog.Debug("Evicted closed rounds", "count", evicted, "remaining", len(e.rounds))
		e.roundMetrics.Evicted.Add(float64(evicted))
	}
	e.roundMetrics.Active.Set(float64(len(e.rounds)))
	return evicted
}

func (e *Engine) tickerLoop() {
	ticker := e.clock.NewTicker(e.evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			select {
			case e.cmdCh <- cmdEvict{}:
			case <-e.stopCh:
				return
			}
		case <-e.stopCh:
			return
		}
	}
}

// request sends cmd to the actor and waits for its reply on replyCh.
func request[T any](ctx context.Context, e *Engine, cmd engineCmd, replyCh chan T) (T, error) {
	var zero T
	select {
	case e.cmdCh <- cmd:
	case <-e.stopCh:
		return zero, domain.ErrEngineStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-e.stopCh:
		return zero, domain.ErrEngineStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func roundNotFound(id uuid.UUID) error {
	return apperrors.NotFoundError("round not found", domain.ErrRoundNotFound).WithField("round_id", id.String())
}

// --- Public API ---

// Open starts a new round. The round's window opens immediately.
func (e *Engine) Open(ctx context.Context, spec domain.RoundSpec) (uuid.UUID, error) {
	// Validation and construction happen in the caller's goroutine, NOT the actor
	opts := []consensus.Option{consensus.WithClock(e.clock)}
	if spec.MinWeight != nil {
		opts = append(opts, consensus.WithMinWeight(*spec.MinWeight))
	}
	round, err := consensus.New(spec.Decay, spec.Escalator, spec.Window, opts...)
	if err != nil {
		return uuid.Nil, err
	}

	replyCh := make(chan struct{})
	if _, err := request(ctx, e, cmdRegister{round: round, replyCh: replyCh}, replyCh); err != nil {
		return uuid.Nil, err
	}

	slog.InfoContext(correlation.WithRound(ctx, round.ID()), "Round opened",
		"window", spec.Window,
		"min_weight", round.MinWeight(),
	)
	return round.ID(), nil
}

// Cast records value in the round. The bool reports whether the vote was
// accepted; a closed window is not an error.
func (e *Engine) Cast(ctx context.Context, roundID uuid.UUID, value string) (bool, error) {
	replyCh := make(chan castReply, 1)
	reply, err := request(ctx, e, cmdCast{roundID: roundID, value: value, replyCh: replyCh}, replyCh)
	if err != nil {
		return false, err
	}
	if !reply.found {
		return false, roundNotFound(roundID)
	}
	if !reply.accepted {
		slog.DebugContext(correlation.WithRound(ctx, roundID), "Vote dropped, window closed", "value", value)
	}
	return reply.accepted, nil
}

// Result computes the round's current decision.
func (e *Engine) Result(ctx context.Context, roundID uuid.UUID) (domain.Decision, error) {
	tally, err := e.Tally(ctx, roundID)
	if err != nil {
		return domain.Decision{}, err
	}
	return tally.Decide(), nil
}

// Tally returns the round's per-value breakdown.
func (e *Engine) Tally(ctx context.Context, roundID uuid.UUID) (domain.Tally, error) {
	replyCh := make(chan resultReply, 1)
	reply, err := request(ctx, e, cmdResult{roundID: roundID, replyCh: replyCh}, replyCh)
	if err != nil {
		return domain.Tally{}, err
	}
	if !reply.found {
		return domain.Tally{}, roundNotFound(roundID)
	}
	return reply.tally, nil
}

func (e *Engine) Status(ctx context.Context, roundID uuid.UUID) (domain.RoundStatus, error) {
	replyCh := make(chan statusReply, 1)
	reply, err := request(ctx, e, cmdStatus{roundID: roundID, replyCh: replyCh}, replyCh)
	if err != nil {
		return domain.RoundStatus{}, err
	}
	if !reply.found {
		return domain.RoundStatus{}, roundNotFound(roundID)
	}
	return reply.status, nil
}

// Close discards a round and all of its votes.
func (e *Engine) Close(ctx context.Context, roundID uuid.UUID) error {
	replyCh := make(chan bool, 1)
	found, err := request(ctx, e, cmdClose{roundID: roundID, replyCh: replyCh}, replyCh)
	if err != nil {
		return err
	}
	if !found {
		return roundNotFound(roundID)
	}
	slog.InfoContext(correlation.WithRound(ctx, roundID), "Round closed")
	return nil
}

// Rounds returns the number of rounds currently held.
func (e *Engine) Rounds(ctx context.Context) (int, error) {
	replyCh := make(chan int, 1)
	return request(ctx, e, cmdCount{replyCh: replyCh}, replyCh)
}

// EvictClosed runs an eviction sweep immediately and returns the number of rounds removed.
func (e *Engine) EvictClosed(ctx context.Context) (int, error) {
	replyCh := make(chan int, 1)
	return request(ctx, e, cmdEvict{replyCh: replyCh}, replyCh)
}

// Stop shuts down the actor and ticker. Safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		// Never started: no actor to hand the stop command to.
		if e.started.CompareAndSwap(false, true) {
			close(e.stopCh)
			return
		}
		doneCh := make(chan struct{})
		e.cmdCh <- cmdStop{doneCh: doneCh}
		<-doneCh
	})
}
