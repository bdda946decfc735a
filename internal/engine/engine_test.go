package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notur-urus/consensus-repo/internal/consensus"
	"github.com/notur-urus/consensus-repo/internal/decay"
	"github.com/notur-urus/consensus-repo/internal/domain"
	"github.com/notur-urus/consensus-repo/internal/escalator"
	"github.com/notur-urus/consensus-repo/internal/metrics"
)

// --- Helpers ---

type testEngine struct {
	engine       *Engine
	clock        *clockwork.FakeClock
	voteMetrics  *metrics.VoteMetrics
	roundMetrics *metrics.RoundMetrics
}

func newTestEngine(t *testing.T, opts ...Option) *testEngine {
	t.Helper()
	fakeClock := clockwork.NewFakeClock()
	reg := prometheus.NewRegistry()
	voteMetrics := metrics.NewVoteMetrics(reg)
	roundMetrics := metrics.NewRoundMetrics(reg)
	engine := New(fakeClock, voteMetrics, roundMetrics, opts...)
	engine.Start()
	t.Cleanup(engine.Stop)
	return &testEngine{
		engine:       engine,
		clock:        fakeClock,
		voteMetrics:  voteMetrics,
		roundMetrics: roundMetrics,
	}
}

func roundSpec(t *testing.T, base float64, window time.Duration) domain.RoundSpec {
	t.Helper()
	d, err := decay.NewExponential(time.Minute)
	require.NoError(t, err)
	e, err := escalator.NewLinear(base, 0, 1, 0)
	require.NoError(t, err)
	return domain.RoundSpec{Decay: d, Escalator: e, Window: window}
}

func (te *testEngine) open(t *testing.T, spec domain.RoundSpec) uuid.UUID {
	t.Helper()
	id, err := te.engine.Open(context.Background(), spec)
	require.NoError(t, err)
	return id
}

func (te *testEngine) rounds(t *testing.T) int {
	t.Helper()
	n, err := te.engine.Rounds(context.Background())
	require.NoError(t, err)
	return n
}

// --- Open ---

func TestOpen_RegistersRound(t *testing.T) {
	te := newTestEngine(t)

	id := te.open(t, roundSpec(t, 0.51, 10*time.Second))

	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, 1, te.rounds(t))
	assert.Equal(t, 1.0, testutil.ToFloat64(te.roundMetrics.Opened))
	assert.Equal(t, 1.0, testutil.ToFloat64(te.roundMetrics.Active))
}

func TestOpen_RejectsInvalidSpec(t *testing.T) {
	te := newTestEngine(t)
	spec := roundSpec(t, 0.51, 0)

	_, err := te.engine.Open(context.Background(), spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	assert.Equal(t, 0, te.rounds(t))
}

// --- Min weight ---

// staleVoteSpec decays a vote to nothing within minutes, so only the min
// weight keeps an old vote in the total.
func staleVoteSpec(t *testing.T) domain.RoundSpec {
	t.Helper()
	d, err := decay.NewExponential(time.Second)
	require.NoError(t, err)
	e, err := escalator.NewLinear(0.95, 0, 1, 0)
	require.NoError(t, err)
	return domain.RoundSpec{Decay: d, Escalator: e, Window: time.Hour}
}

func (te *testEngine) castStaleThenFresh(t *testing.T, id uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	_, err := te.engine.Cast(ctx, id, "X")
	require.NoError(t, err)
	te.clock.Advance(20 * time.Minute)
	_, err = te.engine.Cast(ctx, id, "Y")
	require.NoError(t, err)
}

func TestOpen_UnsetMinWeightUsesDefault(t *testing.T) {
	te := newTestEngine(t)
	id := te.open(t, staleVoteSpec(t))
	te.castStaleThenFresh(t, id)

	tally, err := te.engine.Tally(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, tally.Values, 2)
	assert.Equal(t, "X", tally.Values[1].Value)
	assert.Equal(t, consensus.DefaultMinWeight, tally.Values[1].Weight)

	d := tally.Decide()
	assert.False(t, d.Reached)
	assert.InDelta(t, 1/1.1, d.Share, 1e-9)
}

func TestOpen_ExplicitZeroMinWeight(t *testing.T) {
	te := newTestEngine(t)
	spec := staleVoteSpec(t)
	zero := 0.0
	spec.MinWeight = &zero

	id := te.open(t, spec)
	te.castStaleThenFresh(t, id)

	d, err := te.engine.Result(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, d.Reached)
	assert.Equal(t, "Y", d.Value)
}

// --- Cast / Result ---

func TestCastAndResult_MajorityWins(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	id := te.open(t, roundSpec(t, 0.51, 10*time.Second))

	for _, v := range []string{"A", "A", "A", "B"} {
		accepted, err := te.engine.Cast(ctx, id, v)
		require.NoError(t, err)
		assert.True(t, accepted)
	}

	d, err := te.engine.Result(ctx, id)
	require.NoError(t, err)
	assert.True(t, d.Reached)
	assert.Equal(t, "A", d.Value)
	assert.InDelta(t, 0.75, d.Share, 1e-12)
	assert.Equal(t, 4, d.VoteCount)

	assert.Equal(t, 4.0, testutil.ToFloat64(te.voteMetrics.VotesCast.WithLabelValues(metrics.CastAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(te.voteMetrics.Results.WithLabelValues(metrics.OutcomeDecided)))
}

func TestResult_NoDecision(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	id := te.open(t, roundSpec(t, 0.75, 10*time.Second))

	for _, v := range []string{"A", "B", "A"} {
		_, err := te.engine.Cast(ctx, id, v)
		require.NoError(t, err)
	}

	d, err := te.engine.Result(ctx, id)
	require.NoError(t, err)
	assert.False(t, d.Reached)
	assert.Empty(t, d.Value)
	assert.Equal(t, 1.0, testutil.ToFloat64(te.voteMetrics.Results.WithLabelValues(metrics.OutcomeNoDecision)))
}

func TestCast_AfterWindowClosed(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	id := te.open(t, roundSpec(t, 0.51, time.Second))

	te.clock.Advance(2 * time.Second)

	accepted, err := te.engine.Cast(ctx, id, "late")
	require.NoError(t, err)
	assert.False(t, accepted)

	status, err := te.engine.Status(ctx, id)
	require.NoError(t, err)
	assert.False(t, status.Open)
	assert.Equal(t, 0, status.VoteCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(te.voteMetrics.VotesCast.WithLabelValues(metrics.CastDropped)))
}

func TestTally_ReturnsBreakdown(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	id := te.open(t, roundSpec(t, 0.51, 10*time.Second))

	_, _ = te.engine.Cast(ctx, id, "B")
	_, _ = te.engine.Cast(ctx, id, "A")
	_, _ = te.engine.Cast(ctx, id, "A")

	tally, err := te.engine.Tally(ctx, id)
	require.NoError(t, err)
	require.Len(t, tally.Values, 2)
	assert.Equal(t, "A", tally.Values[0].Value)
	assert.Equal(t, 2, tally.Values[0].Votes)
	assert.Equal(t, "B", tally.Values[1].Value)
	assert.InDelta(t, 3.0, tally.Total, 1e-12)
}

func TestRoundsAreIndependent(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	first := te.open(t, roundSpec(t, 0.51, 10*time.Second))
	second := te.open(t, roundSpec(t, 0.51, 10*time.Second))

	_, _ = te.engine.Cast(ctx, first, "red")
	_, _ = te.engine.Cast(ctx, second, "blue")

	d1, err := te.engine.Result(ctx, first)
	require.NoError(t, err)
	d2, err := te.engine.Result(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, "red", d1.Value)
	assert.Equal(t, "blue", d2.Value)
}

// --- Unknown rounds ---

func TestUnknownRound(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	missing := uuid.New()

	_, err := te.engine.Cast(ctx, missing, "A")
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)

	_, err = te.engine.Result(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)

	_, err = te.engine.Status(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)

	err = te.engine.Close(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)
}

// --- Close / eviction ---

func TestClose_RemovesRound(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	id := te.open(t, roundSpec(t, 0.51, 10*time.Second))

	require.NoError(t, te.engine.Close(ctx, id))
	assert.Equal(t, 0, te.rounds(t))

	_, err := te.engine.Result(ctx, id)
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)
}

func TestEvictClosed_RespectsRetention(t *testing.T) {
	te := newTestEngine(t, WithRetention(time.Minute))
	ctx := context.Background()
	short := te.open(t, roundSpec(t, 0.51, time.Second))
	long := te.open(t, roundSpec(t, 0.51, time.Hour))

	te.clock.Advance(30 * time.Second)
	evicted, err := te.engine.EvictClosed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, evicted, "closed round still within retention")

	te.clock.Advance(time.Minute)
	evicted, err = te.engine.EvictClosed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	_, err = te.engine.Status(ctx, short)
	assert.ErrorIs(t, err, domain.ErrRoundNotFound)
	_, err = te.engine.Status(ctx, long)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(te.roundMetrics.Evicted))
}

func TestTickerLoop_EvictsClosedRounds(t *testing.T) {
	fakeClock := clockwork.NewFakeClock()
	reg := prometheus.NewRegistry()
	engine := New(fakeClock, metrics.NewVoteMetrics(reg), metrics.NewRoundMetrics(reg),
		WithRetention(time.Second),
		WithEvictInterval(10*time.Second),
	)
	go engine.run()
	t.Cleanup(engine.Stop)

	spec := roundSpec(t, 0.51, time.Second)
	_, err := engine.Open(context.Background(), spec)
	require.NoError(t, err)

	go engine.tickerLoop()
	fakeClock.BlockUntilContext(context.Background(), 1) //nolint:errcheck // Wait for ticker goroutine to be blocked on clock
	fakeClock.Advance(10 * time.Second)

	require.Eventually(t, func() bool {
		n, err := engine.Rounds(context.Background())
		return err == nil && n == 0
	}, time.Second, 5*time.Millisecond)
}

// --- Context and shutdown ---

func TestRequest_HonorsContextDeadline(t *testing.T) {
	reg := prometheus.NewRegistry()
	// Not started: the command is buffered but never answered.
	engine := New(clockwork.NewFakeClock(), metrics.NewVoteMetrics(reg), metrics.NewRoundMetrics(reg))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := engine.Rounds(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStop_BeforeStart(t *testing.T) {
	reg := prometheus.NewRegistry()
	engine := New(clockwork.NewFakeClock(), metrics.NewVoteMetrics(reg), metrics.NewRoundMetrics(reg))

	done := make(chan struct{})
	go func() {
		engine.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on an engine that was never started")
	}

	_, err := engine.Rounds(context.Background())
	assert.ErrorIs(t, err, domain.ErrEngineStopped)

	// Start after Stop must not revive the actor.
	engine.Start()
	_, err = engine.Rounds(context.Background())
	assert.ErrorIs(t, err, domain.ErrEngineStopped)
}

func TestStop_RejectsFurtherRequests(t *testing.T) {
	fakeClock := clockwork.NewFakeClock()
	reg := prometheus.NewRegistry()
	engine := New(fakeClock, metrics.NewVoteMetrics(reg), metrics.NewRoundMetrics(reg))
	engine.Start()

	engine.Stop()
	engine.Stop()

	_, err := engine.Rounds(context.Background())
	assert.ErrorIs(t, err, domain.ErrEngineStopped)
}

func TestConcurrentCasts(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	id := te.open(t, roundSpec(t, 0.51, time.Minute))

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value := "yes"
			if i%5 == 0 {
				value = "no"
			}
			for range 20 {
				_, err := te.engine.Cast(ctx, id, value)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	d, err := te.engine.Result(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 200, d.VoteCount)
	assert.Equal(t, "yes", d.Value)
	assert.InDelta(t, 0.8, d.Share, 1e-12)
}
