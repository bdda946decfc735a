package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/notur-urus/consensus-repo/internal/domain"
	"github.com/notur-urus/consensus-repo/internal/engine"
	apperrors "github.com/notur-urus/consensus-repo/internal/errors"
	"github.com/notur-urus/consensus-repo/internal/metrics"
	"github.com/notur-urus/consensus-repo/internal/platform/config"
)

type outcome struct {
	decision domain.Decision
	tally    domain.Tally
	dropped  int
}

func run(ctx context.Context, cfg *config.Config, values []string) (outcome, error) {
	return runWithClock(ctx, cfg, values, clockwork.NewRealClock())
}

func runWithClock(ctx context.Context, cfg *config.Config, values []string, clock clockwork.Clock) (outcome, error) {
	decayStrategy, err := cfg.Decay().Build()
	if err != nil {
		return outcome{}, fmt.Errorf("build decay: %w", err)
	}
	esc, err := cfg.Escalator().Build()
	if err != nil {
		return outcome{}, fmt.Errorf("build escalator: %w", err)
	}

	reg := metrics.NewRegistry()
	eng := engine.New(clock, metrics.NewVoteMetrics(reg), metrics.NewRoundMetrics(reg))
	eng.Start()
	defer eng.Stop()

	if cfg.MetricsAddr != "" {
		shutdown, err := serveMetrics(cfg.MetricsAddr, reg)
		if err != nil {
			return outcome{}, err
		}
		defer shutdown()
	}

	minWeight := cfg.MinWeight
	roundID, err := eng.Open(ctx, domain.RoundSpec{
		Decay:     decayStrategy,
		Escalator: esc,
		Window:    cfg.WindowDuration,
		MinWeight: &minWeight,
	})
	if err != nil {
		return outcome{}, fmt.Errorf("open round: %w", err)
	}
	slog.Info("Casting votes", "count", len(values), "decay", decayStrategy, "escalator", esc)

	var out outcome
	limiter := rate.NewLimiter(rate.Every(cfg.CastInterval), 1)
	for _, v := range values {
		if err := limiter.Wait(ctx); err != nil {
			return outcome{}, fmt.Errorf("pace casts: %w", err)
		}
		accepted, err := eng.Cast(ctx, roundID, v)
		if err != nil {
			return outcome{}, fmt.Errorf("cast %q: %w", v, err)
		}
		if !accepted {
			out.dropped++
			slog.Warn("Vote dropped, window closed", "value", v)
		}
	}

	out.tally, err = eng.Tally(ctx, roundID)
	if err != nil {
		return outcome{}, fmt.Errorf("compute result: %w", err)
	}
	out.decision = out.tally.Decide()

	slog.Info("Result computed",
		"reached", out.decision.Reached,
		"value", out.decision.Value,
		"threshold", out.decision.Threshold,
		"votes", out.decision.VoteCount,
		"dropped", out.dropped,
	)
	return out, nil
}

// serveMetrics exposes reg on addr until the returned shutdown func is called.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, apperrors.InternalError("failed to listen for metrics", err).WithField("addr", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server error", "error", err)
		}
	}()
	slog.Info("Serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}, nil
}
