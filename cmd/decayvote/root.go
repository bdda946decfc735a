package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/notur-urus/consensus-repo/internal/errors"
	"github.com/notur-urus/consensus-repo/internal/platform/config"
	"github.com/notur-urus/consensus-repo/internal/platform/logging"
	"github.com/notur-urus/consensus-repo/internal/platform/version"
)

// newRootCmd binds every flag to cfg, so env values act as defaults and flags override them.
func newRootCmd(cfg *config.Config, out io.Writer) *cobra.Command {
	var (
		votes  string
		report bool
	)

	cmd := &cobra.Command{
		Use:           "decayvote",
		Short:         "Aggregate time-decayed votes into a single decision",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Validate(cfg); err != nil {
				return apperrors.ValidationError("invalid configuration", err)
			}
			logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

			values := parseVotes(votes)
			if len(values) == 0 {
				return apperrors.ValidationError("no votes given", nil).WithField("votes", votes)
			}

			outcome, err := run(cmd.Context(), cfg, values)
			if err != nil {
				return err
			}
			return printOutcome(out, outcome, report)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&votes, "votes", "v", "", "comma-separated vote values, cast in order")
	flags.StringVarP(&cfg.DecayKind, "decay", "d", cfg.DecayKind, "decay strategy: exp, linear or step")
	flags.DurationVar(&cfg.WindowDuration, "window", cfg.WindowDuration, "how long the voting window stays open")
	flags.DurationVar(&cfg.DecayHalfLife, "half-life", cfg.DecayHalfLife, "half-life of the exp decay")
	flags.DurationVar(&cfg.DecayLinearDuration, "linear-duration", cfg.DecayLinearDuration, "duration of the linear decay")
	flags.DurationVar(&cfg.DecayStep, "step", cfg.DecayStep, "step size of the step decay")
	flags.StringVarP(&cfg.EscalatorKind, "escalator", "e", cfg.EscalatorKind, "escalator strategy: linear or constant")
	flags.Float64Var(&cfg.EscalatorBase, "base", cfg.EscalatorBase, "threshold at the start of the window (the fixed threshold for constant)")
	flags.Float64Var(&cfg.EscalatorSlope, "slope", cfg.EscalatorSlope, "threshold change per elapsed second")
	flags.Float64Var(&cfg.EscalatorCap, "cap", cfg.EscalatorCap, "upper bound of the threshold")
	flags.Float64Var(&cfg.EscalatorFloor, "floor", cfg.EscalatorFloor, "lower bound of the threshold")
	flags.Float64Var(&cfg.MinWeight, "min-weight", cfg.MinWeight, "floor applied to every decayed vote weight")
	flags.DurationVar(&cfg.CastInterval, "interval", cfg.CastInterval, "pause between consecutive casts")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address during the run")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text, json or pretty")
	flags.BoolVar(&report, "report", false, "print the per-value weight breakdown")
	_ = cmd.MarkFlagRequired("votes")

	cmd.AddCommand(newVersionCmd(out))
	return cmd
}

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintln(out, version.Get().String())
			return err
		},
	}
}

// parseVotes splits a comma-separated list, trimming whitespace and skipping empty entries.
func parseVotes(raw string) []string {
	var values []string
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		values = append(values, v)
	}
	return values
}
