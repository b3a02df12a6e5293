package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/azargarov/batchcall"
	"github.com/azargarov/batchcall/internal/simcall"
)

func benchCmd() *cobra.Command {
	var (
		latency   time.Duration
		repeat    int
		failEvery int64
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the sample batch under every strategy against a simulated service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, opts, stop := setup(cfg)
			defer stop()

			sim := simcall.New(latency)
			sim.FailEvery = failEvery

			ex, err := batchcall.New(batchcall.DecodeJSON[simcall.Question, simcall.Verdict](sim), opts)
			if err != nil {
				return err
			}
			eff := ex.Options()
			items := simcall.Items(repeat)

			ctx, cancel := signalContext()
			defer cancel()

			logger.Info("benchmark started",
				zap.Int("items", len(items)),
				zap.Duration("latency", latency),
			)
			reports, err := ex.Compare(ctx, items,
				batchcall.Sequential(),
				batchcall.Concurrent(),
				batchcall.Bounded(eff.MaxConcurrency),
				batchcall.Pooled(eff.PoolSize),
			)
			printReports(cmd.OutOrStdout(), reports)
			return err
		},
	}
	cmd.Flags().DurationVar(&latency, "latency", 200*time.Millisecond, "Simulated per-call latency")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "Repeat the six sample questions this many times")
	cmd.Flags().Int64Var(&failEvery, "fail-every", 0, "Fail every n-th call transiently (0 disables)")
	return cmd
}
