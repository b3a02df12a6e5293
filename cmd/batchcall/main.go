// batchcall runs batches of remote calls under a chosen concurrency
// strategy and compares strategies against a simulated service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/azargarov/batchcall"
	"github.com/azargarov/batchcall/internal/config"
	"github.com/azargarov/batchcall/internal/logging"
)

var (
	configPath string
	strategy   string
	limit      int
	logLevel   string
)

const version = "0.3.0"

func main() {
	rootCmd := &cobra.Command{
		Use:     "batchcall",
		Short:   "Bounded-concurrency executor for remote calls",
		Version: version,
		Long: `batchcall executes a batch of independent remote calls with retry
and a chosen concurrency strategy.

Examples:
  # Post every payload in items.yaml to the configured endpoint
  batchcall run items.yaml --config batchcall.yaml --strategy bounded --limit 20

  # Compare all strategies against a simulated 200ms service
  batchcall bench --latency 200ms --repeat 5 --limit 10
`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&strategy, "strategy", "s", "", "sequential, concurrent, bounded or pooled (overrides config)")
	rootCmd.PersistentFlags().IntVarP(&limit, "limit", "n", 0, "Gate capacity for bounded, worker count for pooled (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(benchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges the config file, the environment and the flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if strategy != "" {
		cfg.Strategy = strategy
	}
	if limit > 0 {
		cfg.MaxConcurrency = limit
		cfg.PoolSize = limit
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, cfg.Validate()
}

// setup builds the logger and the executor options shared by all commands.
func setup(cfg config.Config) (*zap.Logger, batchcall.Options, func()) {
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	opts := cfg.Options()
	opts.Logger = logger
	opts.OnInternalError = func(err error) {
		logger.Error("internal executor error", zap.Error(err))
	}

	stop := func() { _ = logger.Sync() }
	if cfg.MetricsAddr == "" {
		return logger, opts, stop
	}

	reg := prometheus.NewRegistry()
	opts.Metrics = batchcall.NewPromMetrics(reg, "batchcall")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))

	return logger, opts, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = logger.Sync()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printReports(w io.Writer, reports []batchcall.BatchReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tITEMS\tOK\tFAILED\tRETRIES\tPEAK\tELAPSED\tSPEEDUP")
	var base time.Duration
	for i, r := range reports {
		if i == 0 {
			base = r.Elapsed
		}
		speedup := "-"
		if base > 0 && r.Elapsed > 0 {
			speedup = fmt.Sprintf("%.1fx", float64(base)/float64(r.Elapsed))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.Strategy,
			humanize.Comma(int64(r.Items)),
			humanize.Comma(int64(r.Succeeded)),
			humanize.Comma(int64(r.Failed)),
			humanize.Comma(int64(r.Retries)),
			r.PeakInFlight,
			r.Elapsed.Round(time.Millisecond),
			speedup,
		)
	}
	_ = tw.Flush()
}
