package cmd

import (
	"context"
	"couchtransfer/internal/common"
	"couchtransfer/internal/config"
	"couchtransfer/internal/couch"
	"couchtransfer/internal/logging"
	"couchtransfer/internal/metrics"
	"couchtransfer/internal/pool"
	"couchtransfer/internal/progress"
	"couchtransfer/internal/transfer"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// runtimeEnv holds what a transfer command needs once its configuration is resolved.
type runtimeEnv struct {
	cfg      *config.Config
	logger   *slog.Logger
	reporter progress.Reporter
	recorder transfer.Recorder
	client   *couch.Client

	stopMetrics func()
}

// prepare loads and validates the configuration, applies the logging settings and wires
// the document store client, metrics and progress display.
func prepare(cmd *cobra.Command, logs *logging.Manager) (*runtimeEnv, error) {
	cfg := &config.Config{}
	if err := cfg.Load(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		return nil, &common.ConfigError{Op: "validate", Reason: fmt.Sprintf("unknown log level %q", cfg.LogLevel)}
	}
	logs.SetLevel(level)
	if cfg.LogFile != "" {
		logs.AddFile(cfg.LogFile)
	}
	logger := logs.Logger()

	env := &runtimeEnv{
		cfg:         cfg,
		logger:      logger,
		reporter:    progress.Nop{},
		recorder:    transfer.NopRecorder{},
		stopMetrics: func() {},
	}
	if !cfg.NoProgress {
		env.reporter = progress.NewTracker(cmd.Context(), cmd.ErrOrStderr(), progress.DefaultUpdateInterval)
	}

	clientOpts := []couch.Option{
		couch.WithTimeout(cfg.Timeout),
		couch.WithLogger(logger),
		couch.WithBufferPool(pool.NewBufferPool(64 << 10)),
	}
	if cfg.MetricsEnabled {
		m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry())
		env.recorder = m
		env.stopMetrics = serveMetrics(cmd.Context(), m, cfg.MetricsAddr, logger)
		clientOpts = append(clientOpts, couch.WithObserver(m))
	}
	env.client = couch.NewClient(cfg, clientOpts...)

	return env, nil
}

// close stops background services started by prepare.
func (e *runtimeEnv) close() {
	e.stopMetrics()
}

// serveMetrics runs the metrics server until the returned stop function is called.
func serveMetrics(ctx context.Context, m *metrics.Metrics, addr string, logger *slog.Logger) func() {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := m.StartMetricsServer(ctx, addr); err != nil {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		cancel()
		wg.Wait()
	}
}

// finish reports the outcome of a transfer: the summary error when units failed.
func finish(out io.Writer, summary transfer.Summary) error {
	if summary.Complete() {
		return nil
	}
	fmt.Fprintf(out, "Failed units: %d\n", len(summary.Failed))
	for _, f := range summary.Failed {
		fmt.Fprintf(out, "  %s\n", f)
	}
	return summary.Err()
}
