package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/studiowebux/chatbench/internal/config"
	"github.com/studiowebux/chatbench/internal/loadtest"
	"github.com/studiowebux/chatbench/internal/report"
	"github.com/studiowebux/chatbench/internal/tui"
	"go.uber.org/zap"
)

const metricsShutdownTimeout = 5 * time.Second

// LoadOptions configures the load command. Nil fields were not set on the
// command line and fall back to the profile, then to the defaults.
type LoadOptions struct {
	Common
	File            string // load profile, the default task when empty
	Model           string
	Users           *int
	SpawnRate       *float64
	RunTime         *time.Duration
	RequestsPerUser *int
	MaxRPS          *float64
	Headless        bool
	MetricsAddr     string
	// MaxErrorRate fails the command above this fraction, negative disables it
	MaxErrorRate float64
}

// Load runs a load test and writes the reports
func Load(ctx context.Context, opts LoadOptions) error {
	profile, err := loadProfile(opts.File)
	if err != nil {
		return err
	}

	emitters, err := opts.emitters()
	if err != nil {
		return err
	}

	cfg, logger, err := opts.environment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	loadCfg := profile.Config
	if loadCfg.RequestTimeout == config.DefaultRequestTimeout {
		loadCfg.RequestTimeout = cfg.RequestTimeout
	}
	applyOverrides(&loadCfg, opts)
	if err := loadCfg.Validate(); err != nil {
		return fmt.Errorf("invalid load config: %w", err)
	}

	task := loadtest.DefaultTask(cfg.Models[0])
	if profile.Task != nil {
		task = *profile.Task
	} else {
		task.Endpoint = cfg.Endpoint
	}
	if task.Model == "" {
		task.Model = cfg.Models[0]
	}
	if task.Endpoint == "" {
		task.Endpoint = cfg.Endpoint
	}
	if opts.Model != "" {
		task.Model = opts.Model
	}

	clientCfg := *cfg
	clientCfg.RequestTimeout = loadCfg.RequestTimeout
	client, err := newClient(&clientCfg, loadCfg.Users)
	if err != nil {
		return err
	}

	interactive := !opts.Headless && isInteractive()

	driverLogger := logger
	if interactive {
		// stderr output would tear the progress view
		driverLogger = zap.NewNop()
	}
	target := cfg.BaseURL + task.Endpoint
	driverOpts := []loadtest.Option{loadtest.WithLogger(driverLogger), loadtest.WithTarget(target)}

	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics, err := loadtest.NewMetrics(reg)
		if err != nil {
			return err
		}
		driverOpts = append(driverOpts, loadtest.WithMetrics(metrics))

		stop, err := serveMetrics(opts.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	driver, err := loadtest.NewDriver(loadCfg, client, task, driverOpts...)
	if err != nil {
		return err
	}

	var summary *loadtest.Summary
	if interactive {
		summary, err = runInteractive(ctx, driver, tui.Info{
			Name:   loadCfg.Name,
			Target: target,
			Model:  task.Model,
		}, logger)
	} else {
		summary, err = driver.Run(ctx)
	}
	if err != nil {
		return err
	}

	if err := opts.emit(report.NewLoadReport(summary), emitters, logger); err != nil {
		return err
	}

	if opts.MaxErrorRate >= 0 && summary.ErrorRate > opts.MaxErrorRate {
		return fmt.Errorf("%w: %.4f > %.4f", ErrErrorRateExceeded, summary.ErrorRate, opts.MaxErrorRate)
	}
	return nil
}

func applyOverrides(c *loadtest.Config, opts LoadOptions) {
	if opts.Users != nil {
		c.Users = *opts.Users
	}
	if opts.SpawnRate != nil {
		c.SpawnRate = *opts.SpawnRate
	}
	if opts.RunTime != nil {
		c.RunTime = *opts.RunTime
	}
	if opts.RequestsPerUser != nil {
		c.RequestsPerUser = *opts.RequestsPerUser
	}
	if opts.MaxRPS != nil {
		c.MaxRPS = *opts.MaxRPS
	}
}

// runInteractive shows the progress view while the driver runs. Leaving the
// view cancels the run; the summary is still returned.
func runInteractive(ctx context.Context, driver *loadtest.Driver, info tui.Info, logger *zap.Logger) (*loadtest.Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		summary *loadtest.Summary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := driver.Run(runCtx)
		done <- result{summary, err}
	}()

	if err := tui.Run(tui.New(driver, cancel, info)); err != nil {
		logger.Warn("progress view failed, waiting for the run to finish", zap.Error(err))
	}

	res := <-done
	return res.summary, res.err
}

// serveMetrics exposes reg on addr until the returned function is called
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", listener.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}, nil
}

func loadProfile(path string) (*loadtest.Profile, error) {
	if path == "" {
		return &loadtest.Profile{Config: loadtest.DefaultConfig()}, nil
	}
	resolved, err := resolveFilePath(path)
	if err != nil {
		return nil, err
	}
	return loadtest.LoadFile(resolved)
}
