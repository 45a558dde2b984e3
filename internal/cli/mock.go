package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/studiowebux/chatbench/internal/config"
	"github.com/studiowebux/chatbench/internal/logging"
	"github.com/studiowebux/chatbench/internal/mock"
	"go.uber.org/zap"
)

// MockOptions configures the mock command. Host, Port and Token override the
// config file when set.
type MockOptions struct {
	Common
	File  string
	Host  string
	Port  *int
	Token string
	// OnReady is called with the base URL once the server listens
	OnReady func(url string)
}

// Mock serves the offline chat-completion imitation until ctx is done
func Mock(ctx context.Context, opts MockOptions) error {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	level := opts.LogLevel
	if level == "" {
		level, _ = lookup(config.EnvLogLevel)
	}
	if level == "" {
		level = "info"
	}
	format := opts.LogFormat
	if format == "" {
		format, _ = lookup(config.EnvLogFormat)
	}
	logger, err := logging.New(level, format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := mock.DefaultConfig()
	if opts.File != "" {
		path, err := resolveFilePath(opts.File)
		if err != nil {
			return err
		}
		loaded, err := mock.LoadConfig(path)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port != nil {
		cfg.Port = *opts.Port
	}
	switch {
	case opts.Token != "":
		cfg.Token = opts.Token
	case cfg.Token == "":
		cfg.Token, _ = lookup(config.EnvAPIToken)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid mock config: %w", err)
	}

	srv := mock.NewServer(cfg, logger)
	if err := srv.Start(); err != nil {
		return err
	}
	addr := srv.GetAddress()
	logger.Info("mock server listening",
		zap.String("url", addr),
		zap.Bool("token_required", cfg.Token != ""),
		zap.Duration("latency", cfg.Latency),
		zap.Float64("error_rate", cfg.ErrorRate))
	fmt.Fprintf(opts.out(), "Mock chat-completion API on %s (point %s at it)\n", addr, config.EnvBaseURL)
	if opts.OnReady != nil {
		opts.OnReady(addr)
	}

	<-ctx.Done()
	logger.Info("stopping mock server", zap.Int("logged_requests", len(srv.GetLogs())))
	return srv.Stop()
}
