// Package cli holds the command implementations behind cmd/chatbench.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/studiowebux/chatbench/internal/config"
	"github.com/studiowebux/chatbench/internal/executor"
	"github.com/studiowebux/chatbench/internal/logging"
	"github.com/studiowebux/chatbench/internal/report"
	"go.uber.org/zap"
)

var (
	// ErrScenariosFailed is returned when at least one sanity scenario failed
	ErrScenariosFailed = errors.New("one or more scenarios failed")
	// ErrErrorRateExceeded is returned when a load test is above its error budget
	ErrErrorRateExceeded = errors.New("error rate above the allowed maximum")
)

// Common holds the options every command shares
type Common struct {
	EnvFile   string
	LogLevel  string // overrides CHATBENCH_LOG_LEVEL
	LogFormat string // overrides CHATBENCH_LOG_FORMAT
	HTML      string
	Reports   []string
	Verbose   bool
	Out       io.Writer
	// Lookup replaces os.LookupEnv, mainly for tests
	Lookup func(string) (string, bool)
}

func (c *Common) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// environment loads the configuration and builds the logger
func (c *Common) environment() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(config.LoadOptions{EnvFile: c.EnvFile, Lookup: c.Lookup})
	if err != nil {
		return nil, nil, err
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.LogFormat = c.LogFormat
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	if cfg.EnvFile != "" {
		logger.Debug("loaded env file", zap.String("path", cfg.EnvFile))
	}
	return cfg, logger, nil
}

// emitters returns the console emitter followed by one emitter per report path
func (c *Common) emitters() ([]report.Emitter, error) {
	emitters := []report.Emitter{&report.ConsoleEmitter{Out: c.out(), Verbose: c.Verbose}}
	paths := c.Reports
	if c.HTML != "" {
		paths = append([]string{c.HTML}, paths...)
	}
	for _, path := range paths {
		e, err := report.ForPath(path)
		if err != nil {
			return nil, err
		}
		emitters = append(emitters, e)
	}
	return emitters, nil
}

func (c *Common) emit(r *report.Report, emitters []report.Emitter, logger *zap.Logger) error {
	if err := report.EmitAll(r, emitters...); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	for _, e := range emitters {
		if path := reportPath(e); path != "" {
			logger.Info("report written", zap.String("path", path), zap.String("kind", string(r.Kind)))
		}
	}
	return nil
}

func reportPath(e report.Emitter) string {
	switch e := e.(type) {
	case *report.HTMLEmitter:
		return e.Path
	case *report.JSONEmitter:
		return e.Path
	case *report.YAMLEmitter:
		return e.Path
	case *report.SQLiteEmitter:
		return e.Path
	}
	return ""
}

func newClient(cfg *config.Config, maxConns int) (*executor.Client, error) {
	client, err := executor.New(executor.Options{
		BaseURL:  cfg.BaseURL,
		Token:    cfg.APIToken,
		Timeout:  cfg.RequestTimeout,
		TLS:      cfg.TLS,
		MaxConns: maxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

// resolveFilePath attempts to find the actual file path, trying common
// extensions if the exact path doesn't exist
func resolveFilePath(path string) (string, error) {
	for _, ext := range []string{"", ".yaml", ".yml", ".json", ".jsonc"} {
		candidate := path + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return filepath.Clean(candidate), nil
		}
	}
	return "", fmt.Errorf("file not found: %s (tried .yaml, .yml, .json, .jsonc)", path)
}

// isInteractive checks if stdin and stdout are terminals
func isInteractive() bool {
	for _, f := range []*os.File{os.Stdin, os.Stdout} {
		stat, err := f.Stat()
		if err != nil || (stat.Mode()&os.ModeCharDevice) == 0 {
			return false
		}
	}
	return true
}
