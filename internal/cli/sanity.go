package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/studiowebux/chatbench/internal/fixture"
	"github.com/studiowebux/chatbench/internal/report"
	"github.com/studiowebux/chatbench/internal/sanity"
	"go.uber.org/zap"
)

// SanityOptions configures the sanity command. Flag values win over the
// suite file, which wins over the environment.
type SanityOptions struct {
	Common
	File   string // scenario file, the built-in suite when empty
	Models []string
	Kinds  []string
	Run    string         // scenario name pattern
	Delay  *time.Duration // nil when the flag was not set
}

// Sanity runs the scenario suite and writes the reports. It returns
// ErrScenariosFailed when any scenario failed or the run was cancelled.
func Sanity(ctx context.Context, opts SanityOptions) error {
	suite, err := loadSuite(opts.File)
	if err != nil {
		return err
	}

	kinds := make([]fixture.Kind, 0, len(opts.Kinds))
	for _, raw := range opts.Kinds {
		kind, err := fixture.ParseKind(raw)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}
	all := suite.Scenarios
	suite.Scenarios, err = fixture.Filter(all, kinds, opts.Run)
	if err != nil {
		return err
	}
	if len(suite.Scenarios) == 0 {
		return noneSelected(all, opts.Run)
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

	models := cfg.Models
	if len(suite.Models) > 0 {
		models = suite.Models
	}
	if len(opts.Models) > 0 {
		models = opts.Models
	}

	delay := scenarioDelay(cfg.ScenarioDelay, suite.Delay, opts.Delay)

	client, err := newClient(cfg, 1)
	if err != nil {
		return err
	}

	runner := sanity.NewRunner(client, sanity.Options{
		Models:   models,
		Endpoint: cfg.Endpoint,
		Delay:    delay,
		Target:   cfg.URL(),
	}, logger)

	summary := runner.Run(ctx, suite)

	if err := opts.emit(report.NewSanityReport(summary), emitters, logger); err != nil {
		return err
	}

	if summary.Failed() {
		logger.Debug("sanity run failed",
			zap.Int("failed", summary.Counts.Failed),
			zap.Bool("cancelled", summary.Cancelled))
		return ErrScenariosFailed
	}
	return nil
}

func loadSuite(path string) (*fixture.Suite, error) {
	if path == "" {
		return fixture.Builtin(), nil
	}
	resolved, err := resolveFilePath(path)
	if err != nil {
		return nil, err
	}
	return fixture.LoadFile(resolved)
}

// scenarioDelay applies flag > suite file > environment. Nil means unset.
func scenarioDelay(env time.Duration, suite, flag *time.Duration) time.Duration {
	switch {
	case flag != nil:
		return *flag
	case suite != nil:
		return *suite
	}
	return env
}

// noneSelected explains an empty selection, suggesting close names when a
// pattern was given
func noneSelected(scenarios []fixture.Scenario, pattern string) error {
	if pattern == "" {
		return fmt.Errorf("no scenarios selected")
	}
	if names := fixture.Suggest(scenarios, pattern, 3); len(names) > 0 {
		return fmt.Errorf("no scenarios match %q (did you mean %s?)", pattern, strings.Join(names, ", "))
	}
	return fmt.Errorf("no scenarios match %q", pattern)
}
