// Package sanity runs chat-completion scenarios one after another and records
// a pass/fail result for each.
package sanity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/studiowebux/chatbench/internal/config"
	"github.com/studiowebux/chatbench/internal/executor"
	"github.com/studiowebux/chatbench/internal/fixture"
	"github.com/studiowebux/chatbench/internal/types"
	"go.uber.org/zap"
)

const (
	requestSnippetLen  = 512
	responseSnippetLen = 2048
)

// Doer sends one call. *executor.Client implements it.
type Doer interface {
	Do(ctx context.Context, call *executor.Call) *types.RequestResult
}

// Options configures a Runner
type Options struct {
	Models   []string
	Endpoint string
	Delay    time.Duration // pause between two requests
	Target   string        // base URL, recorded in the summary
}

// Runner executes scenarios sequentially on a single goroutine
type Runner struct {
	client Doer
	opts   Options
	logger *zap.Logger
}

// NewRunner creates a Runner. Without models it tests config.DefaultModel.
func NewRunner(client Doer, opts Options, logger *zap.Logger) *Runner {
	if len(opts.Models) == 0 {
		opts.Models = []string{config.DefaultModel}
	}
	if opts.Endpoint == "" {
		opts.Endpoint = config.DefaultEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{client: client, opts: opts, logger: logger}
}

type step struct {
	scenario fixture.Scenario
	model    string
}

// plan orders the work: every model-dependent scenario for each model in
// turn, then model-independent scenarios once
func (r *Runner) plan(suite *fixture.Suite) []step {
	var steps []step
	for _, model := range r.opts.Models {
		for _, sc := range suite.Scenarios {
			if !sc.ModelIndependent {
				steps = append(steps, step{scenario: sc, model: model})
			}
		}
	}
	for _, sc := range suite.Scenarios {
		if sc.ModelIndependent {
			steps = append(steps, step{scenario: sc, model: r.opts.Models[0]})
		}
	}
	return steps
}

// Run executes the suite. Cancelling ctx stops the run after the current
// request; the summary then only holds the finished scenarios.
func (r *Runner) Run(ctx context.Context, suite *fixture.Suite) *Summary {
	summary := newSummary(r.opts.Target, r.opts.Models)
	steps := r.plan(suite)

	r.logger.Info("starting sanity run",
		zap.String("run_id", summary.RunID),
		zap.String("target", r.opts.Target),
		zap.Strings("models", r.opts.Models),
		zap.Int("scenarios", len(steps)),
		zap.Duration("delay", r.opts.Delay),
	)

	for i, st := range steps {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		res := r.runOne(ctx, st)
		if ctx.Err() != nil && !res.Passed {
			// Interrupted mid-request, not a verdict on the service
			summary.Cancelled = true
			break
		}
		summary.add(res)
		r.logResult(res)

		if i < len(steps)-1 && r.opts.Delay > 0 {
			if err := sleep(ctx, r.opts.Delay); err != nil {
				summary.Cancelled = true
				break
			}
		}
	}

	summary.FinishedAt = time.Now()
	r.logger.Info("sanity run finished",
		zap.String("run_id", summary.RunID),
		zap.Int("total", summary.Counts.Total),
		zap.Int("passed", summary.Counts.Passed),
		zap.Int("failed", summary.Counts.Failed),
		zap.Bool("cancelled", summary.Cancelled),
		zap.Duration("duration", summary.Duration()),
	)
	return summary
}

func (r *Runner) runOne(ctx context.Context, st step) Result {
	sc := st.scenario
	res := Result{
		ID:          uuid.NewString(),
		Scenario:    sc.Name,
		Kind:        sc.Kind,
		Description: sc.Description,
		Model:       st.model,
		StartedAt:   time.Now(),
	}

	call, err := sc.Request.Build(st.model)
	if err != nil {
		res.Failures = []string{"failed to build request: " + err.Error()}
		return res
	}
	call.Path = r.opts.Endpoint

	result := r.client.Do(ctx, call)
	res.Status = result.Status
	res.LatencyMs = result.Duration
	res.Request = snippet(result.RequestBody, requestSnippetLen)
	res.Response = snippet(result.Body, responseSnippetLen)
	res.Failures = sc.Expect.Check(result)
	res.Passed = len(res.Failures) == 0
	return res
}

func (r *Runner) logResult(res Result) {
	if res.Passed {
		r.logger.Info("scenario passed",
			zap.String("scenario", res.Scenario),
			zap.String("kind", string(res.Kind)),
			zap.String("model", res.Model),
			zap.Int("status", res.Status),
			zap.Int64("latency_ms", res.LatencyMs),
		)
		return
	}
	r.logger.Warn("scenario failed",
		zap.String("scenario", res.Scenario),
		zap.String("kind", string(res.Kind)),
		zap.String("model", res.Model),
		zap.Int("status", res.Status),
		zap.Int64("latency_ms", res.LatencyMs),
		zap.Strings("failures", res.Failures),
		zap.String("response_body", snippet(res.Response, 256)),
	)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(text string, limit int) string {
	cleaned := strings.TrimSpace(text)
	runes := []rune(cleaned)
	if len(runes) <= limit {
		return cleaned
	}
	return string(runes[:limit]) + "…"
}
