package loadtest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/studiowebux/chatbench/internal/config"
	"github.com/studiowebux/chatbench/internal/executor"
	"github.com/studiowebux/chatbench/internal/expect"
	"github.com/studiowebux/chatbench/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Doer sends one call. *executor.Client implements it.
type Doer interface {
	Do(ctx context.Context, call *executor.Call) *types.RequestResult
}

// Option customizes a Driver
type Option func(*Driver)

// WithLogger sets the driver logger
func WithLogger(logger *zap.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithMetrics records every request on m
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithTarget records the service URL in the summary
func WithTarget(target string) Option {
	return func(d *Driver) { d.target = target }
}

// Progress is a point-in-time view of a running load test. It is only meant
// for display; the summary is built from the per-user samples.
type Progress struct {
	Users       int
	Started     int
	Active      int
	Completed   int64
	Failed      int64
	Elapsed     time.Duration
	RunTime     time.Duration
	Expected    int
	Done        bool
	LastLatency time.Duration
}

// Fraction estimates completion between 0 and 1
func (p Progress) Fraction() float64 {
	if p.Done {
		return 1
	}
	var f float64
	switch {
	case p.RunTime > 0 && p.Expected > 0:
		f = max(p.Elapsed.Seconds()/p.RunTime.Seconds(), float64(p.Completed)/float64(p.Expected))
	case p.RunTime > 0:
		f = p.Elapsed.Seconds() / p.RunTime.Seconds()
	case p.Expected > 0:
		f = float64(p.Completed) / float64(p.Expected)
	}
	return min(f, 1)
}

// Driver simulates concurrent users sending the same chat-completion request
type Driver struct {
	cfg     Config
	task    Task
	call    *executor.Call
	expect  *expect.Expectation
	doer    Doer
	logger  *zap.Logger
	metrics *Metrics
	limiter *rate.Limiter
	target  string

	// live counters, display only
	startedAt   atomic.Int64
	started     atomic.Int32
	active      atomic.Int32
	completed   atomic.Int64
	failed      atomic.Int64
	dropped     atomic.Int64
	lastLatency atomic.Int64
	done        atomic.Bool
}

// NewDriver validates the configuration and renders the task request
func NewDriver(cfg Config, doer Doer, task Task, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}
	if task.Model == "" {
		task.Model = config.DefaultModel
	}
	if task.Endpoint == "" {
		task.Endpoint = config.DefaultEndpoint
	}

	call, err := task.Request.Build(task.Model)
	if err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}
	call.Path = task.Endpoint

	d := &Driver{
		cfg:    cfg,
		task:   task,
		call:   call,
		expect: task.expectation(),
		doer:   doer,
		logger: zap.NewNop(),
	}
	if cfg.MaxRPS > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), max(1, int(cfg.MaxRPS)))
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the validated configuration
func (d *Driver) Config() Config {
	return d.cfg
}

// Progress returns the live counters
func (d *Driver) Progress() Progress {
	p := Progress{
		Users:       d.cfg.Users,
		Started:     int(d.started.Load()),
		Active:      int(d.active.Load()),
		Completed:   d.completed.Load(),
		Failed:      d.failed.Load(),
		RunTime:     d.cfg.RunTime,
		Expected:    d.cfg.ExpectedRequests(),
		Done:        d.done.Load(),
		LastLatency: time.Duration(d.lastLatency.Load()) * time.Millisecond,
	}
	if start := d.startedAt.Load(); start > 0 {
		p.Elapsed = time.Since(time.Unix(0, start))
	}
	return p
}

// Run starts the users, waits for all of them and returns the summary. The
// run ends at the run time, when every user sent its request count, or when
// ctx is cancelled. Requests cut off by the end of the run are dropped.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	if !d.startedAt.CompareAndSwap(0, time.Now().UnixNano()) {
		return nil, fmt.Errorf("driver already ran")
	}
	defer d.done.Store(true)

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if d.cfg.RunTime > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d.cfg.RunTime)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	summary := &Summary{
		RunID:           uuid.NewString(),
		Name:            d.cfg.Name,
		Status:          StatusCompleted,
		Target:          d.target,
		Model:           d.task.Model,
		Users:           d.cfg.Users,
		SpawnRate:       d.cfg.SpawnRate,
		RunTimeMs:       d.cfg.RunTime.Milliseconds(),
		RequestsPerUser: d.cfg.RequestsPerUser,
		StartedAt:       time.Unix(0, d.startedAt.Load()),
	}

	d.logger.Info("starting load test",
		zap.String("run_id", summary.RunID),
		zap.String("target", d.target),
		zap.String("model", d.task.Model),
		zap.Int("users", d.cfg.Users),
		zap.Float64("spawn_rate", d.cfg.SpawnRate),
		zap.Duration("run_time", d.cfg.RunTime),
		zap.Int("requests_per_user", d.cfg.RequestsPerUser),
		zap.Float64("max_rps", d.cfg.MaxRPS),
	)

	perUser := make([][]Sample, d.cfg.Users)
	g, gctx := errgroup.WithContext(runCtx)
	interval := d.cfg.SpawnInterval()

spawn:
	for i := 0; i < d.cfg.Users; i++ {
		if i > 0 && interval > 0 {
			if err := sleep(gctx, interval); err != nil {
				break spawn
			}
		} else if gctx.Err() != nil {
			break spawn
		}
		user := i
		d.started.Add(1)
		g.Go(func() error {
			perUser[user] = d.runUser(gctx, user)
			return nil
		})
	}

	_ = g.Wait()
	summary.FinishedAt = time.Now()
	if ctx.Err() != nil {
		summary.Status = StatusCancelled
	}

	summarize(summary, perUser)
	summary.Dropped = int(d.dropped.Load())

	d.logger.Info("load test finished",
		zap.String("run_id", summary.RunID),
		zap.String("status", summary.Status),
		zap.Int("requests", summary.TotalRequests),
		zap.Int("successes", summary.Successes),
		zap.Int("network_errors", summary.NetworkErrors),
		zap.Int("validation_errors", summary.ValidationErrors),
		zap.Int("dropped", summary.Dropped),
		zap.Float64("error_rate", summary.ErrorRate),
		zap.Float64("rps", summary.RequestsPerSec),
		zap.Int64("p95_ms", summary.Latency.P95Ms),
	)
	return summary, nil
}

// runUser loops until the request count is reached or ctx ends. Samples stay
// local to the user until Run merges them.
func (d *Driver) runUser(ctx context.Context, user int) []Sample {
	d.active.Add(1)
	d.metrics.UserStarted()
	defer func() {
		d.active.Add(-1)
		d.metrics.UserStopped()
	}()

	runStart := time.Unix(0, d.startedAt.Load())
	var samples []Sample

	for seq := 0; d.cfg.RequestsPerUser == 0 || seq < d.cfg.RequestsPerUser; seq++ {
		if ctx.Err() != nil {
			return samples
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return samples
			}
		}

		begin := time.Now()
		res := d.send(ctx)
		if ctx.Err() != nil && res.Error != "" {
			// Lost to the end of the run, not a failure of the service
			d.dropped.Add(1)
			return samples
		}

		sample := d.record(user, seq, begin.Sub(runStart), res)
		samples = append(samples, sample)

		if d.cfg.RequestsPerUser > 0 && seq == d.cfg.RequestsPerUser-1 {
			break
		}
		if err := sleep(ctx, d.wait()); err != nil {
			return samples
		}
	}
	return samples
}

func (d *Driver) send(ctx context.Context) *types.RequestResult {
	if d.cfg.RequestTimeout <= 0 {
		return d.doer.Do(ctx, d.call)
	}
	reqCtx, cancel := context.WithTimeout(ctx, d.cfg.RequestTimeout)
	defer cancel()
	return d.doer.Do(reqCtx, d.call)
}

func (d *Driver) record(user, seq int, offset time.Duration, res *types.RequestResult) Sample {
	sample := Sample{
		User:          user,
		Seq:           seq,
		StartOffsetMs: offset.Milliseconds(),
		LatencyMs:     res.Duration,
		Status:        res.Status,
		RequestSize:   res.RequestSize,
		ResponseSize:  res.ResponseSize,
	}

	outcome := OutcomeSuccess
	if res.Error != "" {
		sample.NetworkError = res.Error
		sample.Category, _ = expect.Categorize(res.Error)
		outcome = OutcomeNetwork
	} else if failures := d.expect.Check(res); len(failures) > 0 {
		sample.ValidationError = strings.Join(failures, "; ")
		if d.expect.StatusMatches(res.Status) {
			sample.Category = expect.CategoryValidation
		} else {
			sample.Category = expect.StatusCategory(res.Status)
		}
		outcome = OutcomeValidation
	} else {
		sample.Success = true
	}

	d.completed.Add(1)
	if !sample.Success {
		d.failed.Add(1)
		d.logger.Debug("request failed",
			zap.Int("user", user),
			zap.Int("seq", seq),
			zap.Int("status", res.Status),
			zap.String("category", sample.Category),
		)
	}
	d.lastLatency.Store(res.Duration)
	d.metrics.RecordRequest(outcome, time.Duration(res.Duration)*time.Millisecond)
	return sample
}

// wait draws the pause between two requests of one user
func (d *Driver) wait() time.Duration {
	if d.cfg.WaitMax <= d.cfg.WaitMin {
		return d.cfg.WaitMin
	}
	return d.cfg.WaitMin + rand.N(d.cfg.WaitMax-d.cfg.WaitMin)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
