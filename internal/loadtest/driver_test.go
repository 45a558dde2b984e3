package loadtest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/studiowebux/chatbench/internal/executor"
	"github.com/studiowebux/chatbench/internal/expect"
	"github.com/studiowebux/chatbench/internal/fixture"
)

const okBody = `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`

func createTestClient(t *testing.T, url string) *executor.Client {
	t.Helper()
	client, err := executor.New(executor.Options{BaseURL: url, Token: "test", MaxConns: 10})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func fastConfig(users, requests int) Config {
	return Config{
		Name:            "test",
		Users:           users,
		RequestsPerUser: requests,
		WaitMin:         time.Millisecond,
		WaitMax:         5 * time.Millisecond,
	}
}

// TestDriver_SampleCountMatchesUsersTimesRequests tests the no-cutoff invariant
func TestDriver_SampleCountMatchesUsersTimesRequests(t *testing.T) {
	var requestCount int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requestCount, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(okBody))
	}))
	defer server.Close()

	driver, err := NewDriver(fastConfig(5, 4), createTestClient(t, server.URL), DefaultTask("mistral-small"))
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(summary.Samples) != 20 {
		t.Errorf("Expected 20 samples, got %d", len(summary.Samples))
	}
	if summary.TotalRequests != 20 || atomic.LoadInt64(&requestCount) != 20 {
		t.Errorf("Expected 20 requests, got %d (server saw %d)", summary.TotalRequests, requestCount)
	}
	if summary.Successes != 20 {
		t.Errorf("Expected 20 successes, got %d", summary.Successes)
	}
	if summary.ErrorRate != 0 {
		t.Errorf("Expected error rate 0, got %f", summary.ErrorRate)
	}
	if summary.Status != StatusCompleted {
		t.Errorf("Expected status completed, got %s", summary.Status)
	}
	if summary.StatusCodes[200] != 20 {
		t.Errorf("Expected 20 responses with status 200, got %v", summary.StatusCodes)
	}
	if len(summary.PerUser) != 5 {
		t.Fatalf("Expected 5 per-user entries, got %d", len(summary.PerUser))
	}
	for _, us := range summary.PerUser {
		if us.Requests != 4 || us.Failures != 0 {
			t.Errorf("User %d: expected 4 requests and no failures, got %+v", us.User, us)
		}
	}
	if summary.RunID == "" {
		t.Error("Expected a run id")
	}
	for i := 1; i < len(summary.Samples); i++ {
		if summary.Samples[i].StartOffsetMs < summary.Samples[i-1].StartOffsetMs {
			t.Fatal("Samples are not in chronological order")
		}
	}
	if p := driver.Progress(); !p.Done || p.Completed != 20 || p.Fraction() != 1 {
		t.Errorf("Unexpected final progress: %+v", p)
	}
}

// TestDriver_RunTimeCutoff tests that the run stops at the deadline
func TestDriver_RunTimeCutoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := fastConfig(3, 0)
	cfg.RunTime = 300 * time.Millisecond

	driver, err := NewDriver(cfg, createTestClient(t, server.URL), DefaultTask("m"))
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	start := time.Now()
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Errorf("Run should stop near its run time, took %v", elapsed)
	}
	if summary.TotalRequests == 0 {
		t.Error("Expected some requests before the deadline")
	}
	if summary.NetworkErrors != 0 {
		t.Errorf("Requests cut off by the deadline must be dropped, got %d network errors", summary.NetworkErrors)
	}
	if summary.Status != StatusCompleted {
		t.Errorf("Expected status completed, got %s", summary.Status)
	}
	if summary.ErrorRate < 0 || summary.ErrorRate > 1 {
		t.Errorf("Error rate out of range: %f", summary.ErrorRate)
	}
}

// TestDriver_Cancellation tests parent context cancellation
func TestDriver_Cancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := fastConfig(2, 0)
	cfg.RunTime = time.Minute
	cfg.WaitMin = 10 * time.Millisecond
	cfg.WaitMax = 20 * time.Millisecond

	driver, err := NewDriver(cfg, createTestClient(t, server.URL), DefaultTask("m"))
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	summary, err := driver.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Status != StatusCancelled {
		t.Errorf("Expected status cancelled, got %s", summary.Status)
	}
	if summary.Duration() > 5*time.Second {
		t.Errorf("Cancellation took too long: %v", summary.Duration())
	}
}

// TestDriver_ValidationAndStatusErrors tests failure classification
func TestDriver_ValidationAndStatusErrors(t *testing.T) {
	var n int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&n, 1)%2 == 0 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"message":"Requests rate limit exceeded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	task := DefaultTask("m")
	task.Expect = &expect.Expectation{Status: 200, ContentNotEmpty: true}

	driver, err := NewDriver(fastConfig(1, 4), createTestClient(t, server.URL), task)
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.ValidationErrors != 4 {
		t.Errorf("Expected 4 validation errors, got %d", summary.ValidationErrors)
	}
	if summary.ErrorCategories["http_429"] != 2 {
		t.Errorf("Expected 2 http_429 failures, got %v", summary.ErrorCategories)
	}
	if summary.ErrorCategories[expect.CategoryValidation] != 2 {
		t.Errorf("Expected 2 content validation failures, got %v", summary.ErrorCategories)
	}
	if summary.ErrorRate != 1 {
		t.Errorf("Expected error rate 1, got %f", summary.ErrorRate)
	}
	if !summary.Failed() {
		t.Error("Expected a failed summary")
	}
}

// TestDriver_NetworkErrors tests that unreachable services are categorized
func TestDriver_NetworkErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	driver, err := NewDriver(fastConfig(2, 2), createTestClient(t, url), DefaultTask("m"))
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.NetworkErrors != 4 {
		t.Errorf("Expected 4 network errors, got %d", summary.NetworkErrors)
	}
	if summary.ErrorCategories[expect.CategoryRefused] != 4 {
		t.Errorf("Expected connection_refused category, got %v", summary.ErrorCategories)
	}
	if len(summary.StatusCodes) != 0 {
		t.Errorf("Expected no status codes, got %v", summary.StatusCodes)
	}
}

// TestDriver_RequestTimeout tests the per-request timeout
func TestDriver_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	cfg := fastConfig(1, 1)
	cfg.RequestTimeout = 50 * time.Millisecond

	driver, err := NewDriver(cfg, createTestClient(t, server.URL), DefaultTask("m"))
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.NetworkErrors != 1 {
		t.Fatalf("Expected 1 network error, got %d", summary.NetworkErrors)
	}
	if summary.ErrorCategories[expect.CategoryTimeout] != 1 {
		t.Errorf("Expected timeout category, got %v", summary.ErrorCategories)
	}
}

// TestDriver_SpawnRate tests that users start one per interval
func TestDriver_SpawnRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := fastConfig(3, 1)
	cfg.SpawnRate = 10 // one user every 100ms

	driver, err := NewDriver(cfg, createTestClient(t, server.URL), DefaultTask("m"))
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(summary.Samples) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(summary.Samples))
	}
	last := summary.Samples[2]
	if last.User != 2 || last.StartOffsetMs < 190 {
		t.Errorf("Expected the third user to start after ~200ms, got user %d at %dms", last.User, last.StartOffsetMs)
	}
}

// TestDriver_MaxRPS tests the global request-rate cap
func TestDriver_MaxRPS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := fastConfig(4, 3)
	cfg.WaitMin, cfg.WaitMax = 0, 0
	cfg.MaxRPS = 20

	driver, err := NewDriver(cfg, createTestClient(t, server.URL), DefaultTask("m"))
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	start := time.Now()
	summary, err := driver.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 12 requests at 20/s with a burst of 20 can finish at once; at least
	// they must all be sent
	if summary.TotalRequests != 12 {
		t.Errorf("Expected 12 requests, got %d", summary.TotalRequests)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Rate limited run took too long")
	}
}

// TestDriver_Metrics tests Prometheus collectors
func TestDriver_Metrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "chat") {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("Failed to register metrics: %v", err)
	}

	driver, err := NewDriver(fastConfig(2, 3), createTestClient(t, server.URL), DefaultTask("m"), WithMetrics(metrics))
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	if _, err := driver.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := testutil.ToFloat64(metrics.requestsTotal.WithLabelValues(OutcomeSuccess)); got != 6 {
		t.Errorf("Expected 6 successful requests, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.activeUsers); got != 0 {
		t.Errorf("Expected no active users after the run, got %v", got)
	}
	if count := testutil.CollectAndCount(metrics.requestDuration); count != 1 {
		t.Errorf("Expected one histogram, got %d", count)
	}

	if _, err := NewMetrics(reg); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

// TestDriver_RunTwice tests that a driver runs only once
func TestDriver_RunTwice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	driver, err := NewDriver(fastConfig(1, 1), createTestClient(t, server.URL), DefaultTask("m"))
	if err != nil {
		t.Fatalf("Failed to create driver: %v", err)
	}
	if _, err := driver.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := driver.Run(context.Background()); err == nil {
		t.Error("Expected second run to fail")
	}
}

func TestNewDriver_InvalidTask(t *testing.T) {
	task := DefaultTask("unknown-model")
	task.Request = fixture.Request{ExceedTokenLimit: 10}

	if _, err := NewDriver(fastConfig(1, 1), nil, task); err == nil {
		t.Error("Expected an error for an unbuildable task")
	}

	task = DefaultTask("m")
	task.Expect = &expect.Expectation{StatusClass: "1xx"}
	if _, err := NewDriver(fastConfig(1, 1), nil, task); err == nil {
		t.Error("Expected an error for an invalid expectation")
	}
}
