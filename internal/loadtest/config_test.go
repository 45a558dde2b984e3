package loadtest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/studiowebux/chatbench/internal/executor"
)

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()
	if err := valid.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero users", func(c *Config) { c.Users = 0 }},
		{"too many users", func(c *Config) { c.Users = MaxUsers + 1 }},
		{"negative spawn rate", func(c *Config) { c.SpawnRate = -1 }},
		{"negative run time", func(c *Config) { c.RunTime = -time.Second }},
		{"negative requests", func(c *Config) { c.RequestsPerUser = -1 }},
		{"unbounded", func(c *Config) { c.RunTime = 0; c.RequestsPerUser = 0 }},
		{"inverted wait", func(c *Config) { c.WaitMin = 5 * time.Second; c.WaitMax = time.Second }},
		{"negative wait", func(c *Config) { c.WaitMin = -time.Second }},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }},
		{"negative rps", func(c *Config) { c.MaxRPS = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}

func TestConfig_SpawnInterval(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.SpawnInterval(); got != 500*time.Millisecond {
		t.Errorf("Expected 500ms between users at spawn rate 2, got %v", got)
	}
	cfg.SpawnRate = 0
	if got := cfg.SpawnInterval(); got != 0 {
		t.Errorf("Expected no interval at spawn rate 0, got %v", got)
	}
}

func TestStats_Percentiles(t *testing.T) {
	stats := NewStats()
	// Added out of order on purpose
	for i := int64(100); i >= 1; i-- {
		stats.Add(Sample{LatencyMs: i, Status: 200, Success: true})
	}

	lat := stats.Latency()
	if lat.MinMs != 1 || lat.MaxMs != 100 {
		t.Errorf("Unexpected min/max: %+v", lat)
	}
	if lat.AvgMs != 50.5 {
		t.Errorf("Expected avg 50.5, got %f", lat.AvgMs)
	}
	// index 0.5*99 = 49.5 -> between 50 and 51
	if lat.P50Ms != 50 {
		t.Errorf("Expected p50 50, got %d", lat.P50Ms)
	}
	if lat.P90Ms != 90 || lat.P95Ms != 95 || lat.P99Ms != 99 {
		t.Errorf("Unexpected percentiles: %+v", lat)
	}
}

func TestStats_Empty(t *testing.T) {
	stats := NewStats()
	if lat := stats.Latency(); lat != (Latency{}) {
		t.Errorf("Expected zero latency for no results, got %+v", lat)
	}
	if stats.ErrorRate() != 0 {
		t.Error("Expected zero error rate for no results")
	}
}

func TestStats_ErrorRate(t *testing.T) {
	stats := NewStats()
	stats.Add(Sample{LatencyMs: 10, NetworkError: "dial tcp: connection refused", Category: "connection_refused"})
	stats.Add(Sample{LatencyMs: 10, Status: 500, ValidationError: "unexpected status 500", Category: "server_error"})
	stats.Add(Sample{LatencyMs: 10, Status: 200, Success: true})
	stats.Add(Sample{LatencyMs: 10, Status: 200, Success: true})

	if stats.NetworkErrors != 1 || stats.ValidationErrors != 1 || stats.Successes != 2 {
		t.Errorf("Unexpected counts: %+v", stats)
	}
	if stats.StatusCodes[200] != 2 || stats.StatusCodes[500] != 1 || len(stats.StatusCodes) != 2 {
		t.Errorf("Unexpected status codes: %v", stats.StatusCodes)
	}
	if stats.Categories["connection_refused"] != 1 || stats.Categories["server_error"] != 1 {
		t.Errorf("Unexpected categories: %v", stats.Categories)
	}
	if stats.ErrorRate() != 0.5 {
		t.Errorf("Expected error rate 0.5, got %f", stats.ErrorRate())
	}
}

func TestProgress_Fraction(t *testing.T) {
	tests := []struct {
		name string
		p    Progress
		want float64
	}{
		{"done", Progress{Done: true}, 1},
		{"time based", Progress{Elapsed: 15 * time.Second, RunTime: time.Minute}, 0.25},
		{"count based", Progress{Completed: 5, Expected: 20}, 0.25},
		{"both, furthest wins", Progress{Elapsed: 15 * time.Second, RunTime: time.Minute, Completed: 10, Expected: 20}, 0.5},
		{"overrun is capped", Progress{Elapsed: 2 * time.Minute, RunTime: time.Minute}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Fraction(); got != tt.want {
				t.Errorf("Expected %f, got %f", tt.want, got)
			}
		})
	}
}

const profileYAML = `
name: smoke
users: 5
spawn_rate: 1
run_time: 30s
wait_min: 1s
wait_max: 2s
max_rps: 3
task:
  model: mistral-small-latest
  request:
    auth: invalid
    messages:
      - role: user
        content: Hello
  expect:
    status: 401
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "load.yaml")
	if err := os.WriteFile(path, []byte(profileYAML), 0644); err != nil {
		t.Fatal(err)
	}

	profile, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if profile.Name != "smoke" || profile.Users != 5 || profile.SpawnRate != 1 {
		t.Errorf("Unexpected config: %+v", profile.Config)
	}
	if profile.RunTime != 30*time.Second || profile.WaitMin != time.Second || profile.WaitMax != 2*time.Second {
		t.Errorf("Unexpected durations: %+v", profile.Config)
	}
	if profile.MaxRPS != 3 {
		t.Errorf("Expected max_rps 3, got %f", profile.MaxRPS)
	}
	// Not in the file, keeps the default
	if profile.RequestTimeout != DefaultConfig().RequestTimeout {
		t.Errorf("Expected default request timeout, got %v", profile.RequestTimeout)
	}
	if profile.Task == nil {
		t.Fatal("Expected a task")
	}
	if profile.Task.Model != "mistral-small-latest" || profile.Task.Request.Auth != executor.AuthInvalid {
		t.Errorf("Unexpected task: %+v", profile.Task)
	}
	if profile.Task.Expect == nil || profile.Task.Expect.Status != 401 {
		t.Errorf("Unexpected expectation: %+v", profile.Task.Expect)
	}
}

func TestParseProfile_Defaults(t *testing.T) {
	profile, err := ParseProfile([]byte("users: 2\n"))
	if err != nil {
		t.Fatalf("ParseProfile failed: %v", err)
	}
	if profile.RunTime != DefaultRunTime || profile.SpawnRate != DefaultSpawnRate {
		t.Errorf("Expected defaults, got %+v", profile.Config)
	}
	if profile.Task != nil {
		t.Error("Expected no task")
	}
	if exp := (&Task{}).expectation(); exp.Status != 200 {
		t.Errorf("Expected default expectation of status 200, got %+v", exp)
	}
}

func TestParseProfile_Errors(t *testing.T) {
	docs := map[string]string{
		"unknown field": "userz: 2\n",
		"invalid users": "users: 0\n",
		"bad task":      "task:\n  request:\n    auth: maybe\n",
		"not yaml":      "users: [",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseProfile([]byte(doc)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}
