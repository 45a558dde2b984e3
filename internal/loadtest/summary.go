package loadtest

import (
	"sort"
	"time"
)

// Sample is the record of one request sent by a simulated user
type Sample struct {
	User            int    `json:"user" yaml:"user"`
	Seq             int    `json:"seq" yaml:"seq"`
	StartOffsetMs   int64  `json:"start_offset_ms" yaml:"start_offset_ms"`
	LatencyMs       int64  `json:"latency_ms" yaml:"latency_ms"`
	Status          int    `json:"status" yaml:"status"`
	RequestSize     int    `json:"request_size" yaml:"request_size"`
	ResponseSize    int    `json:"response_size" yaml:"response_size"`
	Success         bool   `json:"success" yaml:"success"`
	NetworkError    string `json:"network_error,omitempty" yaml:"network_error,omitempty"`
	ValidationError string `json:"validation_error,omitempty" yaml:"validation_error,omitempty"`
	Category        string `json:"category,omitempty" yaml:"category,omitempty"`
}

// Latency holds latency statistics in milliseconds
type Latency struct {
	MinMs int64   `json:"min_ms" yaml:"min_ms"`
	AvgMs float64 `json:"avg_ms" yaml:"avg_ms"`
	MaxMs int64   `json:"max_ms" yaml:"max_ms"`
	P50Ms int64   `json:"p50_ms" yaml:"p50_ms"`
	P90Ms int64   `json:"p90_ms" yaml:"p90_ms"`
	P95Ms int64   `json:"p95_ms" yaml:"p95_ms"`
	P99Ms int64   `json:"p99_ms" yaml:"p99_ms"`
}

// UserStats counts the requests of one simulated user
type UserStats struct {
	User     int `json:"user" yaml:"user"`
	Requests int `json:"requests" yaml:"requests"`
	Failures int `json:"failures" yaml:"failures"`
}

// Summary aggregates a load test run
type Summary struct {
	RunID            string         `json:"run_id" yaml:"run_id"`
	Name             string         `json:"name" yaml:"name"`
	Status           string         `json:"status" yaml:"status"`
	Target           string         `json:"target" yaml:"target"`
	Model            string         `json:"model" yaml:"model"`
	Users            int            `json:"users" yaml:"users"`
	SpawnRate        float64        `json:"spawn_rate" yaml:"spawn_rate"`
	RunTimeMs        int64          `json:"run_time_ms" yaml:"run_time_ms"` // 0 when bounded by request count
	RequestsPerUser  int            `json:"requests_per_user" yaml:"requests_per_user"`
	StartedAt        time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt       time.Time      `json:"finished_at" yaml:"finished_at"`
	TotalRequests    int            `json:"total_requests" yaml:"total_requests"`
	Successes        int            `json:"successes" yaml:"successes"`
	NetworkErrors    int            `json:"network_errors" yaml:"network_errors"`
	ValidationErrors int            `json:"validation_errors" yaml:"validation_errors"`
	Dropped          int            `json:"dropped" yaml:"dropped"` // in flight at the deadline
	ErrorRate        float64        `json:"error_rate" yaml:"error_rate"`
	RequestsPerSec   float64        `json:"requests_per_sec" yaml:"requests_per_sec"`
	Latency          Latency        `json:"latency" yaml:"latency"`
	StatusCodes      map[int]int    `json:"status_codes" yaml:"status_codes"`
	ErrorCategories  map[string]int `json:"error_categories" yaml:"error_categories"`
	PerUser          []UserStats    `json:"per_user" yaml:"per_user"`
	Samples          []Sample       `json:"samples" yaml:"samples"`
}

// Duration is the wall-clock time of the run
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Failed reports whether any request failed
func (s *Summary) Failed() bool {
	return s.NetworkErrors+s.ValidationErrors > 0
}

// StatusCodeList returns the observed status codes in ascending order
func (s *Summary) StatusCodeList() []int {
	codes := make([]int, 0, len(s.StatusCodes))
	for code := range s.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// summarize merges the per-user samples once every user has returned
func summarize(summary *Summary, perUser [][]Sample) {
	stats := NewStats()
	summary.PerUser = make([]UserStats, 0, len(perUser))
	summary.Samples = make([]Sample, 0)

	for user, samples := range perUser {
		us := UserStats{User: user}
		for _, sample := range samples {
			stats.Add(sample)
			us.Requests++
			if !sample.Success {
				us.Failures++
			}
		}
		summary.PerUser = append(summary.PerUser, us)
		summary.Samples = append(summary.Samples, samples...)
	}

	// Chronological order for reports
	sort.SliceStable(summary.Samples, func(i, j int) bool {
		return summary.Samples[i].StartOffsetMs < summary.Samples[j].StartOffsetMs
	})

	summary.TotalRequests = stats.Requests
	summary.Successes = stats.Successes
	summary.NetworkErrors = stats.NetworkErrors
	summary.ValidationErrors = stats.ValidationErrors
	summary.StatusCodes = stats.StatusCodes
	summary.ErrorCategories = stats.Categories
	summary.ErrorRate = stats.ErrorRate()
	summary.Latency = stats.Latency()
	if secs := summary.Duration().Seconds(); secs > 0 {
		summary.RequestsPerSec = float64(summary.TotalRequests) / secs
	}
}
