package loadtest

import (
	"slices"
)

// Stats folds samples into the totals of a Summary. It is not safe for
// concurrent use; the driver feeds it after every user has returned.
type Stats struct {
	Requests         int
	Successes        int
	NetworkErrors    int // timeouts, refused connections
	ValidationErrors int // unexpected status or body
	StatusCodes      map[int]int
	Categories       map[string]int

	latencies []int64
	totalMs   int64
	sorted    bool
}

// NewStats creates an empty Stats
func NewStats() *Stats {
	return &Stats{
		StatusCodes: make(map[int]int),
		Categories:  make(map[string]int),
		latencies:   make([]int64, 0, 256),
	}
}

// Add records one sample. A network error wins over a validation error.
func (s *Stats) Add(sample Sample) {
	s.Requests++
	s.totalMs += sample.LatencyMs
	s.latencies = append(s.latencies, sample.LatencyMs)
	s.sorted = false

	switch {
	case sample.NetworkError != "":
		s.NetworkErrors++
	case sample.ValidationError != "":
		s.ValidationErrors++
	default:
		s.Successes++
	}
	if sample.Status != 0 {
		s.StatusCodes[sample.Status]++
	}
	if sample.Category != "" {
		s.Categories[sample.Category]++
	}
}

// Percentile returns the p-th percentile (0..100) latency in milliseconds,
// interpolating linearly between the two closest ranks
func (s *Stats) Percentile(p float64) int64 {
	n := len(s.latencies)
	if n == 0 {
		return 0
	}
	if !s.sorted {
		slices.Sort(s.latencies)
		s.sorted = true
	}

	rank := p / 100 * float64(n-1)
	lower := int(rank)
	if lower+1 >= n {
		return s.latencies[n-1]
	}
	weight := rank - float64(lower)
	return int64(float64(s.latencies[lower])*(1-weight) + float64(s.latencies[lower+1])*weight)
}

// Latency summarizes the recorded latencies
func (s *Stats) Latency() Latency {
	if s.Requests == 0 {
		return Latency{}
	}
	return Latency{
		MinMs: s.Percentile(0),
		AvgMs: float64(s.totalMs) / float64(s.Requests),
		MaxMs: s.Percentile(100),
		P50Ms: s.Percentile(50),
		P90Ms: s.Percentile(90),
		P95Ms: s.Percentile(95),
		P99Ms: s.Percentile(99),
	}
}

// ErrorRate is the share of failed requests, between 0 and 1
func (s *Stats) ErrorRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.NetworkErrors+s.ValidationErrors) / float64(s.Requests)
}
