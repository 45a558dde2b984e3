package sanity

import (
	"time"

	"github.com/google/uuid"
	"github.com/studiowebux/chatbench/internal/fixture"
)

// Result is the outcome of one scenario for one model
type Result struct {
	ID          string       `json:"id" yaml:"id"`
	Scenario    string       `json:"scenario" yaml:"scenario"`
	Kind        fixture.Kind `json:"kind" yaml:"kind"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Model       string       `json:"model" yaml:"model"`
	Passed      bool         `json:"passed" yaml:"passed"`
	Status      int          `json:"status" yaml:"status"`
	LatencyMs   int64        `json:"latency_ms" yaml:"latency_ms"`
	Failures    []string     `json:"failures,omitempty" yaml:"failures,omitempty"`
	Request     string       `json:"request,omitempty" yaml:"request,omitempty"`
	Response    string       `json:"response,omitempty" yaml:"response,omitempty"`
	StartedAt   time.Time    `json:"started_at" yaml:"started_at"`
}

// Counts tallies results
type Counts struct {
	Total  int `json:"total" yaml:"total"`
	Passed int `json:"passed" yaml:"passed"`
	Failed int `json:"failed" yaml:"failed"`
}

func (c *Counts) add(passed bool) {
	c.Total++
	if passed {
		c.Passed++
	} else {
		c.Failed++
	}
}

// Summary aggregates a sanity run
type Summary struct {
	RunID      string                  `json:"run_id" yaml:"run_id"`
	Target     string                  `json:"target" yaml:"target"`
	Models     []string                `json:"models" yaml:"models"`
	StartedAt  time.Time               `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time               `json:"finished_at" yaml:"finished_at"`
	Cancelled  bool                    `json:"cancelled" yaml:"cancelled"`
	Counts     Counts                  `json:"counts" yaml:"counts"`
	ByKind     map[fixture.Kind]Counts `json:"by_kind" yaml:"by_kind"`
	Results    []Result                `json:"results" yaml:"results"`
}

func newSummary(target string, models []string) *Summary {
	return &Summary{
		RunID:     uuid.NewString(),
		Target:    target,
		Models:    models,
		StartedAt: time.Now(),
		ByKind:    make(map[fixture.Kind]Counts),
		Results:   []Result{},
	}
}

func (s *Summary) add(res Result) {
	s.Results = append(s.Results, res)
	s.Counts.add(res.Passed)
	kc := s.ByKind[res.Kind]
	kc.add(res.Passed)
	s.ByKind[res.Kind] = kc
}

// Failed reports whether any scenario failed or the run was cut short
func (s *Summary) Failed() bool {
	return s.Counts.Failed > 0 || s.Cancelled
}

// Duration is the wall-clock time of the run
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// FailedResults returns the failed results in execution order
func (s *Summary) FailedResults() []Result {
	var failed []Result
	for _, res := range s.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}
