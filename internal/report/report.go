// Package report renders sanity and load summaries into report artifacts.
package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/studiowebux/chatbench/internal/config"
	"github.com/studiowebux/chatbench/internal/loadtest"
	"github.com/studiowebux/chatbench/internal/sanity"
)

// Kind is the type of run a report describes
type Kind string

const (
	KindSanity Kind = "sanity"
	KindLoad   Kind = "load"
)

// Report wraps exactly one summary
type Report struct {
	ID          string            `json:"id" yaml:"id"`
	Kind        Kind              `json:"kind" yaml:"kind"`
	Title       string            `json:"title" yaml:"title"`
	Target      string            `json:"target" yaml:"target"`
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	Passed      bool              `json:"passed" yaml:"passed"`
	Sanity      *sanity.Summary   `json:"sanity,omitempty" yaml:"sanity,omitempty"`
	Load        *loadtest.Summary `json:"load,omitempty" yaml:"load,omitempty"`
}

// Emitter writes a report somewhere
type Emitter interface {
	Emit(r *Report) error
}

// NewSanityReport wraps a sanity summary. The report id and timestamp come
// from the run so that emitting it twice gives the same artifact.
func NewSanityReport(s *sanity.Summary) *Report {
	return &Report{
		ID:          s.RunID,
		Kind:        KindSanity,
		Title:       "Mistral API Sanity Report",
		Target:      s.Target,
		GeneratedAt: s.FinishedAt,
		Passed:      !s.Failed(),
		Sanity:      s,
	}
}

// NewLoadReport wraps a load test summary
func NewLoadReport(s *loadtest.Summary) *Report {
	title := "Mistral API Load Test Report"
	if s.Name != "" {
		title += ": " + s.Name
	}
	return &Report{
		ID:          s.RunID,
		Kind:        KindLoad,
		Title:       title,
		Target:      s.Target,
		GeneratedAt: s.FinishedAt,
		Passed:      !s.Failed(),
		Load:        s,
	}
}

// Validate checks that the report carries the summary its kind names
func (r *Report) Validate() error {
	switch r.Kind {
	case KindSanity:
		if r.Sanity == nil || r.Load != nil {
			return fmt.Errorf("sanity report must carry only a sanity summary")
		}
	case KindLoad:
		if r.Load == nil || r.Sanity != nil {
			return fmt.Errorf("load report must carry only a load summary")
		}
	default:
		return fmt.Errorf("unknown report kind %q", r.Kind)
	}
	if r.ID == "" {
		return fmt.Errorf("report id is required")
	}
	return nil
}

// ForPath picks an emitter from the file extension
func ForPath(path string) (Emitter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return &HTMLEmitter{Path: path}, nil
	case ".json":
		return &JSONEmitter{Path: path}, nil
	case ".yaml", ".yml":
		return &YAMLEmitter{Path: path}, nil
	case ".db", ".sqlite", ".sqlite3":
		return &SQLiteEmitter{Path: path}, nil
	default:
		return nil, fmt.Errorf("unsupported report format %q (expected .html, .json, .yaml, .db)", filepath.Ext(path))
	}
}

// EmitAll writes the report with every emitter and returns the first error
func EmitAll(r *Report, emitters ...Emitter) error {
	for _, e := range emitters {
		if err := e.Emit(r); err != nil {
			return err
		}
	}
	return nil
}

// prepare validates the report and creates the parent directory of path
func prepare(r *Report, path string) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("report path is required")
	}
	return config.EnsureParentDir(path)
}
