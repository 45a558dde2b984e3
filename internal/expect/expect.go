// Package expect checks chat-completion responses against expected outcomes.
package expect

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/studiowebux/chatbench/internal/filter"
	"github.com/studiowebux/chatbench/internal/types"
)

// Status classes accepted by Expectation.StatusClass
const (
	Class2xx = "2xx"
	Class4xx = "4xx"
	Class5xx = "5xx"
)

// Expectation is the expected outcome of one request fixture. Every set
// predicate must hold; unset predicates are ignored. With neither Status nor
// StatusClass set, a 2xx status is expected.
type Expectation struct {
	Status          int               `yaml:"status,omitempty"`
	StatusClass     string            `yaml:"status_class,omitempty"`
	Schema          string            `yaml:"schema,omitempty"`
	ContentNotEmpty bool              `yaml:"content_not_empty,omitempty"`
	ContentContains []string          `yaml:"content_contains,omitempty"`
	ContentJSON     bool              `yaml:"content_json,omitempty"`
	NoContent       bool              `yaml:"no_content,omitempty"`
	MessageContains string            `yaml:"message_contains,omitempty"`
	Fields          map[string]string `yaml:"fields,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	MaxLatency      time.Duration     `yaml:"max_latency,omitempty"`
}

// StatusOK is the load-test default: HTTP 200 and nothing else
func StatusOK() *Expectation {
	return &Expectation{Status: 200}
}

// Validate checks that the expectation itself is well formed
func (e *Expectation) Validate() error {
	switch e.StatusClass {
	case "", Class2xx, Class4xx, Class5xx:
	default:
		return fmt.Errorf("invalid status class %q (expected 2xx, 4xx or 5xx)", e.StatusClass)
	}
	if e.Status != 0 && (e.Status < 100 || e.Status > 599) {
		return fmt.Errorf("invalid status code %d", e.Status)
	}
	if e.Status != 0 && e.StatusClass != "" && statusClass(e.Status) != e.StatusClass {
		return fmt.Errorf("status %d contradicts status class %s", e.Status, e.StatusClass)
	}
	if e.NoContent && (e.ContentNotEmpty || len(e.ContentContains) > 0 || e.ContentJSON) {
		return fmt.Errorf("no_content cannot be combined with content predicates")
	}
	if e.MaxLatency < 0 {
		return fmt.Errorf("max latency cannot be negative")
	}
	if e.Schema != "" {
		if _, err := compiledSchema(e.Schema); err != nil {
			return err
		}
	}
	for expr, expected := range e.Fields {
		if !filter.IsValidJMESPath(expr) {
			return fmt.Errorf("invalid field expression %q", expr)
		}
		if len(expected) >= 2 && strings.HasPrefix(expected, "/") && strings.HasSuffix(expected, "/") {
			if _, err := regexp.Compile(expected[1 : len(expected)-1]); err != nil {
				return fmt.Errorf("invalid pattern for field %q: %w", expr, err)
			}
		}
	}
	return nil
}

// Check evaluates the expectation and returns every failed predicate. An
// empty result means the response passed.
func (e *Expectation) Check(res *types.RequestResult) []string {
	if res == nil {
		return []string{"no result"}
	}
	if !res.HasResponse() {
		_, msg := Categorize(res.Error)
		return []string{msg}
	}

	var failures []string
	if res.Error != "" {
		failures = append(failures, res.Error)
	}
	if res.Truncated {
		failures = append(failures, fmt.Sprintf("response body truncated at %d bytes", res.ResponseSize))
	}

	if !e.StatusMatches(res.Status) {
		failures = append(failures, fmt.Sprintf("unexpected status %d (expected %s)", res.Status, e.expectedStatus()))
	}

	if e.MaxLatency > 0 && time.Duration(res.Duration)*time.Millisecond > e.MaxLatency {
		failures = append(failures, fmt.Sprintf("response time %dms exceeds %s", res.Duration, e.MaxLatency))
	}

	for name, want := range e.Headers {
		got := res.Header(name)
		if !strings.Contains(strings.ToLower(got), strings.ToLower(want)) {
			failures = append(failures, fmt.Sprintf("header %s is %q, expected it to contain %q", name, got, want))
		}
	}

	if e.Schema != "" {
		if err := ValidateSchema(e.Schema, res); err != nil {
			failures = append(failures, err.Error())
		}
	}

	failures = append(failures, e.checkContent(res)...)

	if e.MessageContains != "" {
		msg := ErrorMessage(res.Body)
		if !strings.Contains(msg, e.MessageContains) {
			if msg == "" {
				msg = "no message in response"
			}
			failures = append(failures, fmt.Sprintf("error message %q does not contain %q", shorten(msg, 200), e.MessageContains))
		}
	}

	failures = append(failures, e.checkFields(res)...)

	return failures
}

// StatusMatches reports whether a status code satisfies the expectation
func (e *Expectation) StatusMatches(status int) bool {
	switch {
	case e.Status != 0:
		return status == e.Status
	case e.StatusClass != "":
		return statusClass(status) == e.StatusClass
	}
	return statusClass(status) == Class2xx
}

func (e *Expectation) expectedStatus() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%d", e.Status)
	case e.StatusClass != "":
		return e.StatusClass
	}
	return Class2xx
}

func (e *Expectation) checkContent(res *types.RequestResult) []string {
	if !e.ContentNotEmpty && len(e.ContentContains) == 0 && !e.ContentJSON && !e.NoContent {
		return nil
	}

	var failures []string
	content, present := ExtractContent(res)
	trimmed := strings.TrimSpace(content)

	if e.NoContent {
		if present && trimmed != "" {
			failures = append(failures, fmt.Sprintf("expected no generated content, got %q", shorten(trimmed, 80)))
		}
		return failures
	}

	if !present {
		return append(failures, "response has no generated content")
	}
	if e.ContentNotEmpty && trimmed == "" {
		failures = append(failures, "generated content is empty")
	}
	for _, want := range e.ContentContains {
		if !strings.Contains(content, want) {
			failures = append(failures, fmt.Sprintf("content does not contain %q", want))
		}
	}
	if e.ContentJSON && !json.Valid([]byte(stripCodeFence(trimmed))) {
		failures = append(failures, "content is not valid JSON")
	}
	return failures
}

func (e *Expectation) checkFields(res *types.RequestResult) []string {
	if len(e.Fields) == 0 {
		return nil
	}

	var failures []string
	for expr, expected := range e.Fields {
		value, err := filter.Search(res.Body, expr)
		if err != nil {
			failures = append(failures, fmt.Sprintf("field %s: %v", expr, err))
			continue
		}
		if value == nil {
			failures = append(failures, fmt.Sprintf("expected field '%s' not found in response", expr))
			continue
		}
		if ok, msg := filter.Match(filter.Stringify(value), expected); !ok {
			failures = append(failures, fmt.Sprintf("field '%s': %s", expr, msg))
		}
	}
	return failures
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return Class2xx
	case status >= 400 && status < 500:
		return Class4xx
	case status >= 500 && status < 600:
		return Class5xx
	}
	return fmt.Sprintf("%d", status)
}

// stripCodeFence removes a surrounding ``` fence, which models often add
// around JSON answers
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func shorten(text string, limit int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
