// Package fixture defines chat-completion request fixtures and the scenarios
// that pair them with expected outcomes.
package fixture

import (
	"fmt"
	"strings"
	"time"

	"github.com/studiowebux/chatbench/internal/executor"
	"github.com/studiowebux/chatbench/internal/expect"
)

// Kind groups scenarios the way the suite reports them
type Kind string

const (
	KindPositive Kind = "positive"
	KindEdge     Kind = "edge"
	KindNegative Kind = "negative"
)

// Kinds lists every scenario kind in report order
var Kinds = []Kind{KindPositive, KindEdge, KindNegative}

// ParseKind validates a kind name
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown scenario kind %q (expected positive, edge or negative)", s)
}

// Message is one chat message of a fixture. Content is repeated Repeat times
// when Repeat is greater than one.
type Message struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
	Repeat  int    `yaml:"repeat,omitempty"`
}

// Request is a chat-completion request fixture
type Request struct {
	// Model overrides the model under test (e.g. to send an unknown model)
	Model string `yaml:"model,omitempty"`
	// OmitModel leaves the model field out of the payload
	OmitModel bool              `yaml:"omit_model,omitempty"`
	Messages  []Message         `yaml:"messages,omitempty"`
	Params    map[string]any    `yaml:"params,omitempty"`
	Stream    bool              `yaml:"stream,omitempty"`
	Auth      executor.AuthMode `yaml:"auth,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	// RawBody is sent verbatim; {{model}} is replaced by the model name
	RawBody string `yaml:"raw_body,omitempty"`
	// ExceedTokenLimit appends a user message of (model token limit + N) words
	ExceedTokenLimit int `yaml:"exceed_token_limit,omitempty"`
}

// Validate checks the fixture for mistakes that do not depend on the model
func (r *Request) Validate() error {
	switch r.Auth {
	case executor.AuthDefault, executor.AuthNone, executor.AuthInvalid:
	default:
		return fmt.Errorf("invalid auth mode %q (expected none or invalid)", r.Auth)
	}
	for i, msg := range r.Messages {
		if msg.Repeat < 0 {
			return fmt.Errorf("message %d: repeat cannot be negative", i)
		}
	}
	if r.ExceedTokenLimit < 0 {
		return fmt.Errorf("exceed_token_limit cannot be negative")
	}
	if r.RawBody != "" && (len(r.Messages) > 0 || len(r.Params) > 0 || r.ExceedTokenLimit > 0) {
		return fmt.Errorf("raw_body cannot be combined with messages, params or exceed_token_limit")
	}
	return nil
}

// Build renders the fixture for one model. The caller sets the call path.
func (r *Request) Build(model string) (*executor.Call, error) {
	if r.Model != "" {
		model = r.Model
	}

	call := &executor.Call{
		Auth:    r.Auth,
		Headers: r.Headers,
		Stream:  r.Stream,
	}

	if r.RawBody != "" {
		call.RawBody = strings.ReplaceAll(r.RawBody, "{{model}}", model)
		return call, nil
	}

	messages := make([]map[string]string, 0, len(r.Messages)+1)
	for _, msg := range r.Messages {
		content := msg.Content
		if msg.Repeat > 1 {
			content = strings.Repeat(content, msg.Repeat)
		}
		messages = append(messages, map[string]string{"role": msg.Role, "content": content})
	}

	if r.ExceedTokenLimit > 0 {
		limit, err := TokenLimit(model)
		if err != nil {
			return nil, err
		}
		// Roughly one token per word
		messages = append(messages, map[string]string{
			"role":    "user",
			"content": strings.Repeat("word ", limit+r.ExceedTokenLimit),
		})
	}

	body := make(map[string]any, len(r.Params)+3)
	for key, value := range r.Params {
		body[key] = value
	}
	if !r.OmitModel {
		body["model"] = model
	}
	body["messages"] = messages
	if r.Stream {
		body["stream"] = true
	} else if stream, ok := r.Params["stream"].(bool); ok && stream {
		call.Stream = true
	}

	call.Body = body
	return call, nil
}

// Scenario pairs a request fixture with its expected outcome
type Scenario struct {
	Name        string `yaml:"name"`
	Kind        Kind   `yaml:"kind"`
	Description string `yaml:"description,omitempty"`
	// ModelIndependent scenarios run once per suite instead of once per model
	ModelIndependent bool               `yaml:"model_independent,omitempty"`
	Request          Request            `yaml:"request"`
	Expect           expect.Expectation `yaml:"expect"`
}

// Validate checks the scenario definition
func (s *Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("scenario name is required")
	}
	if _, err := ParseKind(string(s.Kind)); err != nil {
		return fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	if err := s.Request.Validate(); err != nil {
		return fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	if err := s.Expect.Validate(); err != nil {
		return fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return nil
}

// Suite is a set of scenarios with optional run settings
type Suite struct {
	Models []string `yaml:"models,omitempty"`
	// Delay is nil when the file leaves it out, so an explicit 0 still
	// overrides the environment
	Delay     *time.Duration `yaml:"delay,omitempty"`
	Scenarios []Scenario     `yaml:"scenarios"`
}

// Validate checks every scenario and rejects duplicate names
func (s *Suite) Validate() error {
	if len(s.Scenarios) == 0 {
		return fmt.Errorf("suite has no scenarios")
	}
	if s.Delay != nil && *s.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	seen := make(map[string]bool, len(s.Scenarios))
	for i := range s.Scenarios {
		sc := &s.Scenarios[i]
		if err := sc.Validate(); err != nil {
			return err
		}
		if seen[sc.Name] {
			return fmt.Errorf("duplicate scenario name %q", sc.Name)
		}
		seen[sc.Name] = true
	}
	return nil
}

// tokenLimits maps model name prefixes to their context window
var tokenLimits = []struct {
	prefix string
	limit  int
}{
	{"mistral-large", 128 * 1000},
	{"mistral-small", 32 * 1000},
	{"ministral-8b", 128 * 1000},
	{"ministral-3b", 128 * 1000},
}

// TokenLimit returns the context window of a known model
func TokenLimit(model string) (int, error) {
	for _, entry := range tokenLimits {
		if strings.HasPrefix(model, entry.prefix) {
			return entry.limit, nil
		}
	}
	return 0, fmt.Errorf("unknown token limit for model %q", model)
}
