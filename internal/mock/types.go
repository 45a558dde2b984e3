package mock

import "time"

// Config represents the mock chat-completion service configuration
type Config struct {
	Port  int    `json:"port" yaml:"port"` // Server port (default: 8080)
	Host  string `json:"host" yaml:"host"` // Server host (default: localhost)
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
	// ModelPrefixes lists accepted model name prefixes
	ModelPrefixes []string `json:"model_prefixes,omitempty" yaml:"model_prefixes,omitempty"`
	// ContextLimit applies to models without a known context window
	ContextLimit int           `json:"context_limit,omitempty" yaml:"context_limit,omitempty"`
	Latency      time.Duration `json:"latency,omitempty" yaml:"latency,omitempty"`
	Jitter       time.Duration `json:"jitter,omitempty" yaml:"jitter,omitempty"`
	// ErrorRate is the fraction of requests answered with 429
	ErrorRate float64 `json:"error_rate,omitempty" yaml:"error_rate,omitempty"`
	Replies   []Reply `json:"replies,omitempty" yaml:"replies,omitempty"`
	Logging   bool    `json:"logging" yaml:"logging"` // Keep a request log
}

// Reply is a canned answer used when the last message contains a phrase
type Reply struct {
	Contains string `json:"contains" yaml:"contains"`
	Answer   string `json:"answer" yaml:"answer"`
}

// RequestLog represents a logged request
type RequestLog struct {
	Timestamp time.Time         `json:"timestamp"`
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
	Model     string            `json:"model,omitempty"`
	Status    int               `json:"status"`
	Duration  time.Duration     `json:"duration"`
}
