package types

import "strings"

// ChatMessage is one entry of a chat-completion message list
type ChatMessage struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// ChatCompletion is the response body of a non-streaming chat-completion call.
// Fields are pointers where the harness needs to tell "absent" from "zero".
type ChatCompletion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is a single completion alternative. Message is set on regular
// responses, Delta on stream chunks.
type Choice struct {
	Index        int          `json:"index"`
	Message      *ChatMessage `json:"message,omitempty"`
	Delta        *ChatMessage `json:"delta,omitempty"`
	FinishReason *string      `json:"finish_reason,omitempty"`
}

// Usage reports token accounting for a completion
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RequestResult contains the HTTP response data
type RequestResult struct {
	Method       string            `json:"method" yaml:"method"`
	URL          string            `json:"url" yaml:"url"`
	RequestBody  string            `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Status       int               `json:"status" yaml:"status"`
	StatusText   string            `json:"statusText" yaml:"statusText"`
	Headers      map[string]string `json:"headers" yaml:"headers"`
	Body         string            `json:"body" yaml:"body"`
	Stream       bool              `json:"stream" yaml:"stream"`
	Duration     int64             `json:"duration" yaml:"duration"`         // milliseconds
	RequestSize  int               `json:"requestSize" yaml:"requestSize"`   // bytes
	ResponseSize int               `json:"responseSize" yaml:"responseSize"` // bytes
	Truncated    bool              `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	Error        string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// HasResponse reports whether the server answered at all
func (r *RequestResult) HasResponse() bool {
	return r.Error == "" || r.Status != 0
}

// Header returns a response header value using a case-insensitive name lookup
func (r *RequestResult) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for key, value := range r.Headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

// TLSConfig holds optional TLS settings for the target endpoint
type TLSConfig struct {
	CertFile           string `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile            string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`
	CAFile             string `json:"caFile,omitempty" yaml:"caFile,omitempty"`
	InsecureSkipVerify bool   `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

// IsZero reports whether no TLS option is set
func (t *TLSConfig) IsZero() bool {
	return t == nil || (t.CertFile == "" && t.KeyFile == "" && t.CAFile == "" && !t.InsecureSkipVerify)
}
