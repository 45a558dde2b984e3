package mock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort         = 8080
	DefaultHost         = "localhost"
	DefaultContextLimit = 32000
	defaultAnswer       = "I am fine, thanks."
	maxLogs             = 1000
)

// DefaultConfig accepts the Mistral model families and answers the phrases
// the built-in scenarios ask about
func DefaultConfig() Config {
	return Config{
		Port:          DefaultPort,
		Host:          DefaultHost,
		ModelPrefixes: []string{"mistral-", "ministral-", "open-mistral-", "codestral-", "pixtral-"},
		ContextLimit:  DefaultContextLimit,
		Replies: []Reply{
			{Contains: "12 + 9", Answer: "12 + 9 = 21"},
			{Contains: "lottery", Answer: "You won 199 euros."},
			{Contains: "json", Answer: `{"average_age": 42.3}`},
		},
		Logging: true,
	}
}

// LoadConfig loads a mock configuration from a file. Fields left out keep
// their DefaultConfig value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, .json or .jsonc)", ext)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate validates the mock configuration
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ContextLimit < 0 {
		return fmt.Errorf("context limit cannot be negative")
	}
	if c.Latency < 0 || c.Jitter < 0 {
		return fmt.Errorf("latency and jitter cannot be negative")
	}
	if c.ErrorRate < 0 || c.ErrorRate > 1 {
		return fmt.Errorf("error rate must be between 0 and 1")
	}
	for i, reply := range c.Replies {
		if reply.Contains == "" {
			return fmt.Errorf("reply %d: contains is required", i)
		}
		if reply.Answer == "" {
			return fmt.Errorf("reply %d: answer is required", i)
		}
	}
	return nil
}
