package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/studiowebux/chatbench/internal/types"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755

	DefaultBaseURL        = "https://api.mistral.ai"
	DefaultEndpoint       = "/v1/chat/completions"
	DefaultModel          = "mistral-large-latest"
	DefaultRequestTimeout = 30 * time.Second
	DefaultEnvFile        = ".env"
)

// Environment variable names
const (
	EnvAPIToken           = "MISTRAL_API_TOKEN"
	EnvAPIKeyLegacy       = "MISTRAL_API_KEY"
	EnvBaseURL            = "MISTRAL_BASE_URL"
	EnvBaseURLLegacy      = "BASE_URL"
	EnvEndpoint           = "MISTRAL_ENDPOINT"
	EnvModels             = "MISTRAL_MODELS"
	EnvTimeout            = "CHATBENCH_TIMEOUT"
	EnvDelay              = "CHATBENCH_DELAY"
	EnvCAFile             = "CHATBENCH_CA_FILE"
	EnvCertFile           = "CHATBENCH_CERT_FILE"
	EnvKeyFile            = "CHATBENCH_KEY_FILE"
	EnvInsecureSkipVerify = "CHATBENCH_INSECURE_SKIP_VERIFY"
	EnvLogLevel           = "CHATBENCH_LOG_LEVEL"
	EnvLogFormat          = "CHATBENCH_LOG_FORMAT"
)

// ErrMissingToken is returned when no API token could be found
var ErrMissingToken = errors.New(EnvAPIToken + " must be set")

// Config is the harness configuration shared by the sanity runner and the load driver
type Config struct {
	APIToken       string
	BaseURL        string
	Endpoint       string
	Models         []string
	RequestTimeout time.Duration
	ScenarioDelay  time.Duration
	TLS            *types.TLSConfig
	LogLevel       string
	LogFormat      string
	// EnvFile is the override file that was actually read, empty if none
	EnvFile string
}

// LoadOptions controls where configuration values come from
type LoadOptions struct {
	// EnvFile is an explicit override file. When empty, DefaultEnvFile is
	// read if it exists.
	EnvFile string
	// Lookup replaces os.LookupEnv, mainly for tests
	Lookup func(string) (string, bool)
}

// Load reads the configuration once. Values from the override file win over
// the process environment.
func Load(opts LoadOptions) (*Config, error) {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	overrides, envFile, err := readEnvFile(opts.EnvFile)
	if err != nil {
		return nil, err
	}

	get := func(names ...string) string {
		for _, name := range names {
			if v, ok := overrides[name]; ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
			if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	cfg := &Config{
		APIToken:       get(EnvAPIToken, EnvAPIKeyLegacy),
		BaseURL:        strings.TrimSuffix(get(EnvBaseURL, EnvBaseURLLegacy), "/"),
		Endpoint:       get(EnvEndpoint),
		Models:         ParseList(get(EnvModels)),
		RequestTimeout: DefaultRequestTimeout,
		LogLevel:       get(EnvLogLevel),
		LogFormat:      get(EnvLogFormat),
		EnvFile:        envFile,
	}

	if cfg.APIToken == "" {
		return nil, ErrMissingToken
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if !strings.HasPrefix(cfg.Endpoint, "/") {
		cfg.Endpoint = "/" + cfg.Endpoint
	}
	if len(cfg.Models) == 0 {
		cfg.Models = []string{DefaultModel}
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
	}

	if raw := get(EnvTimeout); raw != "" {
		d, err := parseDuration(EnvTimeout, raw)
		if err != nil {
			return nil, err
		}
		cfg.RequestTimeout = d
	}
	if raw := get(EnvDelay); raw != "" {
		d, err := parseDuration(EnvDelay, raw)
		if err != nil {
			return nil, err
		}
		cfg.ScenarioDelay = d
	}

	tlsCfg := &types.TLSConfig{
		CAFile:   get(EnvCAFile),
		CertFile: get(EnvCertFile),
		KeyFile:  get(EnvKeyFile),
	}
	if raw := get(EnvInsecureSkipVerify); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", EnvInsecureSkipVerify, raw, err)
		}
		tlsCfg.InsecureSkipVerify = v
	}
	if (tlsCfg.CertFile == "") != (tlsCfg.KeyFile == "") {
		return nil, fmt.Errorf("%s and %s must be set together", EnvCertFile, EnvKeyFile)
	}
	if !tlsCfg.IsZero() {
		cfg.TLS = tlsCfg
	}

	return cfg, nil
}

// URL returns the full chat-completion URL
func (c *Config) URL() string {
	return c.BaseURL + c.Endpoint
}

// readEnvFile reads the override file. A missing default file is not an error;
// a missing explicit file is.
func readEnvFile(path string) (map[string]string, string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse env file %s: %w", path, err)
	}
	return values, path, nil
}

func parseDuration(name, raw string) (time.Duration, error) {
	// Bare numbers are seconds, as in the original DELAY constant
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("invalid %s %q: must not be negative", name, raw)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", name, raw)
	}
	return d, nil
}

// ParseList splits a comma, semicolon, newline or whitespace separated list
func ParseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	normalized := raw
	for _, sep := range []string{";", "\n", "\r"} {
		normalized = strings.ReplaceAll(normalized, sep, ",")
	}

	parts := strings.Split(normalized, ",")
	if len(parts) == 1 {
		parts = strings.Fields(raw)
	}

	var items []string
	for _, part := range parts {
		if candidate := strings.TrimSpace(part); candidate != "" {
			items = append(items, candidate)
		}
	}
	return items
}

// EnsureParentDir creates the parent directory of a report file
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
