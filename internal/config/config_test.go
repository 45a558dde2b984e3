package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(content), FilePermissions))
	return path
}

func TestLoad_MissingToken(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load(LoadOptions{Lookup: envMap(nil)})
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(LoadOptions{Lookup: envMap(map[string]string{EnvAPIToken: "secret"})})
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.APIToken)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, []string{DefaultModel}, cfg.Models)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Zero(t, cfg.ScenarioDelay)
	assert.Nil(t, cfg.TLS)
	assert.Empty(t, cfg.EnvFile)
	assert.Equal(t, "https://api.mistral.ai/v1/chat/completions", cfg.URL())
}

func TestLoad_LegacyNames(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(LoadOptions{Lookup: envMap(map[string]string{
		EnvAPIKeyLegacy:  "legacy",
		EnvBaseURLLegacy: "http://localhost:8080/",
	})})
	require.NoError(t, err)

	assert.Equal(t, "legacy", cfg.APIToken)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
}

func TestLoad_EnvFileOverridesEnvironment(t *testing.T) {
	path := writeEnvFile(t, "MISTRAL_API_TOKEN=from-file\nMISTRAL_MODELS=mistral-small-latest, ministral-8b-latest\nCHATBENCH_DELAY=5\n")

	cfg, err := Load(LoadOptions{
		EnvFile: path,
		Lookup: envMap(map[string]string{
			EnvAPIToken: "from-env",
			EnvBaseURL:  "http://env.example",
		}),
	})
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.APIToken)
	assert.Equal(t, "http://env.example", cfg.BaseURL)
	assert.Equal(t, []string{"mistral-small-latest", "ministral-8b-latest"}, cfg.Models)
	assert.Equal(t, 5*time.Second, cfg.ScenarioDelay)
	assert.Equal(t, path, cfg.EnvFile)
}

func TestLoad_DefaultEnvFileInWorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultEnvFile), []byte("MISTRAL_API_TOKEN=dotenv\n"), FilePermissions))
	t.Chdir(dir)

	cfg, err := Load(LoadOptions{Lookup: envMap(nil)})
	require.NoError(t, err)
	assert.Equal(t, "dotenv", cfg.APIToken)
	assert.Equal(t, DefaultEnvFile, cfg.EnvFile)
}

func TestLoad_MissingExplicitEnvFile(t *testing.T) {
	_, err := Load(LoadOptions{
		EnvFile: filepath.Join(t.TempDir(), "nope.env"),
		Lookup:  envMap(map[string]string{EnvAPIToken: "x"}),
	})
	require.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad timeout", map[string]string{EnvAPIToken: "x", EnvTimeout: "soon"}},
		{"negative delay", map[string]string{EnvAPIToken: "x", EnvDelay: "-1s"}},
		{"bad bool", map[string]string{EnvAPIToken: "x", EnvInsecureSkipVerify: "maybe"}},
		{"cert without key", map[string]string{EnvAPIToken: "x", EnvCertFile: "client.pem"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(LoadOptions{Lookup: envMap(tt.env)})
			assert.Error(t, err)
		})
	}
}

func TestLoad_TLSAndTimeouts(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(LoadOptions{Lookup: envMap(map[string]string{
		EnvAPIToken:           "x",
		EnvTimeout:            "1m30s",
		EnvInsecureSkipVerify: "true",
		EnvEndpoint:           "v1/chat/completions",
	})})
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	require.NotNil(t, cfg.TLS)
	assert.True(t, cfg.TLS.InsecureSkipVerify)
	assert.Equal(t, "/v1/chat/completions", cfg.Endpoint)
}

func TestParseList(t *testing.T) {
	cases := map[string][]string{
		"":                         nil,
		"a":                        {"a"},
		"a,b":                      {"a", "b"},
		"a; b \n c":                {"a", "b", "c"},
		"  a  ,  b   ":             {"a", "b"},
		"mistral-large mistral-8b": {"mistral-large", "mistral-8b"},
	}

	for input, want := range cases {
		assert.Equal(t, want, ParseList(input), "input %q", input)
	}
}

func TestEnsureParentDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "reports", "nested", "out.html")
	require.NoError(t, EnsureParentDir(target))

	info, err := os.Stat(filepath.Dir(target))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NoError(t, EnsureParentDir("out.html"))
}
