package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studiowebux/chatbench/internal/config"
)

// newFakeService answers every authorized request with a fixed completion and
// rejects anything else with 401
func newFakeService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Unauthorized"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "mistral-small-latest",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": "Hello there"},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func envFor(srv *httptest.Server, token string) func(string) (string, bool) {
	env := map[string]string{
		config.EnvAPIToken: token,
		config.EnvBaseURL:  srv.URL,
		config.EnvLogLevel: "error",
	}
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const passingSuite = `
models: [mistral-small-latest]
scenarios:
  - name: hello
    kind: positive
    request:
      messages:
        - role: user
          content: Hello
    expect:
      status: 200
      content_not_empty: true
  - name: bad_token
    kind: negative
    request:
      auth: invalid
      messages:
        - role: user
          content: Hello
    expect:
      status_class: 4xx
      no_content: true
`

func TestSanity_Passes(t *testing.T) {
	srv := newFakeService(t)
	var out bytes.Buffer
	reportPath := filepath.Join(t.TempDir(), "out", "sanity.json")

	err := Sanity(context.Background(), SanityOptions{
		Common: Common{Out: &out, Lookup: envFor(srv, "secret"), Reports: []string{reportPath}, EnvFile: os.DevNull},
		File:   writeFile(t, "suite.yaml", passingSuite),
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "All 2 scenarios passed")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["passed"])
}

func TestSanity_FailureReturnsSentinel(t *testing.T) {
	srv := newFakeService(t)
	var out bytes.Buffer

	err := Sanity(context.Background(), SanityOptions{
		Common: Common{Out: &out, Lookup: envFor(srv, "wrong"), EnvFile: os.DevNull},
		File:   writeFile(t, "suite.yaml", passingSuite),
	})
	assert.ErrorIs(t, err, ErrScenariosFailed)
	assert.Contains(t, out.String(), "hello")
}

func TestSanity_SelectsByKindAndPattern(t *testing.T) {
	srv := newFakeService(t)
	var out bytes.Buffer
	delay := time.Duration(0)

	err := Sanity(context.Background(), SanityOptions{
		Common: Common{Out: &out, Lookup: envFor(srv, "secret"), EnvFile: os.DevNull, Verbose: true},
		File:   writeFile(t, "suite.yaml", passingSuite),
		Kinds:  []string{"negative"},
		Delay:  &delay,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "bad_token")
	assert.NotContains(t, out.String(), "hello")

	err = Sanity(context.Background(), SanityOptions{
		Common: Common{Out: &out, Lookup: envFor(srv, "secret"), EnvFile: os.DevNull},
		File:   writeFile(t, "suite.yaml", passingSuite),
		Run:    "^nothing$",
	})
	assert.Error(t, err)

	err = Sanity(context.Background(), SanityOptions{
		Common: Common{Out: &out, Lookup: envFor(srv, "secret"), EnvFile: os.DevNull},
		File:   writeFile(t, "suite.yaml", passingSuite),
		Run:    "helo",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean hello")
}

func TestScenarioDelay_Precedence(t *testing.T) {
	zero, two, three := time.Duration(0), 2*time.Second, 3*time.Second

	assert.Equal(t, 5*time.Second, scenarioDelay(5*time.Second, nil, nil))
	// An explicit 0 in the suite file still wins over the environment
	assert.Equal(t, time.Duration(0), scenarioDelay(5*time.Second, &zero, nil))
	assert.Equal(t, two, scenarioDelay(5*time.Second, &two, nil))
	assert.Equal(t, three, scenarioDelay(5*time.Second, &two, &three))
}

func TestSanity_SuiteDelayZeroOverridesEnv(t *testing.T) {
	srv := newFakeService(t)
	lookup := func(name string) (string, bool) {
		if name == config.EnvDelay {
			return "1m", true
		}
		return envFor(srv, "secret")(name)
	}
	suite := "delay: 0s\n" + passingSuite

	start := time.Now()
	err := Sanity(context.Background(), SanityOptions{
		Common: Common{Out: &bytes.Buffer{}, Lookup: lookup, EnvFile: os.DevNull},
		File:   writeFile(t, "suite.yaml", suite),
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 30*time.Second)
}

func TestSanity_MissingToken(t *testing.T) {
	srv := newFakeService(t)
	err := Sanity(context.Background(), SanityOptions{
		Common: Common{Out: &bytes.Buffer{}, Lookup: envFor(srv, ""), EnvFile: os.DevNull},
	})
	assert.ErrorIs(t, err, config.ErrMissingToken)
}

func TestSanity_BadReportPath(t *testing.T) {
	srv := newFakeService(t)
	err := Sanity(context.Background(), SanityOptions{
		Common: Common{Out: &bytes.Buffer{}, Lookup: envFor(srv, "secret"), EnvFile: os.DevNull, Reports: []string{"report.txt"}},
		File:   writeFile(t, "suite.yaml", passingSuite),
	})
	assert.Error(t, err)
}

func TestLoad_Headless(t *testing.T) {
	srv := newFakeService(t)
	var out bytes.Buffer
	dbPath := filepath.Join(t.TempDir(), "load.db")

	users, requests := 3, 2
	spawnRate := 100.0
	runTime := 10 * time.Second
	profile := writeFile(t, "load.yaml", "name: smoke\nwait_min: 0s\nwait_max: 0s\n")

	err := Load(context.Background(), LoadOptions{
		Common:          Common{Out: &out, Lookup: envFor(srv, "secret"), EnvFile: os.DevNull, Reports: []string{dbPath}},
		File:            profile,
		Users:           &users,
		SpawnRate:       &spawnRate,
		RunTime:         &runTime,
		RequestsPerUser: &requests,
		Headless:        true,
		MaxErrorRate:    0,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "smoke")
	assert.FileExists(t, dbPath)
}

func TestLoad_ErrorRateExceeded(t *testing.T) {
	srv := newFakeService(t)
	users, requests := 2, 1
	spawnRate := 100.0

	err := Load(context.Background(), LoadOptions{
		Common:          Common{Out: &bytes.Buffer{}, Lookup: envFor(srv, "wrong"), EnvFile: os.DevNull},
		File:            writeFile(t, "load.yaml", "wait_min: 0s\nwait_max: 0s\n"),
		Users:           &users,
		SpawnRate:       &spawnRate,
		RequestsPerUser: &requests,
		Headless:        true,
		MaxErrorRate:    0.5,
	})
	assert.ErrorIs(t, err, ErrErrorRateExceeded)
}

func TestLoad_InvalidOverride(t *testing.T) {
	srv := newFakeService(t)
	users := 0
	err := Load(context.Background(), LoadOptions{
		Common:   Common{Out: &bytes.Buffer{}, Lookup: envFor(srv, "secret"), EnvFile: os.DevNull},
		Users:    &users,
		Headless: true,
	})
	assert.Error(t, err)
}

func TestServeMetrics(t *testing.T) {
	srv := newFakeService(t)
	users, requests := 1, 1
	spawnRate := 10.0

	err := Load(context.Background(), LoadOptions{
		Common:          Common{Out: &bytes.Buffer{}, Lookup: envFor(srv, "secret"), EnvFile: os.DevNull},
		File:            writeFile(t, "load.yaml", "wait_min: 0s\nwait_max: 0s\n"),
		Users:           &users,
		SpawnRate:       &spawnRate,
		RequestsPerUser: &requests,
		Headless:        true,
		MetricsAddr:     "127.0.0.1:0",
		MaxErrorRate:    -1,
	})
	require.NoError(t, err)
}

func TestScenarios_ListsBuiltin(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Scenarios(ScenariosOptions{Common: Common{Out: &out}}))

	listing := out.String()
	for _, name := range []string{"invalid_token", "missing_model", "response_format_json"} {
		assert.Contains(t, listing, name)
	}
	assert.Contains(t, listing, "15 of 15 scenarios selected")

	out.Reset()
	require.NoError(t, Scenarios(ScenariosOptions{Common: Common{Out: &out}, Kinds: []string{"edge"}}))
	assert.Contains(t, out.String(), "3 of 15 scenarios selected")
}

func TestScenarios_UnknownKind(t *testing.T) {
	err := Scenarios(ScenariosOptions{Common: Common{Out: &bytes.Buffer{}}, Kinds: []string{"weird"}})
	assert.Error(t, err)
}

func TestResolveFilePath(t *testing.T) {
	path := writeFile(t, "suite.yaml", passingSuite)
	base := path[:len(path)-len(".yaml")]

	resolved, err := resolveFilePath(base)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	_, err = resolveFilePath(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestMock_ServesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port := 0
	ready := make(chan string, 1)
	done := make(chan error, 1)
	var out bytes.Buffer
	go func() {
		done <- Mock(ctx, MockOptions{
			Common: Common{
				Out:      &out,
				Lookup:   func(string) (string, bool) { return "", false },
				LogLevel: "error",
			},
			Host:    "127.0.0.1",
			Port:    &port,
			Token:   "secret",
			OnReady: func(url string) { ready <- url },
		})
	}()

	var url string
	select {
	case url = <-ready:
	case err := <-done:
		t.Fatalf("mock stopped early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("mock did not start")
	}

	body := `{"model":"mistral-small-latest","messages":[{"role":"user","content":"What is 12 + 9 ?"}]}`
	req, err := http.NewRequest(http.MethodPost, url+config.DefaultEndpoint, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&completion))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, completion.Choices, 1)
	assert.Contains(t, completion.Choices[0].Message.Content, "21")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("mock did not stop")
	}
	assert.Contains(t, out.String(), url)
}

func TestMock_InvalidConfig(t *testing.T) {
	path := writeFile(t, "mock.yaml", "error_rate: 3\n")
	err := Mock(context.Background(), MockOptions{
		Common: Common{Lookup: func(string) (string, bool) { return "", false }, LogLevel: "error"},
		File:   path,
	})
	assert.Error(t, err)
}
