package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studiowebux/chatbench/internal/types"
)

func newTestClient(t *testing.T, url string, timeout time.Duration) *Client {
	t.Helper()
	client, err := New(Options{BaseURL: url, Token: "test-token", Timeout: timeout})
	require.NoError(t, err)
	return client
}

func TestClient_DoSendsJSONWithBearerToken(t *testing.T) {
	var gotAuth, gotContentType string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"1","choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/", 0)
	result := client.Do(context.Background(), &Call{
		Path: "/v1/chat/completions",
		Body: map[string]any{
			"model":    "mistral-small",
			"messages": []types.ChatMessage{{Role: "user", Content: "hi"}},
		},
	})

	require.Empty(t, result.Error)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, http.MethodPost, result.Method)
	assert.Equal(t, server.URL+"/v1/chat/completions", result.URL)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "mistral-small", gotBody["model"])
	assert.Contains(t, result.Body, `"hello"`)
	assert.Equal(t, len(result.Body), result.ResponseSize)
	assert.Equal(t, len(result.RequestBody), result.RequestSize)
	assert.Equal(t, "application/json", result.Header("content-type"))
}

func TestClient_DoAuthModes(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)

	client.Do(context.Background(), &Call{Path: "/", Auth: AuthNone})
	assert.Empty(t, gotAuth)

	client.Do(context.Background(), &Call{Path: "/", Auth: AuthInvalid})
	assert.Equal(t, "Bearer "+InvalidToken, gotAuth)
}

func TestClient_DoRawBody(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		got = string(data)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	raw := "{'model': 'x', messages: [}"
	result := newTestClient(t, server.URL, 0).Do(context.Background(), &Call{
		Path:    "/",
		RawBody: raw,
		Body:    map[string]any{"ignored": true},
	})

	assert.Equal(t, raw, got)
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Empty(t, result.Error)
}

func TestClient_DoConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	result := newTestClient(t, url, 0).Do(context.Background(), &Call{Path: "/"})

	assert.Equal(t, 0, result.Status)
	assert.NotEmpty(t, result.Error)
	assert.False(t, result.HasResponse())
}

func TestClient_DoTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := newTestClient(t, server.URL, 50*time.Millisecond).Do(context.Background(), &Call{Path: "/"})

	assert.Equal(t, 0, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestClient_DoStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		for _, part := range []string{"Why", " not?"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: ignored-after-done\n\n")
	}))
	defer server.Close()

	result := newTestClient(t, server.URL, 0).Do(context.Background(), &Call{Path: "/", Stream: true})

	require.Empty(t, result.Error)
	assert.True(t, result.Stream)
	assert.Contains(t, result.Header("Content-Type"), "text/event-stream")
	assert.Contains(t, result.Body, "data: [DONE]")
	assert.NotContains(t, result.Body, "ignored-after-done")
}

func TestCollectStreamLimit(t *testing.T) {
	body := strings.Repeat("data: xxxxxxxxxx\n", 100)
	data, truncated, err := collectStream(strings.NewReader(body), 64)
	require.NoError(t, err)
	assert.Len(t, data, 64)
	assert.True(t, truncated)

	data, truncated, err = collectStream(strings.NewReader("data: a\n\ndata: [DONE]\n\n"), 64)
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Contains(t, string(data), "[DONE]")
}

func TestReadBodyLimit(t *testing.T) {
	data, truncated, err := readBody(strings.NewReader(strings.Repeat("x", 100)), 100)
	require.NoError(t, err)
	assert.Len(t, data, 100)
	assert.False(t, truncated)

	data, truncated, err = readBody(strings.NewReader(strings.Repeat("x", 101)), 100)
	require.NoError(t, err)
	assert.Len(t, data, 100)
	assert.True(t, truncated)
}

func TestClient_DoOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"pad":"%s"}`, strings.Repeat("x", MaxResponseBodySize))
	}))
	defer server.Close()

	result := newTestClient(t, server.URL, 5*time.Second).Do(context.Background(), &Call{Path: "/"})
	assert.Equal(t, http.StatusOK, result.Status)
	assert.True(t, result.Truncated)
	assert.Equal(t, MaxResponseBodySize, result.ResponseSize)
	assert.Empty(t, result.Error)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestNew_MissingCAFile(t *testing.T) {
	_, err := New(Options{BaseURL: "https://example.com", TLS: &types.TLSConfig{CAFile: "/does/not/exist.pem"}})
	assert.Error(t, err)
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, IsSuccessStatus(200))
	assert.False(t, IsSuccessStatus(301))
	assert.True(t, IsClientErrorStatus(422))
	assert.True(t, IsServerErrorStatus(503))
	assert.Equal(t, "999ms", FormatDuration(999))
	assert.Equal(t, "1.50s", FormatDuration(1500))
	assert.Equal(t, "512B", FormatSize(512))
	assert.Equal(t, "2.00KB", FormatSize(2048))
}
