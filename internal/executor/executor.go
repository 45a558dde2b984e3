package executor

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/studiowebux/chatbench/internal/types"
)

const (
	// HTTP client configuration timeouts
	TCPDialTimeout        = 5 * time.Second
	TCPKeepAliveInterval  = 30 * time.Second
	TLSHandshakeTimeout   = 5 * time.Second
	IdleConnTimeout       = 90 * time.Second
	ExpectContinueTimeout = 1 * time.Second

	DefaultTimeout = 30 * time.Second

	// MaxResponseBodySize caps how much of a response (or event stream) is kept
	MaxResponseBodySize = 1 << 20
	// InvalidToken is sent when a call asks for AuthInvalid
	InvalidToken = "chatbench-invalid-token"
	userAgent    = "chatbench/1.0"
)

// AuthMode controls the Authorization header of a call
type AuthMode string

const (
	AuthDefault AuthMode = ""        // Bearer token from the client
	AuthNone    AuthMode = "none"    // no Authorization header
	AuthInvalid AuthMode = "invalid" // a token the service must reject
)

// Call describes one chat-completion request
type Call struct {
	Method  string
	Path    string
	Body    any    // marshalled as JSON
	RawBody string // sent verbatim when set, wins over Body
	Auth    AuthMode
	Headers map[string]string
	Stream  bool // read the response as an event stream
}

// Options configures a Client
type Options struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	TLS      *types.TLSConfig
	MaxConns int // expected concurrency, sizes the connection pool
}

// Client sends calls to one chat-completion service. It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New builds a Client with a pooled transport
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = 1
	}

	httpClient, err := buildHTTPClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	return &Client{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: httpClient,
	}, nil
}

// Do performs a call and returns the result. Failures to reach the service
// are reported in RequestResult.Error with Status 0, never as a Go error, so
// callers can record them as data.
func (c *Client) Do(ctx context.Context, call *Call) *types.RequestResult {
	startTime := time.Now()

	method := call.Method
	if method == "" {
		method = http.MethodPost
	}
	url := c.baseURL + call.Path

	result := &types.RequestResult{
		Method: method,
		URL:    url,
		Stream: call.Stream,
	}

	// Create request body
	var payload []byte
	if call.RawBody != "" {
		payload = []byte(call.RawBody)
	} else if call.Body != nil {
		data, err := json.Marshal(call.Body)
		if err != nil {
			result.Error = fmt.Sprintf("failed to marshal request body: %v", err)
			return result
		}
		payload = data
	}
	result.RequestBody = string(payload)
	result.RequestSize = len(payload)

	var bodyReader io.Reader
	if len(payload) > 0 {
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if call.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}
	switch call.Auth {
	case AuthNone:
	case AuthInvalid:
		httpReq.Header.Set("Authorization", "Bearer "+InvalidToken)
	default:
		if c.token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.token)
		}
	}
	for key, value := range call.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Connection failed, timeout, or other network error
		result.Error = err.Error()
		result.Duration = time.Since(startTime).Milliseconds()
		return result
	}
	defer resp.Body.Close()

	result.Status = resp.StatusCode
	result.StatusText = resp.Status
	result.Headers = make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		result.Headers[key] = strings.Join(values, ", ")
	}

	var bodyBytes []byte
	if call.Stream && strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		bodyBytes, result.Truncated, err = collectStream(resp.Body, MaxResponseBodySize)
	} else {
		bodyBytes, result.Truncated, err = readBody(resp.Body, MaxResponseBodySize)
	}
	result.Duration = time.Since(startTime).Milliseconds()
	result.Body = string(bodyBytes)
	result.ResponseSize = len(bodyBytes)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read response body: %v", err)
	}

	return result
}

// readBody reads at most limit bytes and reports whether more were available
func readBody(body io.Reader, limit int) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(body, int64(limit)+1))
	if len(data) > limit {
		return data[:limit], true, err
	}
	return data, false, err
}

// collectStream reads an event stream until the [DONE] marker, EOF or the
// size limit. It reports whether the limit cut the stream short.
func collectStream(body io.Reader, limit int) ([]byte, bool, error) {
	reader := bufio.NewReader(body)
	buffer := &bytes.Buffer{}

	for {
		chunk, err := reader.ReadBytes('\n')
		if len(chunk) > 0 {
			if buffer.Len()+len(chunk) > limit {
				buffer.Write(chunk[:limit-buffer.Len()])
				return buffer.Bytes(), true, nil
			}
			buffer.Write(chunk)
			trimmed := bytes.TrimSpace(chunk)
			if bytes.Equal(trimmed, []byte("data: [DONE]")) || bytes.Equal(trimmed, []byte("data:[DONE]")) {
				return buffer.Bytes(), false, nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return buffer.Bytes(), false, nil
			}
			return buffer.Bytes(), false, err
		}
	}
}

// buildHTTPClient creates an HTTP client with connection pooling, timeouts and
// optional TLS/mTLS configuration
func buildHTTPClient(opts Options) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        opts.MaxConns,
		MaxIdleConnsPerHost: opts.MaxConns,
		MaxConnsPerHost:     opts.MaxConns * 2,
		IdleConnTimeout:     IdleConnTimeout,
		ForceAttemptHTTP2:   true,

		DialContext: (&net.Dialer{
			Timeout:   TCPDialTimeout,
			KeepAlive: TCPKeepAliveInterval,
		}).DialContext,

		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: opts.Timeout,
		ExpectContinueTimeout: ExpectContinueTimeout,
	}

	if tlsConfig := opts.TLS; !tlsConfig.IsZero() {
		tlsCfg := &tls.Config{
			InsecureSkipVerify: tlsConfig.InsecureSkipVerify,
		}

		// Load client certificate if provided (for mTLS)
		if tlsConfig.CertFile != "" && tlsConfig.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(tlsConfig.CertFile, tlsConfig.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load client certificate: %w", err)
			}
			tlsCfg.Certificates = []tls.Certificate{cert}
		}

		// Load CA certificate if provided (for server verification)
		if tlsConfig.CAFile != "" {
			caCert, err := os.ReadFile(tlsConfig.CAFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA certificate: %w", err)
			}
			caCertPool := x509.NewCertPool()
			if !caCertPool.AppendCertsFromPEM(caCert) {
				return nil, fmt.Errorf("failed to parse CA certificate")
			}
			tlsCfg.RootCAs = caCertPool
		}

		transport.TLSClientConfig = tlsCfg
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}, nil
}

// FormatDuration formats duration in milliseconds to human-readable string
func FormatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	return fmt.Sprintf("%.2fs", seconds)
}

// FormatSize formats byte size to human-readable string
func FormatSize(bytes int) string {
	if bytes < 1024 {
		return fmt.Sprintf("%dB", bytes)
	}
	if bytes < 1024*1024 {
		return fmt.Sprintf("%.2fKB", float64(bytes)/1024.0)
	}
	return fmt.Sprintf("%.2fMB", float64(bytes)/(1024.0*1024.0))
}

// IsSuccessStatus returns true if status code is 2xx
func IsSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}

// IsClientErrorStatus returns true if status code is 4xx
func IsClientErrorStatus(status int) bool {
	return status >= 400 && status < 500
}

// IsServerErrorStatus returns true if status code is 5xx
func IsServerErrorStatus(status int) bool {
	return status >= 500 && status < 600
}
