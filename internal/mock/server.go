// Package mock serves an offline imitation of the Mistral chat-completion API.
// It reproduces the status codes and error messages the sanity scenarios
// check for, so suites and load profiles can be tried without an API key.
package mock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/studiowebux/chatbench/internal/config"
	"go.uber.org/zap"
)

// Server represents the mock HTTP server
type Server struct {
	config     *Config
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
	logs       []RequestLog
	logsMutex  sync.RWMutex
}

// NewServer creates a new mock server. Port 0 listens on a free port.
func NewServer(cfg Config, logger *zap.Logger) *Server {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.ContextLimit == 0 {
		cfg.ContextLimit = DefaultContextLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		config: &cfg,
		logger: logger,
		logs:   make([]RequestLog, 0),
	}
}

// Handler returns the HTTP handler, mainly for httptest
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+config.DefaultEndpoint, s.handleChatCompletion)
	mux.HandleFunc("GET /v1/models", s.handleModels)
	mux.HandleFunc("/", s.handleNotFound)
	return mux
}

// Start starts the mock server
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("mock server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the mock server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// GetAddress returns the server base URL
func (s *Server) GetAddress() string {
	if s.listener != nil {
		return "http://" + s.listener.Addr().String()
	}
	return fmt.Sprintf("http://%s:%d", s.config.Host, s.config.Port)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	io.Copy(io.Discard, r.Body)
	writeJSON(w, http.StatusNotFound, map[string]string{
		"object":  "error",
		"message": fmt.Sprintf("No route for %s %s", r.Method, r.URL.Path),
		"type":    "not_found",
	})
}

// logRequest adds a request to the log
func (s *Server) logRequest(log RequestLog) {
	s.logger.Debug("mock request",
		zap.String("method", log.Method),
		zap.String("path", log.Path),
		zap.String("model", log.Model),
		zap.Int("status", log.Status),
		zap.Duration("duration", log.Duration))

	if !s.config.Logging {
		return
	}

	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.logs = append(s.logs, log)

	// Keep only the most recent logs
	if len(s.logs) > maxLogs {
		s.logs = s.logs[len(s.logs)-maxLogs:]
	}
}

// GetLogs returns all logged requests
func (s *Server) GetLogs() []RequestLog {
	s.logsMutex.RLock()
	defer s.logsMutex.RUnlock()

	// Return a copy
	logs := make([]RequestLog, len(s.logs))
	copy(logs, s.logs)
	return logs
}

// ClearLogs clears all logged requests
func (s *Server) ClearLogs() {
	s.logsMutex.Lock()
	defer s.logsMutex.Unlock()

	s.logs = make([]RequestLog, 0)
}

// flattenHeaders converts http.Header to map[string]string (first value only)
func flattenHeaders(headers http.Header) map[string]string {
	result := make(map[string]string)
	for key, values := range headers {
		if len(values) > 0 {
			result[key] = values[0]
		}
	}
	return result
}
