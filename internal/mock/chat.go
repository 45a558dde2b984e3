package mock

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/studiowebux/chatbench/internal/executor"
	"github.com/studiowebux/chatbench/internal/fixture"
	"github.com/studiowebux/chatbench/internal/types"
)

var validRoles = map[string]bool{"system": true, "user": true, "assistant": true, "tool": true}

type chatRequest struct {
	Model          string              `json:"model"`
	Stream         bool                `json:"stream"`
	Messages       []types.ChatMessage `json:"messages"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

// apiError is the body of every non-validation error
type apiError struct {
	Object  string `json:"object"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// validationError mimics the 422 body of a failed request validation
type validationError struct {
	Object string           `json:"object"`
	Detail []validationItem `json:"detail"`
}

type validationItem struct {
	Type string   `json:"type"`
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
}

func (s *Server) handleChatCompletion(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, _ := io.ReadAll(r.Body)
	r.Body.Close()

	entry := RequestLog{
		Timestamp: start,
		Method:    r.Method,
		Path:      r.URL.Path,
		Headers:   flattenHeaders(r.Header),
		Body:      string(body),
	}
	defer func() {
		entry.Duration = time.Since(start)
		s.logRequest(entry)
	}()

	if !s.wait(r) {
		entry.Status = 499
		return
	}

	entry.Status, entry.Model = s.answer(w, r, body)
}

// answer validates the request in the order the real service does and writes
// the response. It returns the status and the requested model.
func (s *Server) answer(w http.ResponseWriter, r *http.Request, body []byte) (int, string) {
	switch auth := r.Header.Get("Authorization"); {
	case auth == "":
		return writeJSON(w, http.StatusUnauthorized, apiError{Object: "error", Message: "No API key found in request"}), ""
	case !s.authorized(strings.TrimPrefix(auth, "Bearer ")):
		return writeJSON(w, http.StatusUnauthorized, apiError{Object: "error", Message: "Unauthorized"}), ""
	}

	if s.config.ErrorRate > 0 && rand.Float64() < s.config.ErrorRate {
		return writeJSON(w, http.StatusTooManyRequests, apiError{Object: "error", Message: "Requests rate limit exceeded", Type: "rate_limited"}), ""
	}

	var req chatRequest
	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&req); err != nil {
		return writeJSON(w, http.StatusBadRequest, apiError{Object: "error", Message: "Invalid JSON body", Type: "invalid_request_error"}), ""
	}

	if req.Model == "" {
		return writeJSON(w, http.StatusUnprocessableEntity, validationError{Object: "error", Detail: []validationItem{
			{Type: "missing", Loc: []string{"body", "model"}, Msg: "Field required"},
		}}), ""
	}
	if !s.knownModel(req.Model) {
		return writeJSON(w, http.StatusBadRequest, apiError{Object: "error", Message: "Invalid model: " + req.Model, Type: "invalid_model"}), req.Model
	}
	if len(req.Messages) == 0 {
		return writeJSON(w, http.StatusBadRequest, apiError{Object: "error", Message: "Conversation must have at least one message", Type: "invalid_request_error"}), req.Model
	}

	tokens := 0
	for i, msg := range req.Messages {
		if !validRoles[msg.Role] {
			return writeJSON(w, http.StatusUnprocessableEntity, validationError{Object: "error", Detail: []validationItem{{
				Type: "enum",
				Loc:  []string{"body", "messages", fmt.Sprint(i), "role"},
				Msg:  fmt.Sprintf("Input should be 'system', 'user', 'assistant' or 'tool', got '%s'", msg.Role),
			}}}), req.Model
		}
		tokens += len(strings.Fields(msg.Content))
	}
	if limit := s.contextLimit(req.Model); tokens > limit {
		return writeJSON(w, http.StatusBadRequest, apiError{
			Object:  "error",
			Message: fmt.Sprintf("Prompt contains %d tokens, too large for model with %d maximum context length", tokens, limit),
			Type:    "invalid_request_error",
		}), req.Model
	}

	content := s.reply(req.Messages[len(req.Messages)-1].Content)
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" && !json.Valid([]byte(content)) {
		encoded, _ := json.Marshal(map[string]string{"answer": content})
		content = string(encoded)
	}

	id := "cmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if req.Stream {
		s.stream(w, id, req.Model, content)
		return http.StatusOK, req.Model
	}

	completionTokens := len(strings.Fields(content))
	return writeJSON(w, http.StatusOK, types.ChatCompletion{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []types.Choice{{
			Message:      &types.ChatMessage{Role: "assistant", Content: content},
			FinishReason: ptr("stop"),
		}},
		Usage: &types.Usage{PromptTokens: tokens, CompletionTokens: completionTokens, TotalTokens: tokens + completionTokens},
	}), req.Model
}

// stream writes the content as server-sent chunks, one word per event
func (s *Server) stream(w http.ResponseWriter, id, model, content string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	created := time.Now().Unix()
	send := func(choice types.Choice) {
		chunk, _ := json.Marshal(types.ChatCompletion{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []types.Choice{choice},
		})
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		if flusher != nil {
			flusher.Flush()
		}
	}

	send(types.Choice{Delta: &types.ChatMessage{Role: "assistant"}})
	for _, part := range strings.SplitAfter(content, " ") {
		send(types.Choice{Delta: &types.ChatMessage{Content: part}})
	}
	send(types.Choice{Delta: &types.ChatMessage{}, FinishReason: ptr("stop")})
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" || !s.authorized(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")) {
		writeJSON(w, http.StatusUnauthorized, apiError{Object: "error", Message: "Unauthorized"})
		return
	}
	type model struct {
		ID     string `json:"id"`
		Object string `json:"object"`
	}
	models := []model{}
	for _, prefix := range s.config.ModelPrefixes {
		models = append(models, model{ID: prefix + "latest", Object: "model"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": models})
}

// authorized accepts the configured token, or any token except the
// deliberately invalid one when none is configured
func (s *Server) authorized(token string) bool {
	if token == "" || token == executor.InvalidToken {
		return false
	}
	return s.config.Token == "" || token == s.config.Token
}

func (s *Server) knownModel(model string) bool {
	if len(s.config.ModelPrefixes) == 0 {
		return true
	}
	for _, prefix := range s.config.ModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (s *Server) contextLimit(model string) int {
	if limit, err := fixture.TokenLimit(model); err == nil {
		return limit
	}
	return s.config.ContextLimit
}

func (s *Server) reply(last string) string {
	lower := strings.ToLower(last)
	for _, reply := range s.config.Replies {
		if strings.Contains(lower, strings.ToLower(reply.Contains)) {
			return reply.Answer
		}
	}
	return defaultAnswer
}

// wait applies the configured latency. It returns false when the client
// went away first.
func (s *Server) wait(r *http.Request) bool {
	delay := s.config.Latency
	if s.config.Jitter > 0 {
		delay += rand.N(s.config.Jitter)
	}
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-r.Context().Done():
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
	return status
}

func ptr(s string) *string { return &s }
