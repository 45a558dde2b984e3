package expect

import (
	"bufio"
	"encoding/json"
	"strings"

	"github.com/studiowebux/chatbench/internal/types"
)

// choiceContent decodes the content of a message or delta, which is either a
// plain string or a list of typed chunks
type choiceContent struct {
	Content json.RawMessage `json:"content"`
}

type completionEnvelope struct {
	Choices []struct {
		Message *choiceContent `json:"message"`
		Delta   *choiceContent `json:"delta"`
	} `json:"choices"`
}

// ExtractContent returns the generated text of a response. For event streams
// the delta contents of every chunk are concatenated. The boolean reports
// whether the response carried any generated content at all.
func ExtractContent(res *types.RequestResult) (string, bool) {
	if res == nil || res.Body == "" {
		return "", false
	}
	if res.Stream || strings.HasPrefix(strings.TrimSpace(res.Body), "data:") {
		return streamContent(res.Body)
	}

	var env completionEnvelope
	if err := json.Unmarshal([]byte(res.Body), &env); err != nil {
		return "", false
	}
	if len(env.Choices) == 0 || env.Choices[0].Message == nil {
		return "", false
	}
	return decodeContent(env.Choices[0].Message.Content)
}

func streamContent(body string) (string, bool) {
	var sb strings.Builder
	present := false

	for _, payload := range StreamEvents(body) {
		var env completionEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			continue
		}
		if len(env.Choices) == 0 || env.Choices[0].Delta == nil {
			continue
		}
		if text, ok := decodeContent(env.Choices[0].Delta.Content); ok {
			sb.WriteString(text)
			present = true
		}
	}
	return sb.String(), present
}

// StreamEvents returns the data payloads of an event stream, without the
// terminating [DONE] marker
func StreamEvents(body string) []string {
	var events []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), len(body)+1)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}
		if payload != "" {
			events = append(events, payload)
		}
	}
	return events
}

func decodeContent(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, true
	}

	var chunks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return "", false
	}
	var sb strings.Builder
	for _, chunk := range chunks {
		sb.WriteString(chunk.Text)
	}
	return sb.String(), true
}

// ErrorMessage extracts the human-readable message of an error response.
// It understands {"message": ...}, {"error": {"message": ...}} and the
// {"detail": ...} shape of validation errors.
func ErrorMessage(body string) string {
	var env struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
		Detail  json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return ""
	}

	if msg := rawText(env.Message); msg != "" {
		return msg
	}
	if len(env.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		if msg := rawText(env.Error); msg != "" {
			return msg
		}
	}
	return rawText(env.Detail)
}

// rawText renders a JSON value as text: strings as-is, anything else as compact JSON
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return string(raw)
}
