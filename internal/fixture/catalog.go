package fixture

import (
	"time"

	"github.com/studiowebux/chatbench/internal/executor"
	"github.com/studiowebux/chatbench/internal/expect"
)

func user(content string) Message {
	return Message{Role: "user", Content: content}
}

// Builtin returns the default Mistral chat-completion suite
func Builtin() *Suite {
	return &Suite{Scenarios: []Scenario{
		// Positive
		{
			Name:        "valid_request",
			Kind:        KindPositive,
			Description: "A plain user message returns a well-formed completion",
			Request:     Request{Messages: []Message{user("Hello, how are you?")}},
			Expect: expect.Expectation{
				Status:          200,
				Schema:          expect.SchemaChatCompletion,
				ContentNotEmpty: true,
			},
		},
		{
			Name:        "response_format_json",
			Kind:        KindPositive,
			Description: "response_format json_object yields JSON content",
			Request: Request{
				Messages: []Message{user("Give me the average age of the population in France for the last 5 years. Return result in short json format")},
				Params:   map[string]any{"response_format": map[string]any{"type": "json_object"}},
			},
			Expect: expect.Expectation{
				Status:      200,
				Schema:      expect.SchemaChatCompletion,
				ContentJSON: true,
			},
		},
		{
			Name:        "response_time",
			Kind:        KindPositive,
			Description: "A short prompt is answered in under ten seconds",
			Request:     Request{Messages: []Message{user("Tell me a quick joke")}},
			Expect: expect.Expectation{
				Status:          200,
				ContentNotEmpty: true,
				MaxLatency:      10 * time.Second,
			},
		},
		{
			Name:        "multiple_messages",
			Kind:        KindPositive,
			Description: "The model uses earlier turns of the conversation",
			Request: Request{Messages: []Message{
				user("Hi!"),
				{Role: "assistant", Content: "Hello! How can I help you today?"},
				user("I feel really good today because i win 199 euros at lottery"),
				{Role: "assistant", Content: "I'm glad to hear that!"},
				user("How much do i won in the lottery ? give me a short answer"),
			}},
			Expect: expect.Expectation{
				Status:          200,
				Schema:          expect.SchemaChatCompletion,
				ContentContains: []string{"199"},
			},
		},
		{
			Name:        "maths_message",
			Kind:        KindPositive,
			Description: "Simple arithmetic is answered correctly",
			Request:     Request{Messages: []Message{user("What is 12 + 9 ?")}},
			Expect: expect.Expectation{
				Status:          200,
				Schema:          expect.SchemaChatCompletion,
				ContentContains: []string{"21"},
			},
		},
		{
			Name:        "streaming_response",
			Kind:        KindPositive,
			Description: "stream=true returns an event stream",
			Request: Request{
				Messages: []Message{user("Tell me a quick joke")},
				Params:   map[string]any{"max_tokens": 50},
				Stream:   true,
			},
			Expect: expect.Expectation{
				Status:          200,
				Headers:         map[string]string{"Content-Type": "text/event-stream"},
				Schema:          expect.SchemaChunk,
				ContentNotEmpty: true,
			},
		},

		// Edge cases
		{
			Name:        "empty_messages",
			Kind:        KindEdge,
			Description: "An empty conversation is rejected",
			Request:     Request{Messages: []Message{}},
			Expect: expect.Expectation{
				Status:          400,
				MessageContains: "Conversation must have at least one message",
				NoContent:       true,
			},
		},
		{
			Name:        "long_message",
			Kind:        KindEdge,
			Description: "A long input message is accepted",
			Request:     Request{Messages: []Message{{Role: "user", Content: "This is a test message. ", Repeat: 100}}},
			Expect: expect.Expectation{
				Status:          200,
				Schema:          expect.SchemaChatCompletion,
				ContentNotEmpty: true,
			},
		},
		{
			Name:        "token_limit",
			Kind:        KindEdge,
			Description: "Input beyond the context window is rejected",
			Request:     Request{ExceedTokenLimit: 5000},
			Expect: expect.Expectation{
				Status:          400,
				MessageContains: "too large for model with",
				NoContent:       true,
			},
		},

		// Negative
		{
			Name:        "unauthorized_request",
			Kind:        KindNegative,
			Description: "A request without an API key is rejected",
			Request: Request{
				Messages: []Message{user("Hello, how are you?")},
				Auth:     executor.AuthNone,
			},
			Expect: expect.Expectation{
				Status:          401,
				MessageContains: "No API key found in request",
				NoContent:       true,
			},
		},
		{
			Name:        "invalid_token",
			Kind:        KindNegative,
			Description: "A request with an invalid API key is rejected",
			Request: Request{
				Messages: []Message{user("Hello, how are you?")},
				Auth:     executor.AuthInvalid,
			},
			Expect: expect.Expectation{
				Status:    401,
				NoContent: true,
			},
		},
		{
			Name:        "unsupported_role",
			Kind:        KindNegative,
			Description: "An unknown message role fails validation",
			Request:     Request{Messages: []Message{{Role: "invalid_role", Content: "Hello"}}},
			Expect: expect.Expectation{
				Status:    422,
				Fields:    map[string]string{"detail[0].msg": "/invalid_role/"},
				NoContent: true,
			},
		},
		{
			Name:             "invalid_json",
			Kind:             KindNegative,
			Description:      "A malformed JSON body is rejected",
			ModelIndependent: true,
			Request: Request{
				RawBody: "{'model': '{{model}}', 'messages': [{role: 'user', 'content': 'Hi'}]}",
			},
			Expect: expect.Expectation{
				StatusClass: expect.Class4xx,
				NoContent:   true,
			},
		},
		{
			Name:             "invalid_model",
			Kind:             KindNegative,
			Description:      "An unknown model is rejected",
			ModelIndependent: true,
			Request: Request{
				Model:    "invalid-model",
				Messages: []Message{user("Hello, how are you?")},
			},
			Expect: expect.Expectation{
				StatusClass: expect.Class4xx,
				NoContent:   true,
			},
		},
		{
			Name:             "missing_model",
			Kind:             KindNegative,
			Description:      "A request without a model is rejected",
			ModelIndependent: true,
			Request: Request{
				OmitModel: true,
				Messages:  []Message{user("Hello, how are you?")},
			},
			Expect: expect.Expectation{
				StatusClass: expect.Class4xx,
				NoContent:   true,
			},
		},
	}}
}
