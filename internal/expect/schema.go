package expect

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/studiowebux/chatbench/internal/types"
	"github.com/xeipuuv/gojsonschema"
)

// Built-in schema names
const (
	SchemaChatCompletion = "chat_completion"
	SchemaChunk          = "chat_completion_chunk"
	SchemaError          = "error"
)

var builtinSchemas = map[string]string{
	SchemaChatCompletion: `{
  "type": "object",
  "required": ["id", "object", "created", "model", "choices", "usage"],
  "properties": {
    "id": {"type": "string"},
    "object": {"type": "string"},
    "created": {"type": "integer"},
    "model": {"type": "string"},
    "choices": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["index", "message", "finish_reason"],
        "properties": {
          "index": {"type": "integer"},
          "message": {
            "type": "object",
            "required": ["role", "content"],
            "properties": {"role": {"type": "string"}}
          }
        }
      }
    },
    "usage": {
      "type": "object",
      "required": ["prompt_tokens", "completion_tokens", "total_tokens"],
      "properties": {
        "prompt_tokens": {"type": "integer"},
        "completion_tokens": {"type": "integer"},
        "total_tokens": {"type": "integer"}
      }
    }
  }
}`,
	SchemaChunk: `{
  "type": "object",
  "required": ["id", "choices"],
  "properties": {
    "id": {"type": "string"},
    "choices": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["delta"],
        "properties": {"delta": {"type": "object"}}
      }
    }
  }
}`,
	SchemaError: `{
  "type": "object",
  "anyOf": [
    {"required": ["message"]},
    {"required": ["detail"]},
    {"required": ["error"]}
  ]
}`,
}

var schemaCache sync.Map // name -> *gojsonschema.Schema

// compiledSchema resolves a built-in schema name or a path to a JSON schema file
func compiledSchema(name string) (*gojsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(name); ok {
		return cached.(*gojsonschema.Schema), nil
	}

	var loader gojsonschema.JSONLoader
	if src, ok := builtinSchemas[name]; ok {
		loader = gojsonschema.NewStringLoader(src)
	} else if strings.HasSuffix(name, ".json") {
		abs, err := filepath.Abs(name)
		if err != nil {
			return nil, fmt.Errorf("invalid schema path %q: %w", name, err)
		}
		loader = gojsonschema.NewReferenceLoader("file://" + filepath.ToSlash(abs))
	} else {
		return nil, fmt.Errorf("unknown schema %q (expected %s, %s, %s or a .json file)", name, SchemaChatCompletion, SchemaChunk, SchemaError)
	}

	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema %q: %w", name, err)
	}
	schemaCache.Store(name, schema)
	return schema, nil
}

// ValidateSchema validates a response body against a schema. Event streams
// are validated chunk by chunk.
func ValidateSchema(name string, res *types.RequestResult) error {
	schema, err := compiledSchema(name)
	if err != nil {
		return err
	}

	documents := []string{res.Body}
	if res.Stream || strings.HasPrefix(strings.TrimSpace(res.Body), "data:") {
		documents = StreamEvents(res.Body)
		if len(documents) == 0 {
			return fmt.Errorf("schema %s: event stream has no data events", name)
		}
	}

	for i, doc := range documents {
		result, err := schema.Validate(gojsonschema.NewStringLoader(doc))
		if err != nil {
			return fmt.Errorf("schema %s: response is not valid JSON: %w", name, err)
		}
		if !result.Valid() {
			errors := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				errors = append(errors, e.String())
			}
			prefix := "schema " + name
			if len(documents) > 1 {
				prefix = fmt.Sprintf("schema %s (event %d)", name, i+1)
			}
			return fmt.Errorf("%s: %s", prefix, strings.Join(errors, "; "))
		}
	}
	return nil
}
