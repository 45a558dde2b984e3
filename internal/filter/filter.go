package filter

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// Search evaluates a JMESPath expression against a JSON document
func Search(jsonStr string, expression string) (interface{}, error) {
	var data interface{}
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	jp, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid JMESPath expression '%s': %w", expression, err)
	}

	result, err := jp.Search(data)
	if err != nil {
		return nil, fmt.Errorf("JMESPath search failed: %w", err)
	}
	return result, nil
}

// Stringify converts a JMESPath result to the string used for comparisons
func Stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// Plain notation so timestamps and token counts compare literally
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return fmt.Sprintf("%t", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// Match compares an actual value against an expectation. An expectation
// wrapped in slashes (/pattern/) is a regular expression; anything else is a
// literal comparison. The returned message is empty on success.
func Match(actual string, expected string) (bool, string) {
	if len(expected) >= 2 && strings.HasPrefix(expected, "/") && strings.HasSuffix(expected, "/") {
		pattern := expected[1 : len(expected)-1]
		matched, err := regexp.MatchString(pattern, actual)
		if err != nil {
			return false, fmt.Sprintf("invalid regex pattern '%s': %v", pattern, err)
		}
		if !matched {
			return false, fmt.Sprintf("value '%s' does not match pattern '%s'", actual, pattern)
		}
		return true, ""
	}

	if actual != expected {
		return false, fmt.Sprintf("expected '%s' but got '%s'", expected, actual)
	}
	return true, ""
}

// IsValidJMESPath checks if an expression is valid JMESPath syntax
func IsValidJMESPath(expression string) bool {
	_, err := jmespath.Compile(expression)
	return err == nil
}
