package fixture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// LoadFile parses a YAML, JSON or JSONC scenario file. The document is either
// a suite (models, delay, scenarios) or a bare list of scenarios.
func LoadFile(filePath string) (*Suite, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(filePath), ".jsonc") {
		data = jsonc.ToJSON(data)
	}

	suite, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return suite, nil
}

// Parse decodes a scenario document. YAML is a superset of JSON, so both
// formats go through the same decoder. Scenarios without a kind are positive.
func Parse(data []byte) (*Suite, error) {
	var probe yaml.Node
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}
	if len(probe.Content) == 0 {
		return nil, fmt.Errorf("failed to parse scenarios: empty document")
	}

	suite := &Suite{}
	if probe.Content[0].Kind == yaml.SequenceNode {
		if err := decodeStrict(data, &suite.Scenarios); err != nil {
			return nil, fmt.Errorf("failed to parse scenarios: %w", err)
		}
	} else if err := decodeStrict(data, suite); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}

	for i := range suite.Scenarios {
		if suite.Scenarios[i].Kind == "" {
			suite.Scenarios[i].Kind = KindPositive
		}
	}
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return suite, nil
}

func decodeStrict(data []byte, out any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty document")
		}
		return err
	}
	return nil
}

// Filter selects scenarios by kind and by a regular expression on the name.
// Empty kinds or an empty pattern select everything.
func Filter(scenarios []Scenario, kinds []Kind, pattern string) ([]Scenario, error) {
	var re *regexp.Regexp
	if pattern != "" {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario pattern %q: %w", pattern, err)
		}
		re = compiled
	}

	wanted := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}

	selected := make([]Scenario, 0, len(scenarios))
	for _, sc := range scenarios {
		if len(wanted) > 0 && !wanted[sc.Kind] {
			continue
		}
		if re != nil && !re.MatchString(sc.Name) {
			continue
		}
		selected = append(selected, sc)
	}
	return selected, nil
}

// Suggest returns up to limit scenario names that fuzzily match pattern,
// best match first
func Suggest(scenarios []Scenario, pattern string, limit int) []string {
	names := make([]string, len(scenarios))
	for i, sc := range scenarios {
		names[i] = sc.Name
	}
	matches := fuzzy.Find(pattern, names)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Str
	}
	return out
}
