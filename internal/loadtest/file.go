package loadtest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Profile is a load test definition read from a file
type Profile struct {
	Config `yaml:",inline"`
	Task   *Task `yaml:"task,omitempty"`
}

// LoadFile reads a YAML, JSON or JSONC load profile. Fields left out keep
// their DefaultConfig value.
func LoadFile(filePath string) (*Profile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(filePath), ".jsonc") {
		data = jsonc.ToJSON(data)
	}

	profile, err := ParseProfile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return profile, nil
}

// ParseProfile decodes and validates a load profile document
func ParseProfile(data []byte) (*Profile, error) {
	profile := &Profile{Config: DefaultConfig()}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(profile); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse load profile: %w", err)
	}

	if err := profile.Config.Validate(); err != nil {
		return nil, err
	}
	if profile.Task != nil {
		if err := profile.Task.Validate(); err != nil {
			return nil, fmt.Errorf("task: %w", err)
		}
	}
	return profile, nil
}
