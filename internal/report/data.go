package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/studiowebux/chatbench/internal/config"
	"gopkg.in/yaml.v3"
)

// JSONEmitter writes the report as indented JSON
type JSONEmitter struct {
	Path string
}

func (e *JSONEmitter) Emit(r *Report) error {
	if err := prepare(r, e.Path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(e.Path, data, config.FilePermissions); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// YAMLEmitter writes the report as YAML
type YAMLEmitter struct {
	Path string
}

func (e *YAMLEmitter) Emit(r *Report) error {
	if err := prepare(r, e.Path); err != nil {
		return err
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(e.Path, data, config.FilePermissions); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
