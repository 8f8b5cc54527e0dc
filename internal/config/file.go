package config

import (
	"bytes"
	"fmt"
	"os"

	yaml "go.yaml.in/yaml/v3"
)

// File is the optional YAML config file. Unknown keys are rejected.
type File struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	Dynamic `yaml:",inline"`
}

func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return ParseFile(data)
}

func ParseFile(data []byte) (File, error) {
	var f File
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("yaml decode: %w", err)
	}
	return f, nil
}
