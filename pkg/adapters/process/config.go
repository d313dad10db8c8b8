package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Interpreter describes how to run a program of one language.
// The program is written to the interpreter's stdin.
type Interpreter struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Environment map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
	Timeout     time.Duration     `yaml:"timeout" json:"timeout"`
}

// ConfigFile represents the structure of tools.yaml.
type ConfigFile struct {
	Interpreters []Interpreter `yaml:"interpreters" json:"interpreters"`
}

// DefaultInterpreters is used when no tools file exists.
func DefaultInterpreters() map[string]Interpreter {
	return map[string]Interpreter{
		"python": {
			Name:        "python",
			Command:     "python3",
			Args:        []string{"-"},
			Description: "Executes a Python 3 program and returns what it printed.",
		},
	}
}

// LoadInterpreters reads a configuration file (YAML or JSON) keyed by interpreter name.
// A missing file yields DefaultInterpreters.
func LoadInterpreters(path string) (map[string]Interpreter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultInterpreters(), nil
		}
		return nil, fmt.Errorf("failed to read tools config: %w", err)
	}

	var cfg ConfigFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	out := make(map[string]Interpreter)
	for _, in := range cfg.Interpreters {
		if in.Name == "" || in.Command == "" {
			continue
		}
		out[in.Name] = in
	}
	return out, nil
}
