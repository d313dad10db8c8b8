package scripted

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step is one scripted answer as written in a script file.
// Exactly one of Choice, Reply or Error is set.
type Step struct {
	Node   string `yaml:"node"`
	Choice string `yaml:"choice,omitempty"`
	Reason string `yaml:"reason,omitempty"`
	Reply  string `yaml:"reply,omitempty"`
	Error  string `yaml:"error,omitempty"`
}

// FromSteps builds a Reasoner replaying steps in order.
func FromSteps(steps []Step) (*Reasoner, error) {
	r := NewReasoner()
	for i, s := range steps {
		if s.Node == "" {
			return nil, fmt.Errorf("step %d: missing node", i)
		}
		set := 0
		for _, v := range []string{s.Choice, s.Reply, s.Error} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			return nil, fmt.Errorf("step %d (%s): exactly one of choice, reply or error is required", i, s.Node)
		}
		switch {
		case s.Choice != "":
			r.Choose(s.Node, s.Choice, s.Reason)
		case s.Reply != "":
			r.Reply(s.Node, s.Reply)
		default:
			r.Fail(s.Node, errors.New(s.Error))
		}
	}
	return r, nil
}

// Load reads a YAML list of steps from path.
func Load(path string) (*Reasoner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var steps []Step
	if err := yaml.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("failed to parse script %s: %w", path, err)
	}
	return FromSteps(steps)
}
