package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: one module, compiled
// once, exercised by a flow of invocations with expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden snapshots are
	// stored under it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Module is the textual module source.
	Module string `yaml:"module"`

	// Flow contains the invocations to run, in order.
	Flow []Step `yaml:"flow"`
}

// Step is one invocation in a scenario flow.
type Step struct {
	// Invoke names the function to call.
	Invoke string `yaml:"invoke"`

	// Args contains the positional arguments.
	Args []Value `yaml:"args,omitempty"`

	// Expect specifies the expected outcome. If nil the step only
	// has to succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Value is a literal array value in a scenario file. Omitting dims
// makes a scalar.
type Value struct {
	DType string    `yaml:"dtype"`
	Dims  []int     `yaml:"dims,omitempty"`
	Data  []float64 `yaml:"data"`
}

// Expect specifies the expected outcome of a step: either exact
// result values or a failure kind.
type Expect struct {
	// Results are the expected results in declaration order,
	// compared element for element.
	Results []Value `yaml:"results,omitempty"`

	// Error is the expected failure kind: "lookup", "conversion",
	// or "invoke". Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and validates one scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s has no name", path)
	}
	if s.Module == "" {
		return nil, fmt.Errorf("scenario %q has no module", s.Name)
	}
	if len(s.Flow) == 0 {
		return nil, fmt.Errorf("scenario %q has an empty flow", s.Name)
	}
	for i, step := range s.Flow {
		if step.Invoke == "" {
			return nil, fmt.Errorf("scenario %q step %d names no function", s.Name, i)
		}
	}
	return &s, nil
}
