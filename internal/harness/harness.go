// Package harness provides declarative conformance testing for
// compiled modules.
//
// Scenarios are YAML files pairing a module source with a flow of
// invocations and expected outcomes:
//
//	name: elementwise_add
//	description: "add sums element for element"
//	module: |
//	  module @main {
//	    func @add(%arg0: tensor<2xf32>, %arg1: tensor<2xf32>) -> tensor<2xf32> {
//	      %0 = add %arg0, %arg1 : tensor<2xf32>
//	      return %0 : tensor<2xf32>
//	    }
//	  }
//	flow:
//	  - invoke: add
//	    args:
//	      - { dtype: f32, dims: [2], data: [1, 2] }
//	      - { dtype: f32, dims: [2], data: [3, 4] }
//	    expect:
//	      results:
//	        - { dtype: f32, dims: [2], data: [4, 6] }
//
// A Runner executes the same scenario under any (target, driver)
// pair, so one scenario file doubles as a cross-backend conformance
// check. Each run produces a deterministic Snapshot suitable for
// golden comparison.
package harness

import (
	"context"
	"fmt"

	"github.com/tensorvm/tcbridge/internal/bridge"
	"github.com/tensorvm/tcbridge/internal/invoke"
	"github.com/tensorvm/tcbridge/internal/ir"
	"github.com/tensorvm/tcbridge/internal/numeric"
	"github.com/tensorvm/tcbridge/internal/runtime"
)

// Runner executes scenarios under one target and driver pair. The
// zero value uses the defaults.
type Runner struct {
	Target string
	Driver string
}

// Snapshot is the deterministic record of one scenario run.
type Snapshot struct {
	Scenario string       `json:"scenario"`
	Target   string       `json:"target"`
	Driver   string       `json:"driver"`
	Steps    []StepResult `json:"steps"`
}

// StepResult records the outcome of one flow step.
type StepResult struct {
	Invoke  string        `json:"invoke"`
	Status  string        `json:"status"` // "ok" | "error"
	Results []ResultValue `json:"results,omitempty"`
	Error   string        `json:"error,omitempty"` // failure kind
}

// ResultValue is one result in a snapshot.
type ResultValue struct {
	Shape string    `json:"shape"`
	Data  []float64 `json:"data"`
}

// Run compiles the scenario's module, loads it, and executes the
// flow. It returns the snapshot and an error if any step deviated
// from its expectation.
func (r Runner) Run(ctx context.Context, s *Scenario) (*Snapshot, error) {
	b := bridge.New(bridge.Options{Target: r.Target, Driver: r.Driver})
	artifact, err := b.CompileSource(s.Module)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	mod, err := b.Load(ctx, artifact)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	defer mod.Close(ctx)
	inv := invoke.NewModuleInvoker(mod.Instance())

	snap := &Snapshot{
		Scenario: s.Name,
		Target:   r.targetName(),
		Driver:   r.driverName(),
	}
	for i, step := range s.Flow {
		result, err := runStep(ctx, inv, step)
		snap.Steps = append(snap.Steps, result)
		if err != nil {
			return snap, fmt.Errorf("scenario %q step %d (%s): %w", s.Name, i, step.Invoke, err)
		}
	}
	return snap, nil
}

func (r Runner) targetName() string {
	if r.Target == "" {
		return "vm"
	}
	return r.Target
}

func (r Runner) driverName() string {
	if r.Driver == "" {
		return runtime.DefaultDriver
	}
	return r.Driver
}

func runStep(ctx context.Context, inv invoke.Invoker, step Step) (StepResult, error) {
	args := make([]any, len(step.Args))
	for i, v := range step.Args {
		a, err := v.array()
		if err != nil {
			return StepResult{Invoke: step.Invoke, Status: "error"}, fmt.Errorf("arg %d: %w", i, err)
		}
		args[i] = a
	}

	result, err := inv.Call(ctx, step.Invoke, args...)
	if err != nil {
		kind := errorKind(err)
		sr := StepResult{Invoke: step.Invoke, Status: "error", Error: kind}
		if step.Expect == nil || step.Expect.Error == "" {
			return sr, err
		}
		if step.Expect.Error != kind {
			return sr, fmt.Errorf("expected %s error, got %s: %w", step.Expect.Error, kind, err)
		}
		return sr, nil
	}

	arrays := resultArrays(result)
	sr := StepResult{Invoke: step.Invoke, Status: "ok"}
	for _, a := range arrays {
		sr.Results = append(sr.Results, ResultValue{Shape: a.Shape().String(), Data: toFloat64s(a)})
	}

	if step.Expect == nil {
		return sr, nil
	}
	if step.Expect.Error != "" {
		return sr, fmt.Errorf("expected %s error, got success", step.Expect.Error)
	}
	if step.Expect.Results != nil {
		if len(arrays) != len(step.Expect.Results) {
			return sr, fmt.Errorf("expected %d results, got %d", len(step.Expect.Results), len(arrays))
		}
		for i, want := range step.Expect.Results {
			wantArr, err := want.array()
			if err != nil {
				return sr, fmt.Errorf("expected result %d: %w", i, err)
			}
			if !numeric.Equal(arrays[i], wantArr) {
				return sr, fmt.Errorf("result %d: have %v, want %v", i, arrays[i], wantArr)
			}
		}
	}
	return sr, nil
}

func (v Value) array() (*numeric.Array, error) {
	dtype, err := ir.ParseDType(v.DType)
	if err != nil {
		return nil, err
	}
	shape := ir.TensorOf(dtype, v.Dims...)
	if shape.Elems() != len(v.Data) {
		return nil, fmt.Errorf("%d data values for shape %s (want %d)", len(v.Data), shape, shape.Elems())
	}
	return numeric.FromLiteral(shape, v.Data), nil
}

func resultArrays(result any) []*numeric.Array {
	switch r := result.(type) {
	case nil:
		return nil
	case *numeric.Array:
		return []*numeric.Array{r}
	case []any:
		out := make([]*numeric.Array, 0, len(r))
		for _, v := range r {
			if a, ok := v.(*numeric.Array); ok {
				out = append(out, a)
			}
		}
		return out
	}
	return nil
}

func errorKind(err error) string {
	switch {
	case runtime.IsLookupError(err):
		return "lookup"
	case invoke.IsConversionError(err):
		return "conversion"
	}
	return "invoke"
}

func toFloat64s(a *numeric.Array) []float64 {
	out := make([]float64, a.Len())
	switch x := a.Data().(type) {
	case []float32:
		for i, v := range x {
			out[i] = float64(v)
		}
	case []float64:
		copy(out, x)
	case []int32:
		for i, v := range x {
			out[i] = float64(v)
		}
	case []int64:
		for i, v := range x {
			out[i] = float64(v)
		}
	}
	return out
}
