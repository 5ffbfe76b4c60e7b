// Package invoke adapts loaded module instances to caller-friendly
// invocation surfaces.
//
// Two layers compose here. ModuleInvoker is the base layer: it binds a
// runtime instance and flattens the instance's result-slice convention
// into plain Go values (no results is nil, one result is the value
// itself, several results are an ordered []any). TensorInvoker is a
// decorator over any Invoker: it converts framework tensors to runtime
// arrays on the way in and arrays back to tensors on the way out,
// leaving every other argument untouched. Decoration is composition,
// not subclassing; a TensorInvoker works over any Invoker
// implementation, including another decorator.
//
// Both layers expose the same two access styles: Resolve returns a
// reusable bound Func, Call resolves and invokes in one step. Name
// resolution is fresh on each Resolve and each Call.
package invoke

import (
	"context"
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/tensorvm/tcbridge/internal/ir"
	"github.com/tensorvm/tcbridge/internal/numeric"
	"github.com/tensorvm/tcbridge/internal/runtime"
)

// Func is a bound, invocable module function.
type Func func(ctx context.Context, args ...any) (any, error)

// Invoker resolves and calls named functions of one loaded module.
type Invoker interface {
	// Resolve binds name to an invocable Func. Unknown names fail
	// with a *runtime.LookupError.
	Resolve(name string) (Func, error)

	// Call resolves name and invokes it in one step.
	Call(ctx context.Context, name string, args ...any) (any, error)
}

// ModuleInvoker is the base invocation layer over a loaded instance.
// Arguments pass straight through to the runtime; results are
// flattened by arity.
type ModuleInvoker struct {
	inst *runtime.Instance
}

// NewModuleInvoker wraps a loaded instance.
func NewModuleInvoker(inst *runtime.Instance) *ModuleInvoker {
	return &ModuleInvoker{inst: inst}
}

// Instance returns the underlying loaded instance.
func (m *ModuleInvoker) Instance() *runtime.Instance { return m.inst }

func (m *ModuleInvoker) Resolve(name string) (Func, error) {
	fn, err := m.inst.Function(name)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, args ...any) (any, error) {
		results, err := fn.Invoke(ctx, args...)
		if err != nil {
			return nil, err
		}
		return flatten(results), nil
	}, nil
}

func (m *ModuleInvoker) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, err := m.Resolve(name)
	if err != nil {
		return nil, err
	}
	return fn(ctx, args...)
}

// flatten maps the runtime's uniform result slice to the caller
// convention: nil for none, the bare value for one, an ordered []any
// otherwise.
func flatten(results []*numeric.Array) any {
	switch len(results) {
	case 0:
		return nil
	case 1:
		return results[0]
	}
	out := make([]any, len(results))
	for i, r := range results {
		out[i] = r
	}
	return out
}

// TensorInvoker decorates an Invoker with tensor conversion. Tensor
// arguments become runtime arrays before delegation; array results
// become tensors on the way back. Non-tensor arguments and non-array
// results pass through unmodified.
type TensorInvoker struct {
	next Invoker
}

// NewTensorInvoker decorates next.
func NewTensorInvoker(next Invoker) *TensorInvoker {
	return &TensorInvoker{next: next}
}

func (t *TensorInvoker) Resolve(name string) (Func, error) {
	fn, err := t.next.Resolve(name)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, args ...any) (any, error) {
		converted := make([]any, len(args))
		for i, arg := range args {
			c, err := convertArg(arg)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			converted[i] = c
		}
		result, err := fn(ctx, converted...)
		if err != nil {
			return nil, err
		}
		return convertResult(result), nil
	}, nil
}

func (t *TensorInvoker) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, err := t.Resolve(name)
	if err != nil {
		return nil, err
	}
	return fn(ctx, args...)
}

func convertArg(arg any) (any, error) {
	tensor, ok := arg.(*tensors.Tensor)
	if !ok {
		return arg, nil
	}
	shape := tensor.Shape()
	switch shape.DType {
	case dtypes.Float32:
		flat, err := tensors.CopyFlatData[float32](tensor)
		if err != nil {
			return nil, err
		}
		return numeric.FromFloat32(shape.Dimensions, flat), nil
	case dtypes.Float64:
		flat, err := tensors.CopyFlatData[float64](tensor)
		if err != nil {
			return nil, err
		}
		return numeric.FromFloat64(shape.Dimensions, flat), nil
	case dtypes.Int32:
		flat, err := tensors.CopyFlatData[int32](tensor)
		if err != nil {
			return nil, err
		}
		return numeric.FromInt32(shape.Dimensions, flat), nil
	case dtypes.Int64:
		flat, err := tensors.CopyFlatData[int64](tensor)
		if err != nil {
			return nil, err
		}
		return numeric.FromInt64(shape.Dimensions, flat), nil
	}
	return nil, &ConversionError{DType: shape.DType.String()}
}

func convertResult(result any) any {
	switch r := result.(type) {
	case *numeric.Array:
		return toTensor(r)
	case []any:
		out := make([]any, len(r))
		for i, v := range r {
			out[i] = convertResult(v)
		}
		return out
	}
	return result
}

func toTensor(a *numeric.Array) *tensors.Tensor {
	switch a.DType() {
	case ir.F32:
		return tensors.FromFlatDataAndDimensions(a.Float32s(), a.Dims()...)
	case ir.F64:
		return tensors.FromFlatDataAndDimensions(a.Float64s(), a.Dims()...)
	case ir.I32:
		return tensors.FromFlatDataAndDimensions(a.Int32s(), a.Dims()...)
	}
	return tensors.FromFlatDataAndDimensions(a.Int64s(), a.Dims()...)
}
