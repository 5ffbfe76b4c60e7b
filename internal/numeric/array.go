// Package numeric provides the plain numeric-array value type the
// native runtime consumes and produces. Arrays carry a ranked shape
// and a flat, row-major element buffer.
package numeric

import (
	"fmt"

	"github.com/tensorvm/tcbridge/internal/ir"
)

// Array is a dense, row-major numeric array. The zero value is not
// usable; construct through the From* helpers or Zeros.
type Array struct {
	shape ir.Shape
	data  any // []float32 | []float64 | []int32 | []int64
}

// Zeros returns a zero-filled array of the given shape.
func Zeros(shape ir.Shape) *Array {
	n := shape.Elems()
	var data any
	switch shape.DType {
	case ir.F32:
		data = make([]float32, n)
	case ir.F64:
		data = make([]float64, n)
	case ir.I32:
		data = make([]int32, n)
	case ir.I64:
		data = make([]int64, n)
	default:
		panic(fmt.Sprintf("numeric: unsupported dtype %s", shape.DType))
	}
	return &Array{shape: shape, data: data}
}

func checkLen(shape ir.Shape, n int) {
	if shape.Elems() != n {
		panic(fmt.Sprintf("numeric: %d elements for shape %s (want %d)", n, shape, shape.Elems()))
	}
}

// FromFloat32 builds an F32 array over the given flat data. The slice
// is adopted, not copied.
func FromFloat32(dims []int, data []float32) *Array {
	shape := ir.TensorOf(ir.F32, dims...)
	checkLen(shape, len(data))
	return &Array{shape: shape, data: data}
}

// FromFloat64 builds an F64 array over the given flat data.
func FromFloat64(dims []int, data []float64) *Array {
	shape := ir.TensorOf(ir.F64, dims...)
	checkLen(shape, len(data))
	return &Array{shape: shape, data: data}
}

// FromInt32 builds an I32 array over the given flat data.
func FromInt32(dims []int, data []int32) *Array {
	shape := ir.TensorOf(ir.I32, dims...)
	checkLen(shape, len(data))
	return &Array{shape: shape, data: data}
}

// FromInt64 builds an I64 array over the given flat data.
func FromInt64(dims []int, data []int64) *Array {
	shape := ir.TensorOf(ir.I64, dims...)
	checkLen(shape, len(data))
	return &Array{shape: shape, data: data}
}

// FromLiteral materializes an IR constant payload as an array of the
// given shape, converting the float64 literal values to the dtype.
func FromLiteral(shape ir.Shape, vals []float64) *Array {
	checkLen(shape, len(vals))
	a := Zeros(shape)
	switch d := a.data.(type) {
	case []float32:
		for i, v := range vals {
			d[i] = float32(v)
		}
	case []float64:
		copy(d, vals)
	case []int32:
		for i, v := range vals {
			d[i] = int32(v)
		}
	case []int64:
		for i, v := range vals {
			d[i] = int64(v)
		}
	}
	return a
}

// Shape returns the array's shape. Callers must not mutate the
// returned dims.
func (a *Array) Shape() ir.Shape { return a.shape }

// DType returns the element type.
func (a *Array) DType() ir.DType { return a.shape.DType }

// Dims returns the dimensions (nil for scalars).
func (a *Array) Dims() []int { return a.shape.Dims }

// Len returns the flat element count.
func (a *Array) Len() int { return a.shape.Elems() }

// Data returns the flat backing slice as one of []float32, []float64,
// []int32, []int64.
func (a *Array) Data() any { return a.data }

// Float32s returns the backing slice; panics on dtype mismatch.
func (a *Array) Float32s() []float32 { return a.data.([]float32) }

// Float64s returns the backing slice; panics on dtype mismatch.
func (a *Array) Float64s() []float64 { return a.data.([]float64) }

// Int32s returns the backing slice; panics on dtype mismatch.
func (a *Array) Int32s() []int32 { return a.data.([]int32) }

// Int64s returns the backing slice; panics on dtype mismatch.
func (a *Array) Int64s() []int64 { return a.data.([]int64) }

func (a *Array) String() string {
	return fmt.Sprintf("%s%v", a.shape, a.data)
}

// Equal reports exact equality of shape, dtype and every element.
func Equal(a, b *Array) bool {
	if !a.shape.Equal(b.shape) {
		return false
	}
	switch x := a.data.(type) {
	case []float32:
		return sliceEqual(x, b.data.([]float32))
	case []float64:
		return sliceEqual(x, b.data.([]float64))
	case []int32:
		return sliceEqual(x, b.data.([]int32))
	case []int64:
		return sliceEqual(x, b.data.([]int64))
	}
	return false
}

func sliceEqual[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Coerce normalizes an invocation argument to an Array. Arrays pass
// through; Go scalars become rank-zero arrays of the matching dtype.
// Anything else is rejected.
func Coerce(v any) (*Array, error) {
	switch x := v.(type) {
	case *Array:
		return x, nil
	case float32:
		return &Array{shape: ir.Scalar(ir.F32), data: []float32{x}}, nil
	case float64:
		return &Array{shape: ir.Scalar(ir.F64), data: []float64{x}}, nil
	case int32:
		return &Array{shape: ir.Scalar(ir.I32), data: []int32{x}}, nil
	case int64:
		return &Array{shape: ir.Scalar(ir.I64), data: []int64{x}}, nil
	case int:
		return &Array{shape: ir.Scalar(ir.I64), data: []int64{int64(x)}}, nil
	}
	return nil, fmt.Errorf("cannot use %T as a runtime array value", v)
}
