package invoke

import (
	"context"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorvm/tcbridge/internal/codegen"
	"github.com/tensorvm/tcbridge/internal/ir"
	"github.com/tensorvm/tcbridge/internal/lower"
	"github.com/tensorvm/tcbridge/internal/numeric"
	"github.com/tensorvm/tcbridge/internal/runtime"
)

func loadModule(t *testing.T, src string) *runtime.Instance {
	t.Helper()
	m, err := ir.Parse(src)
	require.NoError(t, err)
	require.NoError(t, lower.Run(m, lower.Options{}))
	data, err := codegen.Compile(m, "")
	require.NoError(t, err)
	inst, err := runtime.Load(context.Background(), data, runtime.Config{})
	require.NoError(t, err)
	return inst
}

func flatData[T float32 | float64 | int32 | int64](t *testing.T, tensor *tensors.Tensor) []T {
	t.Helper()
	flat, err := tensors.CopyFlatData[T](tensor)
	require.NoError(t, err)
	return flat
}

const calcSource = `module @calc {
  func @add(%arg0: tensor<4xf32>, %arg1: tensor<4xf32>) -> tensor<4xf32> {
    %0 = add %arg0, %arg1 : tensor<4xf32>
    return %0 : tensor<4xf32>
  }
  func @minmax(%arg0: f64, %arg1: f64) -> (f64, f64) {
    %0 = sub %arg0, %arg1 : f64
    return %0, %arg1 : (f64, f64)
  }
  func @noop(%arg0: i32) -> () {
    return
  }
}
`

func TestModuleInvoker_SingleResult(t *testing.T) {
	inv := NewModuleInvoker(loadModule(t, calcSource))

	fn, err := inv.Resolve("add")
	require.NoError(t, err)

	result, err := fn(context.Background(),
		numeric.FromFloat32([]int{4}, []float32{1, 2, 3, 4}),
		numeric.FromFloat32([]int{4}, []float32{4, 3, 2, 1}))
	require.NoError(t, err)

	arr, ok := result.(*numeric.Array)
	require.True(t, ok, "single result should be a bare array, got %T", result)
	assert.Equal(t, []float32{5, 5, 5, 5}, arr.Float32s())
}

func TestModuleInvoker_MultiResultOrdered(t *testing.T) {
	inv := NewModuleInvoker(loadModule(t, calcSource))

	result, err := inv.Call(context.Background(), "minmax", 10.0, 4.0)
	require.NoError(t, err)

	list, ok := result.([]any)
	require.True(t, ok, "multiple results should come back as []any, got %T", result)
	require.Len(t, list, 2)
	assert.Equal(t, []float64{6}, list[0].(*numeric.Array).Float64s())
	assert.Equal(t, []float64{4}, list[1].(*numeric.Array).Float64s())
}

func TestModuleInvoker_ZeroResult(t *testing.T) {
	inv := NewModuleInvoker(loadModule(t, calcSource))

	result, err := inv.Call(context.Background(), "noop", int32(1))
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestModuleInvoker_UnknownName(t *testing.T) {
	inv := NewModuleInvoker(loadModule(t, calcSource))

	_, err := inv.Resolve("missing")
	assert.True(t, runtime.IsLookupError(err))

	_, err = inv.Call(context.Background(), "missing")
	assert.True(t, runtime.IsLookupError(err))
}

func TestTensorInvoker_RoundTrip(t *testing.T) {
	inv := NewTensorInvoker(NewModuleInvoker(loadModule(t, calcSource)))

	a := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 4)
	b := tensors.FromFlatDataAndDimensions([]float32{10, 20, 30, 40}, 4)
	result, err := inv.Call(context.Background(), "add", a, b)
	require.NoError(t, err)

	out, ok := result.(*tensors.Tensor)
	require.True(t, ok, "array result should come back as a tensor, got %T", result)
	assert.Equal(t, []int{4}, out.Shape().Dimensions)
	assert.Equal(t, []float32{11, 22, 33, 44}, flatData[float32](t, out))
}

func TestTensorInvoker_MultiResultConversion(t *testing.T) {
	inv := NewTensorInvoker(NewModuleInvoker(loadModule(t, calcSource)))

	a := tensors.FromScalar(10.0)
	b := tensors.FromScalar(4.0)
	result, err := inv.Call(context.Background(), "minmax", a, b)
	require.NoError(t, err)

	list, ok := result.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, []float64{6}, flatData[float64](t, list[0].(*tensors.Tensor)))
	assert.Equal(t, []float64{4}, flatData[float64](t, list[1].(*tensors.Tensor)))
}

func TestTensorInvoker_NonTensorPassthrough(t *testing.T) {
	inv := NewTensorInvoker(NewModuleInvoker(loadModule(t, calcSource)))

	// Plain arrays and scalars bypass conversion entirely.
	fn, err := inv.Resolve("add")
	require.NoError(t, err)
	result, err := fn(context.Background(),
		numeric.FromFloat32([]int{4}, []float32{1, 1, 1, 1}),
		numeric.FromFloat32([]int{4}, []float32{2, 2, 2, 2}))
	require.NoError(t, err)
	out, ok := result.(*tensors.Tensor)
	require.True(t, ok)
	assert.Equal(t, []float32{3, 3, 3, 3}, flatData[float32](t, out))
}

func TestTensorInvoker_UnsupportedDType(t *testing.T) {
	inv := NewTensorInvoker(NewModuleInvoker(loadModule(t, calcSource)))

	bad := tensors.FromFlatDataAndDimensions([]complex64{1, 2, 3, 4}, 4)
	_, err := inv.Call(context.Background(), "add", bad,
		tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 4))
	require.Error(t, err)
	assert.True(t, IsConversionError(err))
}

func TestTensorInvoker_UnknownNamePropagates(t *testing.T) {
	inv := NewTensorInvoker(NewModuleInvoker(loadModule(t, calcSource)))

	_, err := inv.Resolve("missing")
	assert.True(t, runtime.IsLookupError(err))

	_, err = inv.Call(context.Background(), "missing")
	assert.True(t, runtime.IsLookupError(err))
}

func TestTensorInvoker_DecoratesAnyInvoker(t *testing.T) {
	// A decorator stacked on another decorator still resolves and
	// converts through the chain.
	inv := NewTensorInvoker(NewTensorInvoker(NewModuleInvoker(loadModule(t, calcSource))))

	a := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 4)
	b := tensors.FromFlatDataAndDimensions([]float32{4, 3, 2, 1}, 4)
	result, err := inv.Call(context.Background(), "add", a, b)
	require.NoError(t, err)
	out, ok := result.(*tensors.Tensor)
	require.True(t, ok)
	assert.Equal(t, []float32{5, 5, 5, 5}, flatData[float32](t, out))
}
