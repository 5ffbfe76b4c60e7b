package bridge

import (
	"context"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorvm/tcbridge/internal/codegen"
	"github.com/tensorvm/tcbridge/internal/ir"
	"github.com/tensorvm/tcbridge/internal/lower"
)

func flatData[T float32 | float64 | int32 | int64](t *testing.T, tensor *tensors.Tensor) []T {
	t.Helper()
	flat, err := tensors.CopyFlatData[T](tensor)
	require.NoError(t, err)
	return flat
}

const addSource = `module @main {
  func @add(%arg0: tensor<2x2xf32>, %arg1: tensor<2x2xf32>) -> tensor<2x2xf32> {
    %0 = add %arg0, %arg1 : tensor<2x2xf32>
    return %0 : tensor<2x2xf32>
  }
}
`

func TestBackend_CompileLoadInvoke(t *testing.T) {
	b := New(Options{})
	artifact, err := b.CompileSource(addSource)
	require.NoError(t, err)

	mod, err := b.Load(context.Background(), artifact)
	require.NoError(t, err)
	defer mod.Close(context.Background())

	x := tensors.FromFlatDataAndDimensions([]float32{1, 2, 3, 4}, 2, 2)
	y := tensors.FromFlatDataAndDimensions([]float32{10, 20, 30, 40}, 2, 2)
	result, err := mod.Call(context.Background(), "add", x, y)
	require.NoError(t, err)

	out, ok := result.(*tensors.Tensor)
	require.True(t, ok)
	assert.Equal(t, []int{2, 2}, out.Shape().Dimensions)
	assert.Equal(t, []float32{11, 22, 33, 44}, flatData[float32](t, out))
}

func TestBackend_WasmTargetWithWazeroDriver(t *testing.T) {
	b := New(Options{Target: "wasm", Driver: "wazero"})
	artifact, err := b.CompileSource(addSource)
	require.NoError(t, err)

	mod, err := b.Load(context.Background(), artifact)
	require.NoError(t, err)
	defer mod.Close(context.Background())

	x := tensors.FromFlatDataAndDimensions([]float32{1, 1, 1, 1}, 2, 2)
	y := tensors.FromFlatDataAndDimensions([]float32{2, 2, 2, 2}, 2, 2)
	result, err := mod.Call(context.Background(), "add", x, y)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 3, 3, 3}, flatData[float32](t, result.(*tensors.Tensor)))
}

func TestBackend_MultiResultOrdered(t *testing.T) {
	src := `module @m {
  func @divmod_ish(%arg0: f64, %arg1: f64) -> (f64, f64) {
    %0 = div %arg0, %arg1 : f64
    %1 = mul %arg0, %arg1 : f64
    return %0, %1 : (f64, f64)
  }
}
`
	b := New(Options{})
	artifact, err := b.CompileSource(src)
	require.NoError(t, err)
	mod, err := b.Load(context.Background(), artifact)
	require.NoError(t, err)

	result, err := mod.Call(context.Background(), "divmod_ish",
		tensors.FromScalar(8.0), tensors.FromScalar(2.0))
	require.NoError(t, err)

	list, ok := result.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, []float64{4}, flatData[float64](t, list[0].(*tensors.Tensor)))
	assert.Equal(t, []float64{16}, flatData[float64](t, list[1].(*tensors.Tensor)))
}

func TestBackend_LoweringFailureProducesNoArtifact(t *testing.T) {
	src := `module @m {
  func @bad(%arg0: f32) -> f32 {
    %0 = gather %arg0 : f32
    return %0 : f32
  }
}
`
	b := New(Options{})
	artifact, err := b.CompileSource(src)
	require.Error(t, err)
	assert.Nil(t, artifact)
	assert.True(t, lower.IsLoweringError(err))

	// The module is poisoned: a later codegen attempt refuses it too.
	mod, perr := ir.Parse(src)
	require.NoError(t, perr)
	require.Error(t, lower.Run(mod, lower.Options{}))
	_, cerr := codegen.Compile(mod, "")
	require.Error(t, cerr)
	assert.True(t, codegen.IsCompileError(cerr))
}

func TestBackend_CompileSourceParseError(t *testing.T) {
	b := New(Options{})
	_, err := b.CompileSource("module {{{")
	require.Error(t, err)
	var pe *ir.ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestBackend_IndependentCompilesAgree(t *testing.T) {
	b := New(Options{})
	a1, err := b.CompileSource(addSource)
	require.NoError(t, err)
	a2, err := b.CompileSource(addSource)
	require.NoError(t, err)
	assert.Equal(t, a1, a2, "compilation should be deterministic")

	m1, err := b.Load(context.Background(), a1)
	require.NoError(t, err)
	m2, err := b.Load(context.Background(), a2)
	require.NoError(t, err)
	assert.NotEqual(t, m1.Instance().ID(), m2.Instance().ID())
}

func TestBackend_CustomPipeline(t *testing.T) {
	// Linkage alone is enough for codegen; skipping canonicalize
	// keeps foldable ops in the program without changing results.
	src := `module @m {
  func @three(%arg0: f32) -> f32 {
    %0 = const 1 : f32
    %1 = const 2 : f32
    %2 = add %0, %1 : f32
    %3 = add %arg0, %2 : f32
    return %3 : f32
  }
}
`
	b := New(Options{Pipeline: "verify-tensors,lower-linkage"})
	artifact, err := b.CompileSource(src)
	require.NoError(t, err)

	mod, err := b.Load(context.Background(), artifact)
	require.NoError(t, err)
	result, err := mod.Call(context.Background(), "three", tensors.FromScalar(float32(10)))
	require.NoError(t, err)
	assert.Equal(t, []float32{13}, flatData[float32](t, result.(*tensors.Tensor)))
}
