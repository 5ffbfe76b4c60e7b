package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addSource = `module @main {
  func @add(%arg0: tensor<2x2xf32>, %arg1: tensor<2x2xf32>) -> tensor<2x2xf32> {
    %0 = add %arg0, %arg1 : tensor<2x2xf32>
    return %0 : tensor<2x2xf32>
  }
}
`

func TestParse_Add(t *testing.T) {
	m, err := Parse(addSource)
	require.NoError(t, err)

	assert.Equal(t, "main", m.Name)
	require.Len(t, m.Funcs, 1)

	f := m.Funcs[0]
	assert.Equal(t, "add", f.Name)
	require.Len(t, f.Params, 2)
	assert.Equal(t, TensorOf(F32, 2, 2), f.Params[0].Shape)
	require.Len(t, f.Ops, 1)
	assert.Equal(t, OpAdd, f.Ops[0].Kind)
	assert.Equal(t, []int{0, 1}, f.Ops[0].Operands)
	assert.Equal(t, 2, f.Ops[0].Result)
	assert.Equal(t, []int{2}, f.Returns)
}

func TestParse_RoundTrip(t *testing.T) {
	m, err := Parse(addSource)
	require.NoError(t, err)
	assert.Equal(t, addSource, Print(m))
}

func TestParse_ScalarAndConst(t *testing.T) {
	src := `module @m {
  func @affine(%arg0: f32) -> f32 {
    %0 = const 2.5 : f32
    %1 = mul %arg0, %0 : f32
    return %1 : f32
  }
}
`
	m, err := Parse(src)
	require.NoError(t, err)
	f := m.Funcs[0]
	require.Len(t, f.Ops, 2)
	assert.Equal(t, OpConst, f.Ops[0].Kind)
	assert.Equal(t, []float64{2.5}, f.Ops[0].Const)
	assert.True(t, f.Ops[0].Shape.IsScalar())
	assert.Equal(t, src, Print(m))
}

func TestParse_TensorConstLiteral(t *testing.T) {
	src := `module @m {
  func @ones() -> tensor<3xf32> {
    %0 = const [1, -2, 3.5] : tensor<3xf32>
    return %0 : tensor<3xf32>
  }
}
`
	m, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2, 3.5}, m.Funcs[0].Ops[0].Const)
	assert.Equal(t, src, Print(m))
}

func TestParse_MultiResult(t *testing.T) {
	src := `module @m {
  func @pair(%arg0: f32, %arg1: f32) -> (f32, f32) {
    return %arg0, %arg1 : (f32, f32)
  }
}
`
	m, err := Parse(src)
	require.NoError(t, err)
	f := m.Funcs[0]
	assert.Equal(t, []int{0, 1}, f.Returns)
	require.Len(t, f.Results, 2)
	assert.Equal(t, src, Print(m))
}

func TestParse_ZeroResult(t *testing.T) {
	src := `module @m {
  func @noop(%arg0: f32) -> () {
    return
  }
}
`
	m, err := Parse(src)
	require.NoError(t, err)
	assert.Empty(t, m.Funcs[0].Returns)
	assert.Empty(t, m.Funcs[0].Results)
	assert.Equal(t, src, Print(m))
}

func TestParse_UnknownOpPreserved(t *testing.T) {
	src := `module @m {
  func @f(%arg0: tensor<2xf32>) -> tensor<2xf32> {
    %0 = gather %arg0 : tensor<2xf32>
    return %0 : tensor<2xf32>
  }
}
`
	m, err := Parse(src)
	require.NoError(t, err)
	op := m.Funcs[0].Ops[0]
	assert.Equal(t, OpUnknown, op.Kind)
	assert.Equal(t, "gather", op.Raw)
	assert.Equal(t, src, Print(m))
}

func TestParse_LinkAttribute(t *testing.T) {
	src := `module @m {
  func @add(%arg0: f32, %arg1: f32) -> f32 link @add {
    %0 = add %arg0, %arg1 : f32
    return %0 : f32
  }
}
`
	m, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, "add", m.Funcs[0].LinkName)
	assert.Equal(t, src, Print(m))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"not a module", "func @f() -> () { return }"},
		{"undefined value", `module @m {
  func @f() -> f32 {
    %0 = neg %x : f32
    return %0 : f32
  }
}`},
		{"bad dtype", `module @m {
  func @f(%arg0: tensor<2xq8>) -> () {
    return
  }
}`},
		{"bad dimension", `module @m {
  func @f(%arg0: tensor<0xf32>) -> () {
    return
  }
}`},
		{"unterminated tensor type", `module @m {
  func @f(%arg0: tensor<2xf32) -> () {
    return
  }
}`},
		{"duplicate value", `module @m {
  func @f(%a: f32, %a: f32) -> () {
    return
  }
}`},
		{"return arity mismatch", `module @m {
  func @f(%a: f32) -> f32 {
    return %a : (f32, f32)
  }
}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			var perr *ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestModule_DuplicateFunction(t *testing.T) {
	src := `module @m {
  func @f() -> () {
    return
  }
  func @f() -> () {
    return
  }
}`
	_, err := Parse(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate function")
}
