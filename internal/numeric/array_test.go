package numeric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorvm/tcbridge/internal/ir"
)

func TestFromFloat32(t *testing.T) {
	a := FromFloat32([]int{2, 2}, []float32{1, 2, 3, 4})
	assert.Equal(t, ir.TensorOf(ir.F32, 2, 2), a.Shape())
	assert.Equal(t, 4, a.Len())
	assert.Equal(t, []float32{1, 2, 3, 4}, a.Float32s())
}

func TestFromFloat32_LengthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		FromFloat32([]int{3}, []float32{1, 2})
	})
}

func TestFromLiteral_ConvertsDType(t *testing.T) {
	a := FromLiteral(ir.TensorOf(ir.I32, 3), []float64{1, 2, 3})
	assert.Equal(t, []int32{1, 2, 3}, a.Int32s())

	b := FromLiteral(ir.Scalar(ir.F64), []float64{2.5})
	assert.Equal(t, []float64{2.5}, b.Float64s())
}

func TestEqual(t *testing.T) {
	a := FromFloat32([]int{2}, []float32{1, 2})
	b := FromFloat32([]int{2}, []float32{1, 2})
	c := FromFloat32([]int{2}, []float32{1, 3})
	d := FromFloat64([]int{2}, []float64{1, 2})

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, d), "dtype differs")
}

func TestCoerce_Scalars(t *testing.T) {
	tests := []struct {
		in    any
		dtype ir.DType
	}{
		{float32(1.5), ir.F32},
		{float64(1.5), ir.F64},
		{int32(7), ir.I32},
		{int64(7), ir.I64},
		{int(7), ir.I64},
	}
	for _, tt := range tests {
		a, err := Coerce(tt.in)
		require.NoError(t, err)
		assert.True(t, a.Shape().IsScalar())
		assert.Equal(t, tt.dtype, a.DType())
	}
}

func TestCoerce_ArrayPassesThrough(t *testing.T) {
	in := FromFloat32([]int{2}, []float32{1, 2})
	out, err := Coerce(in)
	require.NoError(t, err)
	assert.Same(t, in, out)
}

func TestCoerce_Rejects(t *testing.T) {
	_, err := Coerce("not a number")
	require.Error(t, err)
}

func TestZeros(t *testing.T) {
	a := Zeros(ir.TensorOf(ir.I64, 2, 3))
	assert.Equal(t, []int64{0, 0, 0, 0, 0, 0}, a.Int64s())
}
