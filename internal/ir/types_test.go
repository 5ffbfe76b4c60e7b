package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_String(t *testing.T) {
	assert.Equal(t, "f32", Scalar(F32).String())
	assert.Equal(t, "tensor<2x3xf64>", TensorOf(F64, 2, 3).String())
	assert.Equal(t, "tensor<4xi32>", TensorOf(I32, 4).String())
}

func TestShape_ElemsAndSize(t *testing.T) {
	s := TensorOf(F32, 2, 3)
	assert.Equal(t, 6, s.Elems())
	assert.Equal(t, 24, s.SizeBytes())
	assert.Equal(t, 1, Scalar(I64).Elems())
	assert.Equal(t, 8, Scalar(I64).SizeBytes())
}

func TestShape_Equal(t *testing.T) {
	assert.True(t, TensorOf(F32, 2, 2).Equal(TensorOf(F32, 2, 2)))
	assert.False(t, TensorOf(F32, 2, 2).Equal(TensorOf(F32, 4)))
	assert.False(t, TensorOf(F32, 2).Equal(TensorOf(F64, 2)))
}

func TestShape_JSONRoundTrip(t *testing.T) {
	s := TensorOf(F32, 2, 2)
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"dtype":"f32","dims":[2,2]}`, string(data))

	var back Shape
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, s.Equal(back))
}

func TestModule_Invalidate(t *testing.T) {
	m := NewModule("m")
	assert.False(t, m.Invalidated())
	m.Invalidate()
	assert.True(t, m.Invalidated())
}

func TestLinkNameFor_Normalizes(t *testing.T) {
	// "é" as combining sequence vs precomposed must produce the same
	// link symbol.
	assert.Equal(t, LinkNameFor("café"), LinkNameFor("café"))
	assert.Equal(t, "add", LinkNameFor("add"))
}
