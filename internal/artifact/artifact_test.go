package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorvm/tcbridge/internal/ir"
)

func sample() *Artifact {
	return &Artifact{
		Target: "vm",
		Funcs: []FuncABI{{
			Name:     "add",
			LinkName: "add",
			Params:   []ir.Shape{ir.TensorOf(ir.F32, 2, 2), ir.TensorOf(ir.F32, 2, 2)},
			Results:  []ir.Shape{ir.TensorOf(ir.F32, 2, 2)},
		}},
		Payload: []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

func TestEncodeDecode(t *testing.T) {
	data, err := sample().Encode()
	require.NoError(t, err)

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "vm", back.Target)
	require.Len(t, back.Funcs, 1)
	assert.Equal(t, "add", back.Funcs[0].Name)
	assert.True(t, back.Funcs[0].Params[0].Equal(ir.TensorOf(ir.F32, 2, 2)))
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, back.Payload)
}

func TestDecode_Rejects(t *testing.T) {
	good, err := sample().Encode()
	require.NoError(t, err)

	t.Run("short", func(t *testing.T) {
		_, err := Decode([]byte{1, 2, 3})
		assert.ErrorContains(t, err, "too short")
	})
	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte{}, good...)
		bad[0] = 'X'
		_, err := Decode(bad)
		assert.ErrorContains(t, err, "bad magic")
	})
	t.Run("version skew", func(t *testing.T) {
		bad := append([]byte{}, good...)
		bad[4] = FormatVersion + 1
		_, err := Decode(bad)
		assert.ErrorContains(t, err, "unsupported artifact format version")
	})
	t.Run("truncated metadata", func(t *testing.T) {
		_, err := Decode(good[:12])
		assert.ErrorContains(t, err, "truncated")
	})
}

func TestABI_Lookup(t *testing.T) {
	a := sample()
	abi, ok := a.ABI("add")
	require.True(t, ok)
	assert.Equal(t, "add", abi.LinkName)

	_, ok = a.ABI("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"add"}, a.FunctionNames())
}
