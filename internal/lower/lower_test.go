package lower

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorvm/tcbridge/internal/ir"
)

func mustParse(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := ir.Parse(src)
	require.NoError(t, err)
	return m
}

const addSource = `module @main {
  func @add(%arg0: tensor<2x2xf32>, %arg1: tensor<2x2xf32>) -> tensor<2x2xf32> {
    %0 = add %arg0, %arg1 : tensor<2x2xf32>
    return %0 : tensor<2x2xf32>
  }
}
`

func TestRun_AssignsLinkage(t *testing.T) {
	m := mustParse(t, addSource)
	require.NoError(t, Run(m, Options{}))
	assert.Equal(t, "add", m.Funcs[0].LinkName)
	assert.False(t, m.Invalidated())
}

func TestRun_FailureInvalidatesModule(t *testing.T) {
	m := mustParse(t, `module @m {
  func @f(%arg0: tensor<2xf32>) -> tensor<2xf32> {
    %0 = gather %arg0 : tensor<2xf32>
    return %0 : tensor<2xf32>
  }
}`)
	err := Run(m, Options{})
	require.Error(t, err)
	assert.True(t, IsLoweringError(err))

	var lerr *LoweringError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "verify-tensors", lerr.Pass)
	assert.Contains(t, lerr.Diagnostic, `unsupported operation "gather"`)

	// The module is poisoned: a second run refuses it outright.
	assert.True(t, m.Invalidated())
	err = Run(m, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalidated")
}

func TestRun_UnknownPipeline(t *testing.T) {
	m := mustParse(t, addSource)
	err := Run(m, Options{Pipeline: "no-such-pass"})
	require.Error(t, err)
	assert.True(t, IsLoweringError(err))
	// Resolution failure happens before any pass runs; the module is
	// still usable.
	assert.False(t, m.Invalidated())
}

func TestRun_DumpIR(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m := mustParse(t, addSource)
	require.NoError(t, Run(m, Options{DumpIR: true, Logger: logger}))

	out := buf.String()
	assert.Contains(t, out, "IR before lowering")
	assert.Contains(t, out, "running lowering pipeline")
	assert.Contains(t, out, PreparePipeline)
	assert.Contains(t, out, "IR after lowering")
}

func TestRun_NoDumpByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m := mustParse(t, addSource)
	require.NoError(t, Run(m, Options{Logger: logger}))
	assert.False(t, strings.Contains(buf.String(), "IR before lowering"))
}
