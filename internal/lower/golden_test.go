package lower

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/tensorvm/tcbridge/internal/ir"
)

// Golden tests pin the exact post-pipeline IR text so pass behavior
// changes are reviewed deliberately. Regenerate with `go test -update`.

func TestLowered_Affine_Golden(t *testing.T) {
	m := mustParse(t, `module @demo {
  func @affine(%arg0: tensor<2xf32>) -> tensor<2xf32> {
    %0 = const [1, 1] : tensor<2xf32>
    %1 = const [2, 2] : tensor<2xf32>
    %2 = add %0, %1 : tensor<2xf32>
    %3 = mul %arg0, %2 : tensor<2xf32>
    %4 = neg %3 : tensor<2xf32>
    %5 = neg %4 : tensor<2xf32>
    return %5 : tensor<2xf32>
  }
}`)
	require.NoError(t, Run(m, Options{}))

	g := goldie.New(t)
	g.Assert(t, "lowered_affine", []byte(ir.Print(m)))
}

func TestLowered_MultiFunc_Golden(t *testing.T) {
	m := mustParse(t, `module @demo {
  func @sum3(%arg0: f32, %arg1: f32, %arg2: f32) -> f32 {
    %0 = add %arg0, %arg1 : f32
    %1 = add %0, %arg2 : f32
    return %1 : f32
  }
  func @swap(%arg0: f32, %arg1: f32) -> (f32, f32) {
    return %arg1, %arg0 : (f32, f32)
  }
}`)
	require.NoError(t, Run(m, Options{}))

	g := goldie.New(t)
	g.Assert(t, "lowered_multifunc", []byte(ir.Print(m)))
}
