// Package vmprog is the default compilation target: it encodes a
// lowered module into a compact register-machine program the bundled
// VM driver executes. The payload is self-contained (signatures, op
// stream, constant pool) so a persisted artifact can be loaded without
// the module that produced it.
package vmprog

import (
	"fmt"

	"github.com/tensorvm/tcbridge/internal/artifact"
	"github.com/tensorvm/tcbridge/internal/ir"
)

// TargetName is the registry name of this target.
const TargetName = "vm"

// Target compiles textual IR to a VM program artifact.
type Target struct{}

// Name implements the codegen target interface.
func (Target) Name() string { return TargetName }

// Compile parses the serialized module and encodes it. Modules that
// were not lowered (missing linkage) or contain operations outside the
// VM's instruction set are rejected.
func (Target) Compile(src string) (*artifact.Artifact, error) {
	mod, err := ir.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse compiler input: %w", err)
	}
	abis := make([]artifact.FuncABI, 0, len(mod.Funcs))
	for _, f := range mod.Funcs {
		if f.LinkName == "" {
			return nil, fmt.Errorf("function %q has no link name", f.Name)
		}
		for _, op := range f.Ops {
			if op.Kind == ir.OpUnknown || op.Kind == ir.OpInvalid {
				return nil, fmt.Errorf("function %q: unsupported operation %q", f.Name, op.MnemonicString())
			}
		}
		abis = append(abis, artifact.FuncABI{
			Name:     f.Name,
			LinkName: f.LinkName,
			Params:   paramShapes(f),
			Results:  f.Results,
		})
	}
	return &artifact.Artifact{
		Target:  TargetName,
		Funcs:   abis,
		Payload: encodeModule(mod),
	}, nil
}

func paramShapes(f *ir.Function) []ir.Shape {
	shapes := make([]ir.Shape, len(f.Params))
	for i, p := range f.Params {
		shapes[i] = p.Shape
	}
	return shapes
}
