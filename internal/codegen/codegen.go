// Package codegen is the backend compiler adapter: it serializes a
// lowered module to its textual form, invokes ahead-of-time
// compilation for exactly one configured target, and returns the
// compiled artifact as an opaque byte sequence.
//
// Targets register in a fixed table; the default target is a constant.
// The adapter adds nothing of its own to the output, so compiling the
// same lowered module for the same target is deterministic.
package codegen

import (
	"fmt"
	"sort"

	"github.com/tensorvm/tcbridge/internal/artifact"
	"github.com/tensorvm/tcbridge/internal/codegen/vmprog"
	"github.com/tensorvm/tcbridge/internal/codegen/wasm"
	"github.com/tensorvm/tcbridge/internal/ir"
)

// DefaultTarget is the one backend compiled for when the caller does
// not pick another.
const DefaultTarget = vmprog.TargetName

// Target compiles textual IR into an artifact for one backend.
type Target interface {
	Name() string
	Compile(src string) (*artifact.Artifact, error)
}

var targets = map[string]Target{}

func register(t Target) {
	if _, dup := targets[t.Name()]; dup {
		panic(fmt.Sprintf("codegen: duplicate target %q", t.Name()))
	}
	targets[t.Name()] = t
}

func init() {
	register(vmprog.Target{})
	register(wasm.Target{})
}

// TargetNames returns all registered target names, sorted.
func TargetNames() []string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile serializes the lowered module and compiles it for the named
// target ("" means DefaultTarget), returning the encoded artifact.
//
// The module must have survived lowering: an invalidated module or one
// without linkage is refused before the target ever runs. Target
// rejections come back as a *CompileError carrying the target's
// diagnostic verbatim; no retry is attempted.
func Compile(mod *ir.Module, targetName string) ([]byte, error) {
	if targetName == "" {
		targetName = DefaultTarget
	}
	if mod.Invalidated() {
		return nil, &CompileError{Target: targetName, Diagnostic: "module was invalidated by a failed lowering and must be discarded"}
	}
	for _, f := range mod.Funcs {
		if f.LinkName == "" {
			return nil, &CompileError{Target: targetName, Diagnostic: fmt.Sprintf("function %q has no link name; module has not been lowered", f.Name)}
		}
	}
	t, ok := targets[targetName]
	if !ok {
		return nil, &CompileError{Target: targetName, Diagnostic: fmt.Sprintf("unknown target %q (have %v)", targetName, TargetNames())}
	}

	art, err := t.Compile(ir.Print(mod))
	if err != nil {
		return nil, &CompileError{Target: targetName, Diagnostic: err.Error()}
	}
	data, err := art.Encode()
	if err != nil {
		return nil, &CompileError{Target: targetName, Diagnostic: err.Error()}
	}
	return data, nil
}
