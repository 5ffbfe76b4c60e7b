// Package bridge is the top-level compilation backend: one object that
// takes source modules through lowering and code generation to a
// serialized artifact, and loads artifacts back into tensor-aware
// invokers.
//
// The two halves are independent. Compile produces a self-contained
// artifact that can be persisted and loaded later, by another process
// or under a different execution driver; Load never needs the source
// module. Failures surface through the stage-specific error types
// (lower.LoweringError, codegen.CompileError, runtime.LoadError) so
// callers can tell which stage rejected their input.
package bridge

import (
	"context"
	"log/slog"

	"github.com/tensorvm/tcbridge/internal/codegen"
	"github.com/tensorvm/tcbridge/internal/invoke"
	"github.com/tensorvm/tcbridge/internal/ir"
	"github.com/tensorvm/tcbridge/internal/lower"
	"github.com/tensorvm/tcbridge/internal/runtime"
)

// Options configures one backend. The zero value selects the default
// lowering pipeline, target, and driver.
type Options struct {
	// Target names the code generation backend. Empty selects
	// codegen.DefaultTarget.
	Target string

	// Driver names the execution driver for Load. Empty selects
	// runtime.DefaultDriver.
	Driver string

	// Pipeline overrides the lowering pass pipeline. Empty selects
	// lower.PreparePipeline.
	Pipeline string

	// DumpIR logs the module text before and after lowering.
	DumpIR bool

	// Logger receives stage diagnostics. Nil uses slog.Default.
	Logger *slog.Logger
}

// Backend compiles modules to artifacts and loads artifacts into
// invokers. Safe for concurrent use.
type Backend struct {
	opts Options
}

// New returns a backend with the given options.
func New(opts Options) *Backend {
	return &Backend{opts: opts}
}

// Compile lowers mod and generates a serialized artifact for the
// configured target. The module is rewritten in place by the lowering
// passes; on a lowering failure it is invalidated and no artifact is
// produced.
func (b *Backend) Compile(mod *ir.Module) ([]byte, error) {
	err := lower.Run(mod, lower.Options{
		Pipeline: b.opts.Pipeline,
		DumpIR:   b.opts.DumpIR,
		Logger:   b.opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return codegen.Compile(mod, b.opts.Target)
}

// CompileSource parses src and compiles the resulting module.
func (b *Backend) CompileSource(src string) ([]byte, error) {
	mod, err := ir.Parse(src)
	if err != nil {
		return nil, err
	}
	return b.Compile(mod)
}

// Module is a loaded artifact exposed through the tensor-converting
// invocation layer. Resolve and Call accept framework tensors, plain
// arrays, and Go scalars.
type Module struct {
	*invoke.TensorInvoker
	inst *runtime.Instance
}

// Instance returns the underlying runtime instance.
func (m *Module) Instance() *runtime.Instance { return m.inst }

// Close releases the instance's driver resources.
func (m *Module) Close(ctx context.Context) error {
	return m.inst.Close(ctx)
}

// Load deserializes a compiled artifact into a fresh runtime instance
// and wraps it in the invocation adapter stack. Each call yields an
// independent instance.
func (b *Backend) Load(ctx context.Context, artifact []byte) (*Module, error) {
	inst, err := runtime.Load(ctx, artifact, runtime.Config{Driver: b.opts.Driver})
	if err != nil {
		return nil, err
	}
	return &Module{
		TensorInvoker: invoke.NewTensorInvoker(invoke.NewModuleInvoker(inst)),
		inst:          inst,
	}, nil
}
