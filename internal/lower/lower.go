// Package lower runs the fixed lowering pipeline that prepares an
// imported IR module for a backend compiler.
//
// The pipeline is a constant, ordered pass list. Lowering mutates the
// module in place and either fully succeeds or poisons the module:
// after a failed run the module is invalidated and every downstream
// stage refuses it. There is no partial rollback and no resumption.
package lower

import (
	"log/slog"

	"github.com/tensorvm/tcbridge/internal/ir"
	"github.com/tensorvm/tcbridge/internal/passes"
)

// PreparePipeline is the fixed pass sequence run before handing a
// module to a backend. Order matters: canonicalization first, then
// backend-contract verification, then linkage assignment.
const PreparePipeline = "canonicalize,verify-tensors,lower-linkage"

// Options configures one lowering run. Debug output is an explicit
// option threaded into the call rather than ambient process state, so
// runs are reproducible in isolation.
type Options struct {
	// Pipeline overrides the pass pipeline. Empty means
	// PreparePipeline; the core never varies it, but callers may.
	Pipeline string

	// DumpIR emits the pre-pipeline IR, the resolved pipeline
	// description, and the post-pipeline IR to the logger at debug
	// level. Purely observational.
	DumpIR bool

	// Logger receives dump output; nil means slog.Default().
	Logger *slog.Logger
}

func (o Options) pipeline() string {
	if o.Pipeline == "" {
		return PreparePipeline
	}
	return o.Pipeline
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Run lowers the module in place within a single pass-manager session.
//
// On failure the module is invalidated and a *LoweringError carrying
// the pass diagnostic is returned; the caller must discard the module.
func Run(mod *ir.Module, opts Options) error {
	if mod.Invalidated() {
		return &LoweringError{Diagnostic: "module was invalidated by an earlier failed lowering"}
	}

	mgr, err := passes.ParsePipeline(opts.pipeline())
	if err != nil {
		return &LoweringError{Diagnostic: err.Error()}
	}

	log := opts.logger()
	if opts.DumpIR {
		log.Debug("IR before lowering", "module", mod.Name, "ir", ir.Print(mod))
		log.Debug("running lowering pipeline", "module", mod.Name, "pipeline", mgr.Pipeline())
	}

	if err := mgr.Run(mod); err != nil {
		mod.Invalidate()
		if perr, ok := err.(*passes.PassError); ok {
			return &LoweringError{Pass: perr.Pass, Diagnostic: perr.Err.Error()}
		}
		return &LoweringError{Diagnostic: err.Error()}
	}

	if opts.DumpIR {
		log.Debug("IR after lowering", "module", mod.Name, "ir", ir.Print(mod))
	}
	return nil
}
