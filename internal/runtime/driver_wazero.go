package runtime

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/tensorvm/tcbridge/internal/artifact"
	"github.com/tensorvm/tcbridge/internal/codegen/wasm"
	"github.com/tensorvm/tcbridge/internal/ir"
	"github.com/tensorvm/tcbridge/internal/numeric"
)

// wazeroDriver executes wasm-target artifacts on an embedded wazero
// runtime. Values are marshalled through the module's linear memory at
// the static offsets published in the artifact ABI; because those
// offsets are shared scratch space, invocations on one program are
// serialized with a mutex.
type wazeroDriver struct{}

func (wazeroDriver) name() string { return "wazero" }

func (wazeroDriver) load(ctx context.Context, art *artifact.Artifact) (program, error) {
	if art.Target != wasm.TargetName {
		return nil, fmt.Errorf("wazero driver cannot load artifact for target %q", art.Target)
	}
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	mod, err := r.Instantiate(ctx, art.Payload)
	if err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("instantiate wasm module: %w", err)
	}
	mem := mod.ExportedMemory(wasm.MemoryExport)
	if mem == nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("wasm module exports no linear memory")
	}
	return &wazeroProgram{runtime: r, mod: mod, mem: mem}, nil
}

type wazeroProgram struct {
	mu      sync.Mutex
	runtime wazero.Runtime
	mod     api.Module
	mem     api.Memory
}

func (p *wazeroProgram) close(ctx context.Context) error {
	return p.runtime.Close(ctx)
}

func (p *wazeroProgram) invoke(ctx context.Context, abi artifact.FuncABI, args []*numeric.Array) ([]*numeric.Array, error) {
	fn := p.mod.ExportedFunction(abi.LinkName)
	if fn == nil {
		return nil, &LookupError{Function: abi.Name}
	}
	if len(abi.ParamOffsets) != len(args) || len(abi.ResultOffsets) != len(abi.Results) {
		return nil, fmt.Errorf("function %q: artifact ABI carries no memory offsets", abi.Name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i, arg := range args {
		if arg.DType() != ir.F32 {
			return nil, fmt.Errorf("function %q argument %d: wasm modules take f32 values, got %s",
				abi.Name, i, arg.Shape())
		}
		if !p.mem.Write(abi.ParamOffsets[i], packF32(arg.Float32s())) {
			return nil, fmt.Errorf("function %q argument %d: out-of-range memory write", abi.Name, i)
		}
	}

	if _, err := fn.Call(ctx); err != nil {
		return nil, fmt.Errorf("function %q trapped: %w", abi.Name, err)
	}

	results := make([]*numeric.Array, len(abi.Results))
	for i, shape := range abi.Results {
		raw, ok := p.mem.Read(abi.ResultOffsets[i], uint32(shape.SizeBytes()))
		if !ok {
			return nil, fmt.Errorf("function %q result %d: out-of-range memory read", abi.Name, i)
		}
		results[i] = numeric.FromFloat32(shape.Dims, unpackF32(raw))
	}
	return results, nil
}

func packF32(vals []float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func unpackF32(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
