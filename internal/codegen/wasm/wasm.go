// Package wasm is an alternate compilation target emitting a
// WebAssembly binary. Each IR function becomes an exported wasm
// function computing its ops elementwise over float32 buffers at
// static linear-memory offsets; the offsets are published in the
// artifact ABI so the runtime driver can marshal values in and out.
//
// The target supports f32 values only. Because every function uses
// fixed scratch offsets, concurrent invocation of one loaded module
// is not safe; the wazero driver documents that.
package wasm

import (
	"fmt"

	"github.com/tensorvm/tcbridge/internal/artifact"
	"github.com/tensorvm/tcbridge/internal/ir"
)

// TargetName is the registry name of this target.
const TargetName = "wasm"

const pageSize = 65536

// MemoryExport is the name the linear memory is exported under.
const MemoryExport = "memory"

// Target compiles textual IR to a WebAssembly artifact.
type Target struct{}

// Name implements the codegen target interface.
func (Target) Name() string { return TargetName }

// Compile parses the serialized module and emits the wasm binary plus
// ABI metadata.
func (Target) Compile(src string) (*artifact.Artifact, error) {
	mod, err := ir.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse compiler input: %w", err)
	}

	g := newGenerator()
	abis := make([]artifact.FuncABI, 0, len(mod.Funcs))
	for _, f := range mod.Funcs {
		if f.LinkName == "" {
			return nil, fmt.Errorf("function %q has no link name", f.Name)
		}
		abi, err := g.addFunc(f)
		if err != nil {
			return nil, err
		}
		abis = append(abis, abi)
	}
	return &artifact.Artifact{
		Target:  TargetName,
		Funcs:   abis,
		Payload: g.emit(),
	}, nil
}

type dataSeg struct {
	offset uint32
	data   []byte
}

type generator struct {
	exports  []string // link name per function index
	codes    [][]byte // encoded function bodies
	dataSegs []dataSeg
	nextOff  uint32 // next free byte of linear memory
}

func newGenerator() *generator {
	return &generator{}
}

// addFunc lays out one buffer per SSA value, emits the op loops, and
// returns the function's ABI with the static buffer offsets.
func (g *generator) addFunc(f *ir.Function) (artifact.FuncABI, error) {
	offsets := make([]uint32, 0, f.NumValues())
	alloc := func(shape ir.Shape) (uint32, error) {
		if shape.DType != ir.F32 {
			return 0, fmt.Errorf("function %q: target wasm supports only f32 values, got %s", f.Name, shape)
		}
		off := g.nextOff
		g.nextOff += uint32(shape.SizeBytes())
		return off, nil
	}

	abi := artifact.FuncABI{Name: f.Name, LinkName: f.LinkName, Results: f.Results}
	for _, p := range f.Params {
		off, err := alloc(p.Shape)
		if err != nil {
			return artifact.FuncABI{}, err
		}
		offsets = append(offsets, off)
		abi.Params = append(abi.Params, p.Shape)
		abi.ParamOffsets = append(abi.ParamOffsets, off)
	}

	var body []byte
	for _, op := range f.Ops {
		off, err := alloc(op.Shape)
		if err != nil {
			return artifact.FuncABI{}, err
		}
		offsets = append(offsets, off)

		switch {
		case op.Kind == ir.OpConst:
			g.dataSegs = append(g.dataSegs, dataSeg{offset: off, data: constBytes(op.Const)})
		case op.Kind == ir.OpNeg:
			body = append(body, elementLoop(off, []uint32{offsets[op.Operands[0]]}, opF32Neg, op.Shape.Elems())...)
		case op.Kind.IsBinary():
			body = append(body, elementLoop(off,
				[]uint32{offsets[op.Operands[0]], offsets[op.Operands[1]]},
				binaryOpcode(op.Kind), op.Shape.Elems())...)
		default:
			return artifact.FuncABI{}, fmt.Errorf("function %q: unsupported operation %q", f.Name, op.MnemonicString())
		}
	}

	// Results are read straight from the buffer of the returned value;
	// a function returning a parameter aliases that parameter's buffer.
	for _, r := range f.Returns {
		abi.ResultOffsets = append(abi.ResultOffsets, offsets[r])
	}

	g.exports = append(g.exports, f.LinkName)
	g.codes = append(g.codes, encodeBody(body))
	return abi, nil
}

func binaryOpcode(kind ir.OpKind) byte {
	switch kind {
	case ir.OpAdd:
		return opF32Add
	case ir.OpSub:
		return opF32Sub
	case ir.OpMul:
		return opF32Mul
	case ir.OpDiv:
		return opF32Div
	}
	panic(fmt.Sprintf("wasm: not a binary op: %v", kind))
}

func constBytes(vals []float64) []byte {
	out := make([]byte, 0, len(vals)*4)
	for _, v := range vals {
		out = append(out, encodeF32(float32(v))...)
	}
	return out
}

// elementLoop emits a byte-indexed loop storing op(src...) into dst
// for every f32 element. Local 0 is the loop counter.
func elementLoop(dst uint32, srcs []uint32, opcode byte, elems int) []byte {
	var b []byte
	push := func(bytes ...byte) { b = append(b, bytes...) }
	i32const := func(v uint32) {
		push(opI32Const)
		b = append(b, encodeLEB128S(int64(v))...)
	}
	addr := func(base uint32) {
		i32const(base)
		push(opLocalGet, 0)
		push(opI32Add)
	}
	memarg := func() { push(0x02, 0x00) } // align=4 bytes, offset=0

	// i = 0
	i32const(0)
	push(opLocalSet, 0)

	push(opBlock, blockVoid)
	push(opLoop, blockVoid)

	// if i >= elems*4: break
	push(opLocalGet, 0)
	i32const(uint32(elems * 4))
	push(opI32GeU)
	push(opBrIf, 1)

	// dst[i] = op(srcs[i]...)
	addr(dst)
	for _, src := range srcs {
		addr(src)
		push(opF32Load)
		memarg()
	}
	push(opcode)
	push(opF32Store)
	memarg()

	// i += 4
	push(opLocalGet, 0)
	i32const(4)
	push(opI32Add)
	push(opLocalSet, 0)

	push(opBr, 0)
	push(opEnd) // loop
	push(opEnd) // block
	return b
}

// encodeBody wraps an expression in a code-section entry: local
// declarations (one i32 counter) plus the terminating end.
func encodeBody(expr []byte) []byte {
	var body []byte
	body = append(body, encodeLEB128U(1)...) // one local group
	body = append(body, encodeLEB128U(1)...) // count
	body = append(body, valI32)
	body = append(body, expr...)
	body = append(body, opEnd)

	out := encodeLEB128U(uint64(len(body)))
	return append(out, body...)
}

func (g *generator) emit() []byte {
	var wasm []byte
	wasm = append(wasm, wasmMagic...)
	wasm = append(wasm, wasmVersion...)
	wasm = append(wasm, g.emitTypeSection()...)
	wasm = append(wasm, g.emitFunctionSection()...)
	wasm = append(wasm, g.emitMemorySection()...)
	wasm = append(wasm, g.emitExportSection()...)
	wasm = append(wasm, g.emitCodeSection()...)
	if len(g.dataSegs) > 0 {
		wasm = append(wasm, g.emitDataSection()...)
	}
	return wasm
}

func (g *generator) emitTypeSection() []byte {
	// Single shared type: () -> (). All marshalling happens through
	// memory at the static ABI offsets.
	contents := []byte{0x60, 0x00, 0x00}
	return encodeSection(sectionType, encodeVector(1, contents))
}

func (g *generator) emitFunctionSection() []byte {
	var contents []byte
	for range g.codes {
		contents = append(contents, encodeLEB128U(0)...)
	}
	return encodeSection(sectionFunction, encodeVector(len(g.codes), contents))
}

func (g *generator) emitMemorySection() []byte {
	pages := uint64(g.nextOff/pageSize + 1)
	var contents []byte
	contents = append(contents, 0x00) // no max
	contents = append(contents, encodeLEB128U(pages)...)
	return encodeSection(sectionMemory, encodeVector(1, contents))
}

func (g *generator) emitExportSection() []byte {
	var contents []byte
	for i, name := range g.exports {
		contents = append(contents, encodeString(name)...)
		contents = append(contents, exportFunc)
		contents = append(contents, encodeLEB128U(uint64(i))...)
	}
	contents = append(contents, encodeString(MemoryExport)...)
	contents = append(contents, exportMemory)
	contents = append(contents, encodeLEB128U(0)...)
	return encodeSection(sectionExport, encodeVector(len(g.exports)+1, contents))
}

func (g *generator) emitCodeSection() []byte {
	var contents []byte
	for _, code := range g.codes {
		contents = append(contents, code...)
	}
	return encodeSection(sectionCode, encodeVector(len(g.codes), contents))
}

func (g *generator) emitDataSection() []byte {
	var contents []byte
	for _, seg := range g.dataSegs {
		contents = append(contents, 0x00) // active, memory 0
		contents = append(contents, opI32Const)
		contents = append(contents, encodeLEB128S(int64(seg.offset))...)
		contents = append(contents, opEnd)
		contents = append(contents, encodeLEB128U(uint64(len(seg.data)))...)
		contents = append(contents, seg.data...)
	}
	return encodeSection(sectionData, encodeVector(len(g.dataSegs), contents))
}
