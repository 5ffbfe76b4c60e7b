package runtime

import (
	"context"
	"fmt"

	"github.com/tensorvm/tcbridge/internal/artifact"
	"github.com/tensorvm/tcbridge/internal/codegen/vmprog"
	"github.com/tensorvm/tcbridge/internal/ir"
	"github.com/tensorvm/tcbridge/internal/numeric"
)

// vmDriver interprets vm-target programs directly over numeric
// arrays. Invocations allocate all state per call, so one loaded
// program may be invoked concurrently.
type vmDriver struct{}

func (vmDriver) name() string { return "vm" }

func (vmDriver) load(_ context.Context, art *artifact.Artifact) (program, error) {
	if art.Target != vmprog.TargetName {
		return nil, fmt.Errorf("vm driver cannot load artifact for target %q", art.Target)
	}
	funcs, err := vmprog.Decode(art.Payload)
	if err != nil {
		return nil, err
	}
	byLink := make(map[string]*vmprog.Func, len(funcs))
	for _, f := range funcs {
		byLink[f.LinkName] = f
	}
	return &vmProgram{funcs: byLink}, nil
}

type vmProgram struct {
	funcs map[string]*vmprog.Func
}

func (p *vmProgram) close(context.Context) error { return nil }

func (p *vmProgram) invoke(ctx context.Context, abi artifact.FuncABI, args []*numeric.Array) ([]*numeric.Array, error) {
	f, ok := p.funcs[abi.LinkName]
	if !ok {
		return nil, &LookupError{Function: abi.Name}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	regs := make([]*numeric.Array, len(f.Params), len(f.Params)+len(f.Ops))
	copy(regs, args)

	for _, op := range f.Ops {
		out, err := evalOp(op, regs)
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", abi.Name, err)
		}
		regs = append(regs, out)
	}

	results := make([]*numeric.Array, len(f.Returns))
	for i, r := range f.Returns {
		if r < 0 || r >= len(regs) {
			return nil, fmt.Errorf("function %q: malformed return reference %d", abi.Name, r)
		}
		results[i] = regs[r]
	}
	return results, nil
}

func evalOp(op ir.Op, regs []*numeric.Array) (*numeric.Array, error) {
	operand := func(i int) (*numeric.Array, error) {
		if i >= len(op.Operands) || op.Operands[i] < 0 || op.Operands[i] >= len(regs) {
			return nil, fmt.Errorf("malformed operand reference in %s", op.MnemonicString())
		}
		return regs[op.Operands[i]], nil
	}

	switch {
	case op.Kind == ir.OpConst:
		if len(op.Const) != op.Shape.Elems() {
			return nil, fmt.Errorf("malformed const payload")
		}
		return numeric.FromLiteral(op.Shape, op.Const), nil

	case op.Kind == ir.OpNeg:
		a, err := operand(0)
		if err != nil {
			return nil, err
		}
		return evalNeg(a)

	case op.Kind.IsBinary():
		a, err := operand(0)
		if err != nil {
			return nil, err
		}
		b, err := operand(1)
		if err != nil {
			return nil, err
		}
		return evalBinary(op.Kind, a, b)
	}
	return nil, fmt.Errorf("unsupported operation %q", op.MnemonicString())
}

func evalNeg(a *numeric.Array) (*numeric.Array, error) {
	switch src := a.Data().(type) {
	case []float32:
		out := numeric.Zeros(a.Shape())
		mapUnary(out.Float32s(), src, func(v float32) float32 { return -v })
		return out, nil
	case []float64:
		out := numeric.Zeros(a.Shape())
		mapUnary(out.Float64s(), src, func(v float64) float64 { return -v })
		return out, nil
	case []int32:
		out := numeric.Zeros(a.Shape())
		mapUnary(out.Int32s(), src, func(v int32) int32 { return -v })
		return out, nil
	case []int64:
		out := numeric.Zeros(a.Shape())
		mapUnary(out.Int64s(), src, func(v int64) int64 { return -v })
		return out, nil
	default:
		return nil, fmt.Errorf("neg: unsupported dtype %s", a.DType())
	}
}

func evalBinary(kind ir.OpKind, a, b *numeric.Array) (*numeric.Array, error) {
	if !a.Shape().Equal(b.Shape()) {
		return nil, fmt.Errorf("%s operands have mismatched shapes %s and %s", kind.Mnemonic(), a.Shape(), b.Shape())
	}
	if kind == ir.OpDiv && (a.DType() == ir.I32 || a.DType() == ir.I64) {
		if hasZero(b) {
			return nil, fmt.Errorf("integer division by zero")
		}
	}
	switch x := a.Data().(type) {
	case []float32:
		out := numeric.Zeros(a.Shape())
		mapBinary(out.Float32s(), x, b.Float32s(), kind)
		return out, nil
	case []float64:
		out := numeric.Zeros(a.Shape())
		mapBinary(out.Float64s(), x, b.Float64s(), kind)
		return out, nil
	case []int32:
		out := numeric.Zeros(a.Shape())
		mapBinary(out.Int32s(), x, b.Int32s(), kind)
		return out, nil
	case []int64:
		out := numeric.Zeros(a.Shape())
		mapBinary(out.Int64s(), x, b.Int64s(), kind)
		return out, nil
	default:
		return nil, fmt.Errorf("%s: unsupported dtype %s", kind.Mnemonic(), a.DType())
	}
}

type element interface {
	~int32 | ~int64 | ~float32 | ~float64
}

func mapUnary[T element](dst, src []T, f func(T) T) {
	for i, v := range src {
		dst[i] = f(v)
	}
}

func mapBinary[T element](dst, a, b []T, kind ir.OpKind) {
	switch kind {
	case ir.OpAdd:
		for i := range a {
			dst[i] = a[i] + b[i]
		}
	case ir.OpSub:
		for i := range a {
			dst[i] = a[i] - b[i]
		}
	case ir.OpMul:
		for i := range a {
			dst[i] = a[i] * b[i]
		}
	case ir.OpDiv:
		for i := range a {
			dst[i] = a[i] / b[i]
		}
	}
}

func hasZero(a *numeric.Array) bool {
	switch x := a.Data().(type) {
	case []int32:
		for _, v := range x {
			if v == 0 {
				return true
			}
		}
	case []int64:
		for _, v := range x {
			if v == 0 {
				return true
			}
		}
	}
	return false
}
