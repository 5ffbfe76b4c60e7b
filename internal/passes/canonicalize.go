package passes

import (
	"github.com/tensorvm/tcbridge/internal/ir"
)

func init() {
	Register(Pass{Name: "canonicalize", Run: canonicalize})
}

// canonicalize simplifies each function: folds constant expressions,
// eliminates double negation, and removes operations whose results are
// never used. It never rejects a module.
func canonicalize(m *ir.Module) error {
	for _, f := range m.Funcs {
		canonicalizeFunc(f)
	}
	return nil
}

func canonicalizeFunc(f *ir.Function) {
	// sub maps a value id to the id that replaces it.
	sub := map[int]int{}
	resolve := func(id int) int {
		for {
			r, ok := sub[id]
			if !ok {
				return id
			}
			id = r
		}
	}

	defs := map[int]*ir.Op{}
	for i := range f.Ops {
		op := &f.Ops[i]
		for j, operand := range op.Operands {
			op.Operands[j] = resolve(operand)
		}
		switch {
		case op.Kind == ir.OpNeg:
			if d, ok := defs[op.Operands[0]]; ok {
				if d.Kind == ir.OpNeg {
					// neg(neg(x)) => x
					sub[op.Result] = d.Operands[0]
					break
				}
				if d.Kind == ir.OpConst {
					folded := make([]float64, len(d.Const))
					for k, v := range d.Const {
						folded[k] = -v
					}
					op.Kind = ir.OpConst
					op.Operands = nil
					op.Const = folded
				}
			}
		case op.Kind.IsBinary():
			a, aok := defs[op.Operands[0]]
			b, bok := defs[op.Operands[1]]
			if aok && bok && a.Kind == ir.OpConst && b.Kind == ir.OpConst {
				if folded, ok := foldBinary(op.Kind, op.Shape.DType, a.Const, b.Const); ok {
					op.Kind = ir.OpConst
					op.Operands = nil
					op.Const = folded
				}
			}
		}
		defs[op.Result] = op
	}

	for i, r := range f.Returns {
		f.Returns[i] = resolve(r)
	}

	removeDeadOps(f, defs)
}

// foldBinary evaluates an elementwise binary op over two constant
// payloads. Integer dtypes fold with truncating int64 arithmetic.
// Folding is skipped (ok=false) on length mismatch or integer division
// by zero; verification reports those properly later.
func foldBinary(kind ir.OpKind, dtype ir.DType, a, b []float64) ([]float64, bool) {
	if len(a) != len(b) {
		return nil, false
	}
	isInt := dtype == ir.I32 || dtype == ir.I64
	out := make([]float64, len(a))
	for i := range a {
		if isInt {
			x, y := int64(a[i]), int64(b[i])
			var v int64
			switch kind {
			case ir.OpAdd:
				v = x + y
			case ir.OpSub:
				v = x - y
			case ir.OpMul:
				v = x * y
			case ir.OpDiv:
				if y == 0 {
					return nil, false
				}
				v = x / y
			}
			out[i] = float64(v)
			continue
		}
		switch kind {
		case ir.OpAdd:
			out[i] = a[i] + b[i]
		case ir.OpSub:
			out[i] = a[i] - b[i]
		case ir.OpMul:
			out[i] = a[i] * b[i]
		case ir.OpDiv:
			if b[i] == 0 {
				return nil, false
			}
			out[i] = a[i] / b[i]
		}
	}
	return out, true
}

// removeDeadOps drops ops whose results are unreachable from the
// returns and renumbers the remaining value ids densely.
func removeDeadOps(f *ir.Function, defs map[int]*ir.Op) {
	live := map[int]bool{}
	var mark func(id int)
	mark = func(id int) {
		if live[id] || id < len(f.Params) {
			return
		}
		live[id] = true
		if op, ok := defs[id]; ok {
			for _, operand := range op.Operands {
				mark(operand)
			}
		}
	}
	for _, r := range f.Returns {
		mark(r)
	}

	remap := make(map[int]int, len(f.Params))
	for i := range f.Params {
		remap[i] = i
	}
	next := len(f.Params)
	kept := f.Ops[:0]
	for _, op := range f.Ops {
		if !live[op.Result] {
			continue
		}
		for j, operand := range op.Operands {
			op.Operands[j] = remap[operand]
		}
		remap[op.Result] = next
		op.Result = next
		next++
		kept = append(kept, op)
	}
	f.Ops = kept
	for i, r := range f.Returns {
		f.Returns[i] = remap[r]
	}
}
