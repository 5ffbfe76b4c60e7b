package passes

import (
	"fmt"

	"github.com/tensorvm/tcbridge/internal/ir"
)

func init() {
	Register(Pass{Name: "verify-tensors", Run: verifyTensors})
}

// verifyTensors checks that every function is expressible by a target
// backend: ranked static shapes with supported dtypes, operand shapes
// agreeing with result shapes, constant payloads matching their type,
// and no operation outside the supported set.
func verifyTensors(m *ir.Module) error {
	if err := m.Verify(); err != nil {
		return err
	}
	for _, f := range m.Funcs {
		if err := verifyFunc(f); err != nil {
			return fmt.Errorf("func %q: %w", f.Name, err)
		}
	}
	return nil
}

func verifyFunc(f *ir.Function) error {
	shapes := make([]ir.Shape, 0, f.NumValues())
	for _, p := range f.Params {
		if !p.Shape.Valid() {
			return fmt.Errorf("parameter %%%s has invalid type %s", p.Name, p.Shape)
		}
		shapes = append(shapes, p.Shape)
	}
	for i, r := range f.Results {
		if !r.Valid() {
			return fmt.Errorf("result %d has invalid type %s", i, r)
		}
	}

	for _, op := range f.Ops {
		if !op.Shape.Valid() {
			return fmt.Errorf("op %s has invalid result type %s", op.MnemonicString(), op.Shape)
		}
		switch {
		case op.Kind == ir.OpUnknown:
			return fmt.Errorf("unsupported operation %q", op.Raw)
		case op.Kind == ir.OpConst:
			if len(op.Const) != op.Shape.Elems() {
				return fmt.Errorf("const payload has %d elements, type %s wants %d",
					len(op.Const), op.Shape, op.Shape.Elems())
			}
		case op.Kind == ir.OpNeg:
			if len(op.Operands) != 1 {
				return fmt.Errorf("neg wants 1 operand, got %d", len(op.Operands))
			}
			if !shapes[op.Operands[0]].Equal(op.Shape) {
				return fmt.Errorf("neg operand type %s does not match result type %s",
					shapes[op.Operands[0]], op.Shape)
			}
		case op.Kind.IsBinary():
			if len(op.Operands) != 2 {
				return fmt.Errorf("%s wants 2 operands, got %d", op.Kind.Mnemonic(), len(op.Operands))
			}
			for _, operand := range op.Operands {
				if !shapes[operand].Equal(op.Shape) {
					return fmt.Errorf("%s operand type %s does not match result type %s",
						op.Kind.Mnemonic(), shapes[operand], op.Shape)
				}
			}
		default:
			return fmt.Errorf("unsupported operation %q", op.MnemonicString())
		}
		shapes = append(shapes, op.Shape)
	}

	if len(f.Returns) != len(f.Results) {
		return fmt.Errorf("returns %d values, signature declares %d", len(f.Returns), len(f.Results))
	}
	for i, r := range f.Returns {
		if !shapes[r].Equal(f.Results[i]) {
			return fmt.Errorf("returned value %d has type %s, signature declares %s",
				i, shapes[r], f.Results[i])
		}
	}
	return nil
}
