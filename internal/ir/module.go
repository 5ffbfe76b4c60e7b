package ir

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// OpKind identifies an operation.
type OpKind uint8

const (
	OpInvalid OpKind = iota
	OpConst
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	// OpUnknown preserves an operation whose mnemonic no pass or
	// backend understands. Parsing keeps it so diagnostics can name
	// it; verification rejects it.
	OpUnknown
)

var opMnemonics = map[OpKind]string{
	OpConst: "const",
	OpAdd:   "add",
	OpSub:   "sub",
	OpMul:   "mul",
	OpDiv:   "div",
	OpNeg:   "neg",
}

// Mnemonic returns the textual op spelling.
func (k OpKind) Mnemonic() string {
	if s, ok := opMnemonics[k]; ok {
		return s
	}
	return "unknown"
}

// OpKindFromMnemonic resolves a mnemonic to its kind; unrecognized
// mnemonics map to OpUnknown.
func OpKindFromMnemonic(s string) OpKind {
	for k, m := range opMnemonics {
		if m == s {
			return k
		}
	}
	return OpUnknown
}

// IsBinary reports whether the op takes exactly two operands.
func (k OpKind) IsBinary() bool {
	switch k {
	case OpAdd, OpSub, OpMul, OpDiv:
		return true
	}
	return false
}

// Op is one SSA operation inside a function body.
//
// Result is the value id the op defines. Operands reference earlier
// value ids (function params occupy ids 0..NumParams-1). Shape is the
// result type. Const holds the literal payload for OpConst, flattened
// in row-major order.
type Op struct {
	Kind     OpKind
	Raw      string // original mnemonic, set for OpUnknown only
	Result   int
	Operands []int
	Shape    Shape
	Const    []float64
}

// MnemonicString returns the spelling to print for this op.
func (o Op) MnemonicString() string {
	if o.Kind == OpUnknown && o.Raw != "" {
		return o.Raw
	}
	return o.Kind.Mnemonic()
}

// Param is a named function parameter.
type Param struct {
	Name  string
	Shape Shape
}

// Function is a flat SSA tensor function.
//
// Value id numbering: params take ids 0..len(Params)-1, then each op
// in body order defines the next id. Returns lists the value ids
// produced as results, in declaration order.
type Function struct {
	Name string

	// LinkName is the symbol the backend exports the function under.
	// Empty until the lower-linkage pass assigns it; backends refuse
	// functions without one.
	LinkName string

	Params  []Param
	Results []Shape
	Ops     []Op
	Returns []int
}

// NumValues returns the count of value ids defined in the function.
func (f *Function) NumValues() int {
	n := len(f.Params)
	for _, op := range f.Ops {
		if op.Result >= 0 {
			n++
		}
	}
	return n
}

// ValueShape resolves the shape of a value id, or an invalid shape if
// the id is not defined.
func (f *Function) ValueShape(id int) Shape {
	if id >= 0 && id < len(f.Params) {
		return f.Params[id].Shape
	}
	for _, op := range f.Ops {
		if op.Result == id {
			return op.Shape
		}
	}
	return Shape{}
}

// Module is a container of tensor functions. It is mutated in place by
// lowering passes and is not safe for concurrent use during lowering.
type Module struct {
	Name  string
	Funcs []*Function

	invalidated bool
}

// NewModule returns an empty module with the given symbol name.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// Find returns the function with the given name, or nil.
func (m *Module) Find(name string) *Function {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Invalidate marks the module as poisoned. A failed lowering run calls
// this; every later stage refuses an invalidated module, so a caller
// structurally cannot compile a half-lowered module.
func (m *Module) Invalidate() {
	m.invalidated = true
}

// Invalidated reports whether the module has been poisoned by a failed
// lowering run.
func (m *Module) Invalidated() bool {
	return m.invalidated
}

// LinkNameFor returns the NFC-normalized link symbol for a function
// name. Link names are what backends export and runtimes look up, so
// two source spellings that normalize identically collide here; the
// lower-linkage pass checks for that.
func LinkNameFor(name string) string {
	return norm.NFC.String(name)
}

// Verify performs the structural checks that do not depend on pass
// state: duplicate function names and malformed value references.
// Deeper (type-level) verification is the verify-tensors pass.
func (m *Module) Verify() error {
	seen := make(map[string]bool, len(m.Funcs))
	for _, f := range m.Funcs {
		if seen[f.Name] {
			return fmt.Errorf("duplicate function %q", f.Name)
		}
		seen[f.Name] = true
		if err := verifyRefs(f); err != nil {
			return fmt.Errorf("func %q: %w", f.Name, err)
		}
	}
	return nil
}

func verifyRefs(f *Function) error {
	defined := len(f.Params)
	for _, op := range f.Ops {
		for _, operand := range op.Operands {
			if operand < 0 || operand >= defined {
				return fmt.Errorf("operand %%%d used before definition", operand)
			}
		}
		if op.Result != defined {
			return fmt.Errorf("op defines id %d, expected %d", op.Result, defined)
		}
		defined++
	}
	for _, r := range f.Returns {
		if r < 0 || r >= defined {
			return fmt.Errorf("returned value %%%d is not defined", r)
		}
	}
	return nil
}
