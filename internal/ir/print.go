package ir

import (
	"strconv"
	"strings"
)

// Print renders the module in its canonical textual form. The output
// is deterministic for a given module, so it doubles as the hashing
// and serialization boundary handed to backend compilers.
func Print(m *Module) string {
	var b strings.Builder
	b.WriteString("module @")
	b.WriteString(m.Name)
	b.WriteString(" {\n")
	for _, f := range m.Funcs {
		printFunc(&b, f)
	}
	b.WriteString("}\n")
	return b.String()
}

func printFunc(b *strings.Builder, f *Function) {
	b.WriteString("  func @")
	b.WriteString(f.Name)
	b.WriteString("(")
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(valueName(f, i))
		b.WriteString(": ")
		b.WriteString(p.Shape.String())
	}
	b.WriteString(") -> ")
	printShapeList(b, f.Results)
	if f.LinkName != "" {
		b.WriteString(" link @")
		b.WriteString(f.LinkName)
	}
	b.WriteString(" {\n")
	for _, op := range f.Ops {
		printOp(b, f, op)
	}
	b.WriteString("    return")
	if len(f.Returns) > 0 {
		b.WriteString(" ")
		for i, r := range f.Returns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(valueName(f, r))
		}
		b.WriteString(" : ")
		printShapeList(b, f.Results)
	}
	b.WriteString("\n  }\n")
}

func printShapeList(b *strings.Builder, shapes []Shape) {
	if len(shapes) == 0 {
		b.WriteString("()")
		return
	}
	if len(shapes) == 1 {
		b.WriteString(shapes[0].String())
		return
	}
	b.WriteString("(")
	for i, s := range shapes {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(s.String())
	}
	b.WriteString(")")
}

func printOp(b *strings.Builder, f *Function, op Op) {
	b.WriteString("    ")
	b.WriteString(valueName(f, op.Result))
	b.WriteString(" = ")
	b.WriteString(op.MnemonicString())
	b.WriteString(" ")
	if op.Kind == OpConst {
		printLiteral(b, op.Const, op.Shape)
	} else {
		for i, operand := range op.Operands {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(valueName(f, operand))
		}
	}
	b.WriteString(" : ")
	b.WriteString(op.Shape.String())
	b.WriteString("\n")
}

func printLiteral(b *strings.Builder, vals []float64, shape Shape) {
	if shape.IsScalar() && len(vals) == 1 {
		b.WriteString(formatFloat(vals[0]))
		return
	}
	b.WriteString("[")
	for i, v := range vals {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(formatFloat(v))
	}
	b.WriteString("]")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// valueName renders a value id: params print as %argN, op results by
// their position after the params (%0, %1, ...).
func valueName(f *Function, id int) string {
	if id < len(f.Params) {
		return "%arg" + strconv.Itoa(id)
	}
	return "%" + strconv.Itoa(id-len(f.Params))
}
