package ir

import (
	"fmt"
	"strings"
)

// DType identifies the element type of a tensor or scalar value.
type DType uint8

const (
	// InvalidDType is the zero value; it never appears in a valid module.
	InvalidDType DType = iota
	F32
	F64
	I32
	I64
)

var dtypeNames = map[DType]string{
	F32: "f32",
	F64: "f64",
	I32: "i32",
	I64: "i64",
}

// String returns the textual spelling used in the IR ("f32", "i64", ...).
func (d DType) String() string {
	if s, ok := dtypeNames[d]; ok {
		return s
	}
	return fmt.Sprintf("invalid(%d)", uint8(d))
}

// Valid reports whether d is one of the supported element types.
func (d DType) Valid() bool {
	_, ok := dtypeNames[d]
	return ok
}

// SizeBytes returns the byte width of one element.
func (d DType) SizeBytes() int {
	switch d {
	case F32, I32:
		return 4
	case F64, I64:
		return 8
	}
	return 0
}

// ParseDType parses a dtype spelling ("f32", "i64", ...).
func ParseDType(s string) (DType, error) {
	for d, name := range dtypeNames {
		if name == s {
			return d, nil
		}
	}
	return InvalidDType, fmt.Errorf("unknown dtype %q", s)
}

// MarshalText implements encoding.TextMarshaler so shapes serialize
// with readable dtype names in artifact metadata.
func (d DType) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid dtype %d", uint8(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DType) UnmarshalText(text []byte) error {
	parsed, err := ParseDType(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Shape is a ranked value type: an element dtype plus static dimensions.
// Rank zero (no dims) is a scalar.
type Shape struct {
	DType DType `json:"dtype"`
	Dims  []int `json:"dims,omitempty"`
}

// Scalar returns a rank-zero shape of the given dtype.
func Scalar(d DType) Shape {
	return Shape{DType: d}
}

// TensorOf returns a ranked tensor shape.
func TensorOf(d DType, dims ...int) Shape {
	return Shape{DType: d, Dims: dims}
}

// Rank returns the number of dimensions (0 for scalars).
func (s Shape) Rank() int { return len(s.Dims) }

// IsScalar reports whether s has rank zero.
func (s Shape) IsScalar() bool { return len(s.Dims) == 0 }

// Elems returns the total element count (1 for scalars).
func (s Shape) Elems() int {
	n := 1
	for _, d := range s.Dims {
		n *= d
	}
	return n
}

// SizeBytes returns the flat byte size of a value of this shape.
func (s Shape) SizeBytes() int {
	return s.Elems() * s.DType.SizeBytes()
}

// Equal reports whether two shapes have the same dtype and dimensions.
func (s Shape) Equal(o Shape) bool {
	if s.DType != o.DType || len(s.Dims) != len(o.Dims) {
		return false
	}
	for i := range s.Dims {
		if s.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return true
}

// Valid reports whether the dtype is supported and every dimension is
// a positive static extent.
func (s Shape) Valid() bool {
	if !s.DType.Valid() {
		return false
	}
	for _, d := range s.Dims {
		if d <= 0 {
			return false
		}
	}
	return true
}

// String returns the textual type spelling: "f32" for scalars,
// "tensor<2x2xf32>" for ranked tensors.
func (s Shape) String() string {
	if s.IsScalar() {
		return s.DType.String()
	}
	var b strings.Builder
	b.WriteString("tensor<")
	for _, d := range s.Dims {
		fmt.Fprintf(&b, "%dx", d)
	}
	b.WriteString(s.DType.String())
	b.WriteString(">")
	return b.String()
}
