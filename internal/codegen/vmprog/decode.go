package vmprog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tensorvm/tcbridge/internal/ir"
)

// Func is one decoded VM function, keyed by its link name.
type Func struct {
	LinkName string
	Params   []ir.Shape
	Results  []ir.Shape
	Ops      []ir.Op
	Returns  []int
}

// Decode parses a VM program payload. It performs the structural
// validation the loader depends on; a malformed payload fails here
// rather than mid-execution.
func Decode(payload []byte) ([]*Func, error) {
	if len(payload) < len(payloadMagic)+1 {
		return nil, fmt.Errorf("vm program too short")
	}
	if !bytes.Equal(payload[:4], payloadMagic) {
		return nil, fmt.Errorf("not a vm program (bad magic)")
	}
	if v := payload[4]; v != payloadVersion {
		return nil, fmt.Errorf("unsupported vm program version %d", v)
	}
	d := &decoder{buf: payload[5:]}

	n := d.count()
	funcs := make([]*Func, 0, n)
	for i := uint64(0); i < n && d.err == nil; i++ {
		funcs = append(funcs, d.decodeFunc())
	}
	if d.err != nil {
		return nil, fmt.Errorf("malformed vm program: %w", d.err)
	}
	return funcs, nil
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

func (d *decoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.fail("truncated varint")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

// count reads an element count and bounds it against the remaining
// buffer: every element needs at least one encoded byte, so a count
// beyond that is malformed input, not a huge allocation.
func (d *decoder) count() uint64 {
	n := d.uvarint()
	if n > uint64(len(d.buf)) {
		d.fail("implausible count %d (%d bytes remain)", n, len(d.buf))
		return 0
	}
	return n
}

func (d *decoder) bytes(n uint64) []byte {
	if d.err != nil {
		return nil
	}
	if n > uint64(len(d.buf)) {
		d.fail("truncated payload (want %d bytes, have %d)", n, len(d.buf))
		return nil
	}
	out := d.buf[:n]
	d.buf = d.buf[n:]
	return out
}

func (d *decoder) string() string {
	return string(d.bytes(d.uvarint()))
}

func (d *decoder) shape() ir.Shape {
	raw := d.bytes(1)
	if d.err != nil {
		return ir.Shape{}
	}
	s := ir.Shape{DType: ir.DType(raw[0])}
	rank := d.count()
	for i := uint64(0); i < rank && d.err == nil; i++ {
		s.Dims = append(s.Dims, int(d.uvarint()))
	}
	if d.err == nil && !s.Valid() {
		d.fail("invalid shape %s", s)
	}
	return s
}

func (d *decoder) decodeFunc() *Func {
	f := &Func{LinkName: d.string()}
	for i, n := uint64(0), d.count(); i < n && d.err == nil; i++ {
		f.Params = append(f.Params, d.shape())
	}
	for i, n := uint64(0), d.count(); i < n && d.err == nil; i++ {
		f.Results = append(f.Results, d.shape())
	}
	for i, n := uint64(0), d.count(); i < n && d.err == nil; i++ {
		f.Ops = append(f.Ops, d.decodeOp())
	}
	for i, n := uint64(0), d.count(); i < n && d.err == nil; i++ {
		f.Returns = append(f.Returns, int(d.uvarint()))
	}
	return f
}

func (d *decoder) decodeOp() ir.Op {
	raw := d.bytes(1)
	if d.err != nil {
		return ir.Op{}
	}
	op := ir.Op{Kind: ir.OpKind(raw[0])}
	op.Result = int(d.uvarint())
	for i, n := uint64(0), d.count(); i < n && d.err == nil; i++ {
		op.Operands = append(op.Operands, int(d.uvarint()))
	}
	op.Shape = d.shape()
	constLen := d.count()
	for i := uint64(0); i < constLen && d.err == nil; i++ {
		bits := d.bytes(8)
		if d.err == nil {
			op.Const = append(op.Const, math.Float64frombits(binary.LittleEndian.Uint64(bits)))
		}
	}
	return op
}
