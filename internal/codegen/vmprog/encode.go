package vmprog

import (
	"encoding/binary"
	"math"

	"github.com/tensorvm/tcbridge/internal/ir"
)

// Payload wire format, all integers unsigned varints unless noted:
//
//	magic "VMPG", u8 version
//	func count, then per function:
//	  link name (len-prefixed bytes)
//	  param count, param shapes
//	  result count, result shapes
//	  op count, ops
//	  return count, return value ids
//	shape: u8 dtype, rank, dims
//	op:    u8 kind, result id, operand count, operand ids, shape,
//	       const element count, f64 bits (little-endian) per element
//
// The encoding is deterministic: identical modules produce identical
// payloads byte for byte.

var payloadMagic = []byte("VMPG")

const payloadVersion = 1

func encodeModule(m *ir.Module) []byte {
	out := append([]byte{}, payloadMagic...)
	out = append(out, payloadVersion)
	out = binary.AppendUvarint(out, uint64(len(m.Funcs)))
	for _, f := range m.Funcs {
		out = encodeFunc(out, f)
	}
	return out
}

func encodeFunc(out []byte, f *ir.Function) []byte {
	out = appendString(out, f.LinkName)
	out = binary.AppendUvarint(out, uint64(len(f.Params)))
	for _, p := range f.Params {
		out = appendShape(out, p.Shape)
	}
	out = binary.AppendUvarint(out, uint64(len(f.Results)))
	for _, r := range f.Results {
		out = appendShape(out, r)
	}
	out = binary.AppendUvarint(out, uint64(len(f.Ops)))
	for _, op := range f.Ops {
		out = appendOp(out, op)
	}
	out = binary.AppendUvarint(out, uint64(len(f.Returns)))
	for _, r := range f.Returns {
		out = binary.AppendUvarint(out, uint64(r))
	}
	return out
}

func appendString(out []byte, s string) []byte {
	out = binary.AppendUvarint(out, uint64(len(s)))
	return append(out, s...)
}

func appendShape(out []byte, s ir.Shape) []byte {
	out = append(out, byte(s.DType))
	out = binary.AppendUvarint(out, uint64(len(s.Dims)))
	for _, d := range s.Dims {
		out = binary.AppendUvarint(out, uint64(d))
	}
	return out
}

func appendOp(out []byte, op ir.Op) []byte {
	out = append(out, byte(op.Kind))
	out = binary.AppendUvarint(out, uint64(op.Result))
	out = binary.AppendUvarint(out, uint64(len(op.Operands)))
	for _, operand := range op.Operands {
		out = binary.AppendUvarint(out, uint64(operand))
	}
	out = appendShape(out, op.Shape)
	out = binary.AppendUvarint(out, uint64(len(op.Const)))
	for _, v := range op.Const {
		var bits [8]byte
		binary.LittleEndian.PutUint64(bits[:], math.Float64bits(v))
		out = append(out, bits[:]...)
	}
	return out
}
