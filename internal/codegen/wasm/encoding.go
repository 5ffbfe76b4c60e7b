package wasm

import (
	"encoding/binary"
	"math"
)

// WebAssembly binary format constants.
var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6D} // \0asm
var wasmVersion = []byte{0x01, 0x00, 0x00, 0x00}

// Section IDs.
const (
	sectionType     byte = 1
	sectionFunction byte = 3
	sectionMemory   byte = 5
	sectionExport   byte = 7
	sectionCode     byte = 10
	sectionData     byte = 11
)

// Value types.
const (
	valI32 byte = 0x7F
)

// Export kinds.
const (
	exportFunc   byte = 0x00
	exportMemory byte = 0x02
)

// Opcodes.
const (
	opBlock    byte = 0x02
	opLoop     byte = 0x03
	opEnd      byte = 0x0B
	opBr       byte = 0x0C
	opBrIf     byte = 0x0D
	opLocalGet byte = 0x20
	opLocalSet byte = 0x21
	opF32Load  byte = 0x2A
	opF32Store byte = 0x38
	opI32Const byte = 0x41
	opI32GeU   byte = 0x4F
	opI32Add   byte = 0x6A
	opF32Neg   byte = 0x8C
	opF32Add   byte = 0x92
	opF32Sub   byte = 0x93
	opF32Mul   byte = 0x94
	opF32Div   byte = 0x95

	blockVoid byte = 0x40
)

// encodeLEB128U encodes an unsigned integer as unsigned LEB128.
func encodeLEB128U(value uint64) []byte {
	if value == 0 {
		return []byte{0}
	}
	var result []byte
	for value > 0 {
		b := byte(value & 0x7F)
		value >>= 7
		if value > 0 {
			b |= 0x80
		}
		result = append(result, b)
	}
	return result
}

// encodeLEB128S encodes a signed integer as signed LEB128.
func encodeLEB128S(value int64) []byte {
	var result []byte
	more := true
	for more {
		b := byte(value & 0x7F)
		value >>= 7
		if (value == 0 && b&0x40 == 0) || (value == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		result = append(result, b)
	}
	return result
}

// encodeF32 encodes a float32 as 4 bytes little-endian.
func encodeF32(value float32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(value))
	return buf[:]
}

// encodeString encodes a name with its length prefix.
func encodeString(s string) []byte {
	result := encodeLEB128U(uint64(len(s)))
	return append(result, []byte(s)...)
}

// encodeSection encodes a section with its ID and length prefix.
func encodeSection(id byte, contents []byte) []byte {
	result := []byte{id}
	result = append(result, encodeLEB128U(uint64(len(contents)))...)
	return append(result, contents...)
}

// encodeVector encodes a vector of items with a count prefix.
func encodeVector(count int, items []byte) []byte {
	result := encodeLEB128U(uint64(count))
	return append(result, items...)
}
