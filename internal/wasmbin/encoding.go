package wasmbin

import (
	"github.com/tetratelabs/wazero/api"
)

// EncodeULEB128 encodes an unsigned value in LEB128 format.
func EncodeULEB128(v uint32) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		result = append(result, b)
		if v == 0 {
			break
		}
	}
	return result
}

// EncodeSLEB128 encodes a signed value in LEB128 format.
func EncodeSLEB128[T int32 | int64](v T) []byte {
	var result []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			result = append(result, b)
			break
		}
		result = append(result, b|0x80)
	}
	return result
}

// ValTypeToWasm converts a wazero value type to its WASM binary encoding.
func ValTypeToWasm(t api.ValueType) byte {
	switch t {
	case api.ValueTypeI32:
		return 0x7f
	case api.ValueTypeI64:
		return 0x7e
	case api.ValueTypeF32:
		return 0x7d
	case api.ValueTypeF64:
		return 0x7c
	default:
		return 0x7f
	}
}

func encodeName(name string) []byte {
	out := EncodeULEB128(uint32(len(name)))
	return append(out, name...)
}

// Instruction helpers for assembling function bodies.

// I32Const encodes an i32.const instruction.
func I32Const(v int32) []byte {
	return append([]byte{0x41}, EncodeSLEB128(v)...)
}

// I64Const encodes an i64.const instruction.
func I64Const(v int64) []byte {
	return append([]byte{0x42}, EncodeSLEB128(v)...)
}

// Call encodes a call instruction for the given function index.
func Call(funcIdx uint32) []byte {
	return append([]byte{0x10}, EncodeULEB128(funcIdx)...)
}

// LocalGet encodes local.get.
func LocalGet(idx uint32) []byte {
	return append([]byte{0x20}, EncodeULEB128(idx)...)
}

// LocalSet encodes local.set.
func LocalSet(idx uint32) []byte {
	return append([]byte{0x21}, EncodeULEB128(idx)...)
}

// GlobalGet encodes global.get.
func GlobalGet(idx uint32) []byte {
	return append([]byte{0x23}, EncodeULEB128(idx)...)
}

// GlobalSet encodes global.set.
func GlobalSet(idx uint32) []byte {
	return append([]byte{0x24}, EncodeULEB128(idx)...)
}

// Drop encodes a drop instruction.
func Drop() []byte { return []byte{0x1a} }

// I32Add encodes i32.add.
func I32Add() []byte { return []byte{0x6a} }

// Body concatenates instruction fragments into one function body.
func Body(frags ...[]byte) []byte {
	var out []byte
	for _, f := range frags {
		out = append(out, f...)
	}
	return out
}
