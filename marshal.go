package bridge

import (
	"math"

	"github.com/hostbridge/wasm-bridge/errors"
)

// LengthPrefixSize is the byte width of the little-endian length header on
// string returns.
const LengthPrefixSize = 4

// MarshalIn copies bytes out of guest memory at call time. The range is
// bounds-checked against the current memory size; a range past the end fails
// with an out-of-bounds error, which is fatal to the request. An empty ref
// is valid and yields empty bytes.
func MarshalIn(mem Memory, ref StringRef) ([]byte, error) {
	if ref.Len == 0 {
		return []byte{}, nil
	}
	if uint64(ref.Ptr)+uint64(ref.Len) > uint64(mem.Size()) {
		return nil, errors.OutOfBounds(errors.PhaseMarshal, ref.Ptr, ref.Len, mem.Size())
	}
	return mem.Read(ref.Ptr, ref.Len)
}

// MarshalOut places data in guest memory as a length-prefixed buffer and
// returns its pointer. The len+4 bytes come from the guest's own exported
// allocator so the heap cursor has a single writer. Allocator failure is
// fatal to the request.
func MarshalOut(mem Memory, alloc Allocator, data []byte) (uint32, error) {
	if uint64(len(data))+LengthPrefixSize > math.MaxUint32 {
		return 0, errors.InvalidData(errors.PhaseMarshal, "payload exceeds addressable guest memory")
	}
	size := uint32(len(data)) + LengthPrefixSize

	ptr, err := alloc.Alloc(size)
	if err != nil {
		return 0, errors.AllocationFailed(size, err)
	}
	if ptr == 0 {
		return 0, errors.AllocationFailed(size, nil)
	}

	if err := mem.WriteUint32LE(ptr, uint32(len(data))); err != nil {
		return 0, err
	}
	if len(data) > 0 {
		if err := mem.Write(ptr+LengthPrefixSize, data); err != nil {
			return 0, err
		}
	}
	return ptr, nil
}

// ReadPrefixed reads a length-prefixed buffer back out of guest memory.
// The server uses it to collect handler return values; tests use it to
// verify round trips.
func ReadPrefixed(mem Memory, ptr uint32) ([]byte, error) {
	n, err := mem.ReadUint32LE(ptr)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	return mem.Read(ptr+LengthPrefixSize, n)
}
