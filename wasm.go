package bridge

import (
	"github.com/tetratelabs/wazero/api"
)

// Memory is one guest instance's linear memory. Read returns a copy of the
// requested range; views into guest memory are never retained across calls.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadUint32LE(offset uint32) (uint32, error)
	WriteUint32LE(offset uint32, value uint32) error
	Size() uint32
}

// Allocator obtains guest memory through the guest's own exported allocator.
// The host holds no allocation authority of its own.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
}

// Lifetime is the reservation surface for a future lifetime-tracking model.
// Current implementations are no-ops; callers must not assume any guarantee
// from these hooks today.
type Lifetime interface {
	Retain(ptr uint32)
	Release(ptr uint32)
	ScopePush()
	ScopePop()
}

// StringRef locates guest-owned bytes as a (pointer, length) pair. A ref is
// valid only for the duration of the current host call; any subsequent
// guest-side reallocation invalidates it.
type StringRef struct {
	Ptr uint32
	Len uint32
}

// HostFunc is one capability function in wire form, ready for registration
// with the engine. Aliases are additional import names bound to the same
// implementation.
type HostFunc struct {
	Module  string
	Name    string
	Aliases []string
	Params  []api.ValueType
	Results []api.ValueType
	Fn      api.GoModuleFunc
}
