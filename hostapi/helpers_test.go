package hostapi

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/tetratelabs/wazero/api"

	bridge "github.com/hostbridge/wasm-bridge"
	"github.com/hostbridge/wasm-bridge/errors"
	"github.com/hostbridge/wasm-bridge/registry"
	"github.com/hostbridge/wasm-bridge/reqctx"
	"github.com/hostbridge/wasm-bridge/txn"
)

// testMemory is a flat byte slice standing in for guest linear memory, so
// namespace tests do not need a wasm runtime. The engine tests cover the
// real memory path.
type testMemory struct {
	buf []byte
}

func newTestMemory() *testMemory {
	return &testMemory{buf: make([]byte, 1<<20)}
}

func (m *testMemory) bounds(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.buf)) {
		return errors.OutOfBounds(errors.PhaseMarshal, offset, length, m.Size())
	}
	return nil
}

func (m *testMemory) Read(offset, length uint32) ([]byte, error) {
	if err := m.bounds(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, m.buf[offset:])
	return out, nil
}

func (m *testMemory) Write(offset uint32, data []byte) error {
	if err := m.bounds(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.buf[offset:], data)
	return nil
}

func (m *testMemory) ReadUint32LE(offset uint32) (uint32, error) {
	if err := m.bounds(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.buf[offset:]), nil
}

func (m *testMemory) WriteUint32LE(offset uint32, value uint32) error {
	if err := m.bounds(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[offset:], value)
	return nil
}

func (m *testMemory) Size() uint32 { return uint32(len(m.buf)) }

// testAlloc hands out bump offsets. The cursor starts past zero because a
// zero pointer reads as allocation failure.
type testAlloc struct {
	mem  *testMemory
	next uint32
}

func (a *testAlloc) Alloc(size uint32) (uint32, error) {
	ptr := a.next
	a.next += (size + 7) &^ 7
	if err := a.mem.bounds(ptr, size); err != nil {
		return 0, err
	}
	return ptr, nil
}

var (
	_ bridge.Memory    = (*testMemory)(nil)
	_ bridge.Allocator = (*testAlloc)(nil)
)

// newEnv builds a dispatch environment over fake guest memory with an empty
// request. Tests mutate the returned Env before calling into the surface.
func newEnv(t *testing.T) (*Env, context.Context) {
	t.Helper()
	mem := newTestMemory()
	e := &Env{
		Mem:   mem,
		Alloc: &testAlloc{mem: mem, next: 16},
		State: reqctx.NewState(reqctx.NewRequest(reqctx.RequestInfo{}), reqctx.NewResponse(), txn.New(nil)),
	}
	return e, WithEnv(context.Background(), e)
}

// surface binds the full dispatch table over deps and indexes it by wire
// module and canonical name.
func surface(t *testing.T, deps *Deps) map[string]api.GoModuleFunc {
	t.Helper()
	cat, err := registry.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	funcs, err := Bind(cat, deps)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	byName := make(map[string]api.GoModuleFunc, len(funcs))
	for _, f := range funcs {
		byName[f.Module+"."+f.Name] = f.Fn
	}
	return byName
}

// call invokes one bound function with the given stack words and returns the
// stack, whose word 0 holds the result if the function has one.
func call(ctx context.Context, fn api.GoModuleFunc, words ...uint64) []uint64 {
	stack := make([]uint64, 8)
	copy(stack, words)
	fn(ctx, nil, stack)
	return stack
}

// put copies s into fake guest memory and returns its (pointer, length)
// stack words.
func put(t *testing.T, e *Env, s string) (uint64, uint64) {
	t.Helper()
	if s == "" {
		return 0, 0
	}
	ptr, err := e.Alloc.Alloc(uint32(len(s)))
	if err != nil {
		t.Fatalf("alloc %d bytes: %v", len(s), err)
	}
	if err := e.Mem.Write(ptr, []byte(s)); err != nil {
		t.Fatalf("write string: %v", err)
	}
	return uint64(ptr), uint64(len(s))
}

// readStr resolves a returned stack word to the length-prefixed string it
// points at.
func readStr(t *testing.T, e *Env, word uint64) string {
	t.Helper()
	data, err := bridge.ReadPrefixed(e.Mem, uint32(word))
	if err != nil {
		t.Fatalf("read result at %d: %v", word, err)
	}
	return string(data)
}

func f64(v float64) uint64 { return math.Float64bits(v) }

func i64(v int64) uint64 { return uint64(v) }
