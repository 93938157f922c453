package hostapi

import (
	"encoding/binary"
	"math"
	"testing"
)

// writeListHeader lays out an empty list at ptr: length, capacity, type id,
// reserved, then room for the elements.
func writeListHeader(t *testing.T, e *Env, ptr, length, capacity uint32) {
	t.Helper()
	header := make([]byte, listHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], length)
	binary.LittleEndian.PutUint32(header[4:8], capacity)
	binary.LittleEndian.PutUint32(header[8:12], 1)
	if err := e.Mem.Write(ptr, header); err != nil {
		t.Fatalf("write list header: %v", err)
	}
}

func listState(t *testing.T, e *Env, ptr uint32) (length uint32, elems []float64) {
	t.Helper()
	length, err := e.Mem.ReadUint32LE(ptr)
	if err != nil {
		t.Fatalf("read list length: %v", err)
	}
	for i := uint32(0); i < length; i++ {
		raw, err := e.Mem.Read(ptr+listHeaderSize+i*listElemSize, listElemSize)
		if err != nil {
			t.Fatalf("read element %d: %v", i, err)
		}
		elems = append(elems, math.Float64frombits(binary.LittleEndian.Uint64(raw)))
	}
	return length, elems
}

func TestListPushF64(t *testing.T) {
	fns := surface(t, nil)
	e, ctx := newEnv(t)

	const listPtr = 1024
	writeListHeader(t, e, listPtr, 0, 3)

	for i, v := range []float64{1.5, -2.25, 100} {
		stack := call(ctx, fns["env.list_push_f64"], listPtr, f64(v))
		if got := uint32(stack[0]); got != listPtr {
			t.Fatalf("push %d returned %d, want the list pointer", i, got)
		}
	}

	length, elems := listState(t, e, listPtr)
	if length != 3 {
		t.Fatalf("length = %d, want 3", length)
	}
	for i, want := range []float64{1.5, -2.25, 100} {
		if elems[i] != want {
			t.Errorf("element %d = %v, want %v", i, elems[i], want)
		}
	}
}

// A full list is left untouched; the guest sees the unchanged count and
// grows the list itself.
func TestListPushF64Full(t *testing.T) {
	fns := surface(t, nil)
	e, ctx := newEnv(t)

	const listPtr = 2048
	writeListHeader(t, e, listPtr, 2, 2)

	stack := call(ctx, fns["env.list_push_f64"], listPtr, f64(7))
	if got := uint32(stack[0]); got != listPtr {
		t.Fatalf("push on full list returned %d, want the list pointer", got)
	}
	length, err := e.Mem.ReadUint32LE(listPtr)
	if err != nil {
		t.Fatal(err)
	}
	if length != 2 {
		t.Errorf("length = %d, want unchanged 2", length)
	}
}

func TestListPushF64HeaderOutOfBounds(t *testing.T) {
	fns := surface(t, nil)
	e, ctx := newEnv(t)

	stack := call(ctx, fns["env.list_push_f64"], uint64(e.Mem.Size()), f64(1))
	if stack[0] != 0 {
		t.Errorf("push with unreadable header = %d, want 0", uint32(stack[0]))
	}
}
