package hostapi

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// Guest lists live in linear memory behind a 16-byte header: element count,
// capacity, type id, one reserved word, all u32 little-endian, then f64
// elements at 8 bytes each. Reads, pops, and iteration compile into the
// guest; appending runs host-side so the new element and the count update
// land in one step.
const (
	listHeaderSize = 16
	listElemSize   = 8
)

func bindList(b *binder) {
	b.fn(wireEnv, "list_push_f64", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		listPtr := uint32(stack[0])
		value := math.Float64frombits(stack[1])

		header, err := e.Mem.Read(listPtr, listHeaderSize)
		if err != nil {
			Logger().Debug("list header unreadable", zap.Uint32("ptr", listPtr))
			stack[0] = 0
			return
		}
		length := binary.LittleEndian.Uint32(header[0:4])
		capacity := binary.LittleEndian.Uint32(header[4:8])

		// A full list is left untouched; the guest reads the unchanged
		// count and grows the list itself.
		if length >= capacity {
			stack[0] = uint64(listPtr)
			return
		}

		elem := make([]byte, listElemSize)
		binary.LittleEndian.PutUint64(elem, math.Float64bits(value))
		offset := listPtr + listHeaderSize + length*listElemSize
		if err := e.Mem.Write(offset, elem); err != nil {
			stack[0] = uint64(listPtr)
			return
		}
		if err := e.Mem.WriteUint32LE(listPtr, length+1); err != nil {
			stack[0] = uint64(listPtr)
			return
		}
		stack[0] = uint64(listPtr)
	}))
}
