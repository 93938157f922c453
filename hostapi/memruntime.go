package hostapi

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// The memory-runtime namespace reserves the wire surface for a future
// lifetime-tracking model. mem_alloc already does real work, routing
// through the guest's own allocator so the heap cursor keeps a single
// writer, while retain/release/scope calls forward to the optional
// bridge.Lifetime hook and otherwise do nothing.
func bindMemoryRuntime(b *binder) {
	b.fn(wireMemory, "mem_alloc", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		// The guest's allocator applies its own alignment policy; the
		// align argument is accepted for ABI stability.
		ptr, err := e.Alloc.Alloc(uint32(stack[0]))
		if err != nil {
			panic(err)
		}
		stack[0] = uint64(ptr)
	}))

	b.fn(wireMemory, "mem_retain", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		if e := env(ctx); e.Life != nil {
			e.Life.Retain(uint32(stack[0]))
		}
	}))

	b.fn(wireMemory, "mem_release", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		if e := env(ctx); e.Life != nil {
			e.Life.Release(uint32(stack[0]))
		}
	}))

	b.fn(wireMemory, "mem_scope_push", api.GoModuleFunc(func(ctx context.Context, _ api.Module, _ []uint64) {
		if e := env(ctx); e.Life != nil {
			e.Life.ScopePush()
		}
	}))

	b.fn(wireMemory, "mem_scope_pop", api.GoModuleFunc(func(ctx context.Context, _ api.Module, _ []uint64) {
		if e := env(ctx); e.Life != nil {
			e.Life.ScopePop()
		}
	}))
}
