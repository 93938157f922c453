package hostapi

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// Session KV calls are safe without a session: reads come back empty and
// writes vanish. Anonymous requests hit this path constantly, so none of it
// is an error.
func bindSession(b *binder, d *Deps) {
	b.fn(wireEnv, "_session_get", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.Session == nil {
			stack[0] = e.out("")
			return
		}
		value, _ := d.Sessions.Value(e.State.Session.ID, e.str(stack, 0))
		stack[0] = e.out(value)
	}))

	b.fn(wireEnv, "_session_set", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.Session == nil {
			return
		}
		d.Sessions.SetValue(e.State.Session.ID, e.str(stack, 0), e.str(stack, 2))
	}))

	b.fn(wireEnv, "_session_delete", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.Session == nil {
			return
		}
		d.Sessions.DeleteValue(e.State.Session.ID, e.str(stack, 0))
	}))

	b.fn(wireEnv, "_session_id", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.Session == nil {
			stack[0] = e.out("")
			return
		}
		stack[0] = e.out(e.State.Session.ID)
	}))

	b.fn(wireEnv, "_csrf_token", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.Session == nil {
			stack[0] = e.out("")
			return
		}
		stack[0] = e.out(e.State.Session.CSRF)
	}))
}
