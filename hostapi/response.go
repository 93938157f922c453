package hostapi

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// Response mutations land on the request's accumulator. After a
// short-circuit the accumulator ignores them, so no special-casing here.
func bindResponse(b *binder) {
	b.fn(wireEnv, "_res_set_status", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		e.State.Res.SetStatus(int(int64(stack[0])))
	}))

	b.fn(wireEnv, "_res_set_header", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		e.State.Res.SetHeader(e.str(stack, 0), e.str(stack, 2))
	}))

	b.fn(wireEnv, "_res_set_cookie", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		name := e.str(stack, 0)
		value := e.str(stack, 2)
		if name == "" {
			return
		}
		e.State.Res.AddCookie(fmt.Sprintf("%s=%s; Path=/", name, value))
	}))

	b.fn(wireEnv, "_res_redirect", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		e.State.Res.Redirect(e.str(stack, 0), int(int64(stack[2])))
	}))
}
