package hostapi

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// Request accessors are thin reads over the immutable reqctx.Request.
// Absent values come back empty, matching the accessors underneath.
func bindRequest(b *binder) {
	b.fn(wireEnv, "_req_param", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(e.State.Req.Param(e.str(stack, 0)))
	}))

	b.fn(wireEnv, "_req_param_int", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = uint64(e.State.Req.ParamInt(e.str(stack, 0)))
	}))

	b.fn(wireEnv, "_req_query", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(e.State.Req.Query(e.str(stack, 0)))
	}))

	b.fn(wireEnv, "_req_body", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(string(e.State.Req.Body()))
	}))

	b.fn(wireEnv, "_req_body_field", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(e.State.Req.BodyField(e.str(stack, 0)))
	}))

	b.fn(wireEnv, "_req_header", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(e.State.Req.Header(e.str(stack, 0)))
	}))

	b.fn(wireEnv, "_req_method", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(e.State.Req.Method())
	}))

	b.fn(wireEnv, "_req_path", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(e.State.Req.Path())
	}))

	b.fn(wireEnv, "_req_cookie", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(e.State.Req.Cookie(e.str(stack, 0)))
	}))
}
