package hostapi

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// The http-server namespace is the guest's half of route wiring. While the
// entry point runs, Env.Routes records registrations; afterwards the router
// is frozen and late calls are logged and dropped: re-registering routes
// per request would let one request mutate another's dispatch table.
func bindHTTPServer(b *binder) {
	b.fn(wireEnv, "_http_listen", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		port := int64(stack[0])
		if e.Routes == nil {
			Logger().Warn("listen after boot ignored", zap.Int64("port", port))
			return
		}
		e.Routes.Listen(port)
	}))

	b.fn(wireEnv, "_http_route", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		method := e.str(stack, 0)
		pattern := e.str(stack, 2)
		handler := int32(int64(stack[4]))
		if e.Routes == nil {
			Logger().Warn("route registration after boot ignored",
				zap.String("method", method),
				zap.String("pattern", pattern))
			return
		}
		e.Routes.Record(method, pattern, handler, false, "")
	}))

	b.fn(wireEnv, "_http_route_protected", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		method := e.str(stack, 0)
		pattern := e.str(stack, 2)
		handler := int32(int64(stack[4]))
		role := e.str(stack, 5)
		if e.Routes == nil {
			Logger().Warn("route registration after boot ignored",
				zap.String("method", method),
				zap.String("pattern", pattern))
			return
		}
		e.Routes.Record(method, pattern, handler, true, role)
	}))

	b.fn(wireEnv, "_http_respond", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		status := int(int64(stack[0]))
		body := e.str(stack, 1)
		e.State.Res.ShortCircuit(status, []byte(body))
	}))

	b.fn(wireEnv, "_http_redirect", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		e.State.Res.Redirect(e.str(stack, 0), int(int64(stack[2])))
	}))

	b.fn(wireEnv, "_http_set_header", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		e.State.Res.SetHeader(e.str(stack, 0), e.str(stack, 2))
	}))
}
