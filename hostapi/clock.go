package hostapi

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// _time_now reads the injected clock so tests can pin the instant.
func bindTime(b *binder, d *Deps) {
	b.fn(wireEnv, "_time_now", api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
		stack[0] = uint64(d.Now().Unix())
	}))
}
