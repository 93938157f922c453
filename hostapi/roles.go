package hostapi

import (
	"context"
	"encoding/json"

	"github.com/tetratelabs/wazero/api"
)

// The role table is process-wide: guests typically register roles during
// boot and only read afterwards.
func bindRoles(b *binder, d *Deps) {
	b.fn(wireEnv, "_roles_register", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		role := e.str(stack, 0)
		if role == "" {
			return
		}
		d.Roles.Register(role, splitCSV(e.str(stack, 2))...)
	}))

	b.fn(wireEnv, "_roles_can", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = boolWord(d.Roles.Can(e.str(stack, 0), e.str(stack, 2)))
	}))

	b.fn(wireEnv, "_roles_list", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		encoded, err := json.Marshal(d.Roles.Roles())
		if err != nil {
			stack[0] = e.out("[]")
			return
		}
		stack[0] = e.out(string(encoded))
	}))
}
