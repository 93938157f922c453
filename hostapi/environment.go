package hostapi

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// _env_get consults the process environment for names matching
// [A-Za-z0-9_]+ and returns "" for anything else. The charset check keeps
// guests from probing with shell metacharacters or empty names.
func bindEnvironment(b *binder, d *Deps) {
	b.fn(wireEnv, "_env_get", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		name := e.str(stack, 0)
		if !validEnvName(name) {
			stack[0] = e.out("")
			return
		}
		stack[0] = e.out(d.Getenv(name))
	}))
}

func validEnvName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}
