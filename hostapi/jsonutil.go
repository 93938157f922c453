package hostapi

import (
	"context"
	"encoding/json"

	"github.com/tetratelabs/wazero/api"

	"github.com/hostbridge/wasm-bridge/internal/jsonpath"
)

// JSON utilities parse fresh on every call: guests pass documents by
// value, so there is nothing worth caching host-side. Scalars render bare
// (no quotes), composites re-encode compact.
func bindJSON(b *binder) {
	b.fn(wireEnv, "_json_get", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		value, _ := jsonpath.Get([]byte(e.str(stack, 0)), e.str(stack, 2))
		stack[0] = e.out(value)
	}))

	b.fn(wireEnv, "_json_array_len", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		var arr []any
		if err := json.Unmarshal([]byte(e.str(stack, 0)), &arr); err != nil {
			stack[0] = 0
			return
		}
		stack[0] = uint64(int64(len(arr)))
	}))

	b.fn(wireEnv, "_json_array_get", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		doc := e.str(stack, 0)
		idx := int64(stack[2])

		var arr []any
		if err := json.Unmarshal([]byte(doc), &arr); err != nil || idx < 0 || idx >= int64(len(arr)) {
			stack[0] = e.out("")
			return
		}
		stack[0] = e.out(jsonpath.Render(arr[idx]))
	}))

	b.fn(wireEnv, "_json_valid", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = boolWord(json.Valid([]byte(e.str(stack, 0))))
	}))

	b.fn(wireEnv, "_json_stringify", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		var doc any
		if err := json.Unmarshal([]byte(e.str(stack, 0)), &doc); err != nil {
			stack[0] = e.out("")
			return
		}
		encoded, err := json.Marshal(doc)
		if err != nil {
			stack[0] = e.out("")
			return
		}
		stack[0] = e.out(string(encoded))
	}))
}
