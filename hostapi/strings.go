package hostapi

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/tetratelabs/wazero/api"
)

func bindStrings(b *binder) {
	b.fn(wireEnv, "string_concat", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(e.str(stack, 0) + e.str(stack, 2))
	}))

	b.fn(wireEnv, "string_substring", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		s := e.str(stack, 0)
		start := clampIndex(int64(stack[2]), len(s))
		end := clampIndex(int64(stack[3]), len(s))
		if start > end {
			stack[0] = e.out("")
			return
		}
		stack[0] = e.out(s[start:end])
	}))

	b.fn(wireEnv, "string_index_of", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = uint64(int64(strings.Index(e.str(stack, 0), e.str(stack, 2))))
	}))

	b.fn(wireEnv, "string_compare", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = uint64(int64(strings.Compare(e.str(stack, 0), e.str(stack, 2))))
	}))

	b.fn(wireEnv, "string_replace", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(strings.ReplaceAll(e.str(stack, 0), e.str(stack, 2), e.str(stack, 4)))
	}))

	b.fn(wireEnv, "string_split", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		parts := strings.Split(e.str(stack, 0), e.str(stack, 2))
		encoded, err := json.Marshal(parts)
		if err != nil {
			stack[0] = e.out("[]")
			return
		}
		stack[0] = e.out(string(encoded))
	}))

	b.fn(wireEnv, "string_to_upper", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(strings.ToUpper(e.str(stack, 0)))
	}))

	b.fn(wireEnv, "string_to_lower", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(strings.ToLower(e.str(stack, 0)))
	}))

	b.fn(wireEnv, "string_trim", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(strings.TrimSpace(e.str(stack, 0)))
	}))

	b.fn(wireEnv, "string_trim_start", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(strings.TrimLeftFunc(e.str(stack, 0), unicode.IsSpace))
	}))

	b.fn(wireEnv, "string_trim_end", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(strings.TrimRightFunc(e.str(stack, 0), unicode.IsSpace))
	}))

	b.fn(wireEnv, "int_to_string", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		stack[0] = env(ctx).out(strconv.FormatInt(int64(stack[0]), 10))
	}))

	b.fn(wireEnv, "float_to_string", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		stack[0] = env(ctx).out(strconv.FormatFloat(math.Float64frombits(stack[0]), 'f', -1, 64))
	}))

	b.fn(wireEnv, "bool_to_string", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		stack[0] = env(ctx).out(strconv.FormatBool(stack[0] != 0))
	}))

	b.fn(wireEnv, "string_to_int", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		v, err := strconv.ParseInt(strings.TrimSpace(e.str(stack, 0)), 10, 64)
		if err != nil {
			v = 0
		}
		stack[0] = uint64(v)
	}))

	b.fn(wireEnv, "string_to_float", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		v, err := strconv.ParseFloat(strings.TrimSpace(e.str(stack, 0)), 64)
		if err != nil {
			v = 0
		}
		stack[0] = math.Float64bits(v)
	}))

	b.fn(wireEnv, "string_to_bool", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		switch strings.ToLower(strings.TrimSpace(e.str(stack, 0))) {
		case "true", "1", "yes", "on":
			stack[0] = 1
		default:
			stack[0] = 0
		}
	}))
}

// clampIndex forces a guest-supplied index into [0, n].
func clampIndex(i int64, n int) int {
	if i < 0 {
		return 0
	}
	if i > int64(n) {
		return n
	}
	return int(i)
}
