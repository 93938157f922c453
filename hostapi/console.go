package hostapi

import (
	"context"
	"math"
	"strconv"

	"github.com/tetratelabs/wazero/api"
)

// Guest console output flows through the package logger: print variants at
// Info, console_warn at Warn, console_error at Error. The print/printl split
// matters to terminal-oriented runtimes; a structured log line carries no
// trailing-newline distinction, so both land identically here.
func bindConsole(b *binder) {
	b.fn(wireEnv, "print", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		Logger().Info(env(ctx).str(stack, 0))
	}))
	b.fn(wireEnv, "printl", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		Logger().Info(env(ctx).str(stack, 0))
	}))
	b.fn(wireEnv, "print_integer", api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
		Logger().Info(strconv.FormatInt(int64(stack[0]), 10))
	}))
	b.fn(wireEnv, "print_float", api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
		Logger().Info(strconv.FormatFloat(math.Float64frombits(stack[0]), 'f', -1, 64))
	}))
	b.fn(wireEnv, "print_boolean", api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
		Logger().Info(strconv.FormatBool(stack[0] != 0))
	}))
	b.fn(wireEnv, "console_log", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		Logger().Info(env(ctx).str(stack, 0))
	}))
	b.fn(wireEnv, "console_warn", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		Logger().Warn(env(ctx).str(stack, 0))
	}))
	b.fn(wireEnv, "console_error", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		Logger().Error(env(ctx).str(stack, 0))
	}))

	// Interactive input has no source during HTTP dispatch. The prompt is
	// ignored and each variant answers its safe default, so guests built
	// for a terminal still link and run.
	b.fn(wireEnv, "input", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		stack[0] = env(ctx).out("")
	}))
	b.fn(wireEnv, "input_integer", api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
		stack[0] = 0
	}))
	b.fn(wireEnv, "input_float", api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
		stack[0] = 0
	}))
	b.fn(wireEnv, "input_yesno", api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
		stack[0] = 0
	}))
	b.fn(wireEnv, "input_range", api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
		// The lower bound comes back, the way an interactive runtime
		// would default an unanswered prompt.
		stack[0] = stack[2]
	}))
}
