package hostapi

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero/api"
)

// All math functions are pure f64 passthroughs to the standard library.
// NaN and infinity propagate untouched; the guest sees exactly what Go's
// math package produces.
func bindMath(b *binder) {
	unary := map[string]func(float64) float64{
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"asin":  math.Asin,
		"acos":  math.Acos,
		"atan":  math.Atan,
		"sinh":  math.Sinh,
		"cosh":  math.Cosh,
		"tanh":  math.Tanh,
		"exp":   math.Exp,
		"exp2":  math.Exp2,
		"ln":    math.Log,
		"log2":  math.Log2,
		"log10": math.Log10,
		"sqrt":  math.Sqrt,
	}
	for name, f := range unary {
		f := f
		b.fn(wireEnv, name, api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = math.Float64bits(f(math.Float64frombits(stack[0])))
		}))
	}

	binary := map[string]func(x, y float64) float64{
		"atan2": math.Atan2,
		"pow":   math.Pow,
	}
	for name, f := range binary {
		f := f
		b.fn(wireEnv, name, api.GoModuleFunc(func(_ context.Context, _ api.Module, stack []uint64) {
			stack[0] = math.Float64bits(f(math.Float64frombits(stack[0]), math.Float64frombits(stack[1])))
		}))
	}
}
