package registry

import (
	"sort"

	"github.com/tetratelabs/wazero/api"

	bridge "github.com/hostbridge/wasm-bridge"
	"github.com/hostbridge/wasm-bridge/errors"
	"github.com/hostbridge/wasm-bridge/internal/wasmbin"
)

// Validate checks a binding set against the catalog and reports every
// discrepancy in a single pass: catalogued names with no binding, bindings
// absent from the catalog, wire type drift, and names bound more than once.
// Returns nil when the set conforms, otherwise a *errors.BindingMismatchError
// carrying one entry per failure.
func Validate(cat *Catalog, bindings []bridge.HostFunc) error {
	var mismatches []errors.Mismatch

	type bound struct {
		fn   *bridge.HostFunc
		used bool
	}
	byName := make(map[string]map[string]*bound)

	for i := range bindings {
		fn := &bindings[i]
		names := byName[fn.Module]
		if names == nil {
			names = make(map[string]*bound)
			byName[fn.Module] = names
		}
		for _, name := range append([]string{fn.Name}, fn.Aliases...) {
			if _, dup := names[name]; dup {
				mismatches = append(mismatches, errors.Mismatch{
					Module:   fn.Module,
					Func:     name,
					Expected: "one binding",
					Actual:   "bound more than once",
				})
				continue
			}
			names[name] = &bound{fn: fn}
		}
	}

	for _, sig := range cat.Functions() {
		for _, name := range sig.ImportNames() {
			b, ok := byName[sig.Module][name]
			if !ok {
				mismatches = append(mismatches, errors.Mismatch{
					Module:   sig.Module,
					Func:     name,
					Expected: sig.WireString(),
				})
				continue
			}
			b.used = true
			if !typesEqual(sig.WireParams(), b.fn.Params) || !typesEqual(sig.WireResults(), b.fn.Results) {
				mismatches = append(mismatches, errors.Mismatch{
					Module:   sig.Module,
					Func:     name,
					Expected: sig.WireString(),
					Actual:   FormatWire(b.fn.Params, b.fn.Results),
				})
			}
		}
	}

	for module, names := range byName {
		for name, b := range names {
			if !b.used {
				mismatches = append(mismatches, errors.Mismatch{
					Module: module,
					Func:   name,
					Actual: FormatWire(b.fn.Params, b.fn.Results),
				})
			}
		}
	}

	if len(mismatches) == 0 {
		return nil
	}
	sort.Slice(mismatches, func(i, j int) bool {
		if mismatches[i].Module != mismatches[j].Module {
			return mismatches[i].Module < mismatches[j].Module
		}
		return mismatches[i].Func < mismatches[j].Func
	})
	return &errors.BindingMismatchError{Mismatches: mismatches}
}

func typesEqual(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// probeHeapBase leaves room below for data segments a caller might add.
const probeHeapBase = 4096

// BuildProbe assembles a guest module importing every catalogued function,
// canonical names and aliases both, at the expanded wire signature. The
// probe exports a memory, a bump allocator, and an empty entry point, so
// loading it through a bound engine exercises wazero's import type checks
// across the whole surface.
func BuildProbe(cat *Catalog) []byte {
	b := wasmbin.NewModuleBuilder().Memory(1)
	for _, sig := range cat.Functions() {
		for _, name := range sig.ImportNames() {
			b.Import(sig.Module, name, sig.WireParams(), sig.WireResults())
		}
	}
	b.BumpAllocator("alloc", probeHeapBase)
	b.Func(wasmbin.FuncDef{Name: "_start"})
	return b.Build()
}
