package hostapi

import (
	"sort"

	"github.com/tetratelabs/wazero/api"

	bridge "github.com/hostbridge/wasm-bridge"
	"github.com/hostbridge/wasm-bridge/errors"
	"github.com/hostbridge/wasm-bridge/registry"
)

// binder collects implementations keyed (wire module, canonical name) until
// Bind matches them against the catalogue.
type binder struct {
	impls map[string]map[string]api.GoModuleFunc
	dupes []string
}

func newBinder() *binder {
	return &binder{impls: make(map[string]map[string]api.GoModuleFunc)}
}

func (b *binder) fn(module, name string, impl api.GoModuleFunc) {
	byName := b.impls[module]
	if byName == nil {
		byName = make(map[string]api.GoModuleFunc)
		b.impls[module] = byName
	}
	if _, dup := byName[name]; dup {
		b.dupes = append(b.dupes, module+"#"+name)
		return
	}
	byName[name] = impl
}

// resolve types each implementation from its catalogue signature. An
// implementation the catalogue does not know, or one registered twice, is a
// bind failure; a catalogue entry nobody implemented surfaces later in
// Validate.
func (b *binder) resolve(cat *registry.Catalog) ([]bridge.HostFunc, error) {
	var mismatches []errors.Mismatch
	for _, dup := range b.dupes {
		mismatches = append(mismatches, errors.Mismatch{
			Module:   moduleOf(dup),
			Func:     nameOf(dup),
			Expected: "one implementation",
			Actual:   "registered more than once",
		})
	}

	funcs := make([]bridge.HostFunc, 0, cat.Len())
	for module, byName := range b.impls {
		for name, impl := range byName {
			sig, ok := cat.Lookup(module, name)
			if !ok || sig.Name != name {
				// Alias-keyed registrations count as unknown: only
				// canonical names bind.
				mismatches = append(mismatches, errors.Mismatch{
					Module: module,
					Func:   name,
					Actual: "implemented but absent from registry",
				})
				continue
			}
			funcs = append(funcs, bridge.HostFunc{
				Module:  module,
				Name:    sig.Name,
				Aliases: sig.Aliases,
				Params:  sig.WireParams(),
				Results: sig.WireResults(),
				Fn:      impl,
			})
		}
	}

	if len(mismatches) > 0 {
		sort.Slice(mismatches, func(i, j int) bool {
			if mismatches[i].Module != mismatches[j].Module {
				return mismatches[i].Module < mismatches[j].Module
			}
			return mismatches[i].Func < mismatches[j].Func
		})
		return nil, &errors.BindingMismatchError{Mismatches: mismatches}
	}

	sort.Slice(funcs, func(i, j int) bool {
		if funcs[i].Module != funcs[j].Module {
			return funcs[i].Module < funcs[j].Module
		}
		return funcs[i].Name < funcs[j].Name
	})
	return funcs, nil
}

func moduleOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '#' {
			return key[:i]
		}
	}
	return key
}

func nameOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == '#' {
			return key[i+1:]
		}
	}
	return ""
}

// Bind builds the complete dispatch surface over deps and validates it
// against the catalogue. Wire types come from the catalogue itself, so a
// drifted implementation fails here instead of diverging silently. The
// returned set registers directly with the engine.
func Bind(cat *registry.Catalog, deps *Deps) ([]bridge.HostFunc, error) {
	if deps == nil {
		deps = &Deps{}
	}
	deps.fillDefaults()

	b := newBinder()
	bindConsole(b)
	bindMath(b)
	bindStrings(b)
	bindList(b)
	bindMemoryRuntime(b)
	bindDatabase(b)
	bindFilesystem(b, deps)
	bindHTTPClient(b, deps)
	bindCrypto(b)
	bindToken(b, deps)
	bindEnvironment(b, deps)
	bindTime(b, deps)
	bindHTTPServer(b)
	bindRequest(b)
	bindResponse(b)
	bindSession(b, deps)
	bindAuth(b, deps)
	bindRoles(b, deps)
	bindJSON(b)

	funcs, err := b.resolve(cat)
	if err != nil {
		return nil, err
	}
	if err := registry.Validate(cat, funcs); err != nil {
		return nil, err
	}
	return funcs, nil
}
