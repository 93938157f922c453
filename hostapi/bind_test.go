package hostapi

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/hostbridge/wasm-bridge/engine"
	"github.com/hostbridge/wasm-bridge/errors"
	"github.com/hostbridge/wasm-bridge/registry"
)

func TestBindCoversCatalog(t *testing.T) {
	cat, err := registry.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	funcs, err := Bind(cat, nil)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if len(funcs) != cat.Len() {
		t.Fatalf("bound %d functions, catalog has %d", len(funcs), cat.Len())
	}

	var sawAlias bool
	for _, f := range funcs {
		if f.Module == "env" && f.Name == "console_log" {
			sawAlias = len(f.Aliases) == 1 && f.Aliases[0] == "console.log"
		}
	}
	if !sawAlias {
		t.Error("console_log did not carry its console.log alias out of the catalog")
	}
}

// The probe imports every catalogued name at its expanded wire signature, so
// instantiating it against the bound surface proves the whole contract at
// wazero's type checker, aliases included.
func TestBindProbeInstantiates(t *testing.T) {
	ctx := context.Background()

	cat, err := registry.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	funcs, err := Bind(cat, nil)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	eng, err := engine.NewWazeroEngine(ctx)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer eng.Close(ctx)

	if err := eng.RegisterHost(ctx, funcs); err != nil {
		t.Fatalf("register host: %v", err)
	}
	mod, err := eng.LoadModule(ctx, registry.BuildProbe(cat))
	if err != nil {
		t.Fatalf("load probe: %v", err)
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate probe: %v", err)
	}
	defer inst.Close(ctx)

	if got := mod.EntryPoint(); got != "_start" {
		t.Errorf("probe entry point = %q, want _start", got)
	}
}

func TestBinderRejectsDoubleRegistration(t *testing.T) {
	cat, err := registry.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	noop := api.GoModuleFunc(func(context.Context, api.Module, []uint64) {})
	b := newBinder()
	b.fn("env", "print", noop)
	b.fn("env", "print", noop)

	_, err = b.resolve(cat)
	var bindErr *errors.BindingMismatchError
	if !stderrors.As(err, &bindErr) {
		t.Fatalf("resolve returned %v, want a binding mismatch", err)
	}
	if !strings.Contains(err.Error(), "registered more than once") {
		t.Errorf("mismatch does not name the double registration: %v", err)
	}
}

func TestBinderRejectsNamesOutsideCatalog(t *testing.T) {
	cat, err := registry.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	noop := api.GoModuleFunc(func(context.Context, api.Module, []uint64) {})

	for _, tc := range []struct {
		name   string
		module string
		fn     string
	}{
		{"unknown name", "env", "definitely_not_catalogued"},
		{"alias keyed", "env", "console.log"},
		{"unknown module", "wasi_snapshot_preview1", "print"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := newBinder()
			b.fn(tc.module, tc.fn, noop)
			_, err := b.resolve(cat)
			var bindErr *errors.BindingMismatchError
			if !stderrors.As(err, &bindErr) {
				t.Fatalf("resolve returned %v, want a binding mismatch", err)
			}
		})
	}
}
