package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	bridge "github.com/hostbridge/wasm-bridge"
	"github.com/hostbridge/wasm-bridge/errors"
)

// memoryExport is the conventional name of the guest's linear memory.
const memoryExport = "memory"

// Allocator export names, probed in declaration order. The first present
// wins. cabi_realloc and realloc take (ptr, old_size, align, new_size);
// alloc and malloc take (size). Style is decided by parameter count, not
// name, so a 1-arg realloc still works.
var allocNames = [...]string{"cabi_realloc", "realloc", "alloc", "malloc"}

// Entry point export names, probed in declaration order. All optional.
var entryNames = [...]string{"main", "_start", "start", "init"}

// reallocAlign is the alignment passed to realloc-style allocators. Every
// buffer the host places is byte-addressed, so the conventional 8 is plenty.
const reallocAlign = 8

// Config holds engine-level limits applied to every module the engine
// compiles.
type Config struct {
	// MemoryLimitPages caps each instance's linear memory in 64KiB pages.
	// Zero keeps the wazero default.
	MemoryLimitPages uint32
}

// WazeroEngine compiles guest modules and owns the wazero runtime their
// capability imports resolve against.
type WazeroEngine struct {
	runtime wazero.Runtime

	mu       sync.Mutex
	hostMods map[string]struct{} // wire modules already instantiated
}

// NewWazeroEngine creates an engine with default configuration.
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates an engine with custom configuration.
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	return &WazeroEngine{
		runtime:  wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		hostMods: make(map[string]struct{}),
	}, nil
}

// RegisterHost instantiates the given capability functions as host modules,
// grouped by wire module. Each alias exports the same implementation under
// an additional name. Registration must complete before the first guest
// instantiation so imports resolve.
func (e *WazeroEngine) RegisterHost(ctx context.Context, funcs []bridge.HostFunc) error {
	byModule := make(map[string][]bridge.HostFunc)
	for _, f := range funcs {
		byModule[f.Module] = append(byModule[f.Module], f)
	}
	modules := make([]string, 0, len(byModule))
	for mod := range byModule {
		modules = append(modules, mod)
	}
	sort.Strings(modules)

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, mod := range modules {
		if _, dup := e.hostMods[mod]; dup {
			return errors.Registration(mod, "", fmt.Errorf("host module already instantiated"))
		}

		builder := e.runtime.NewHostModuleBuilder(mod)
		names := 0
		for _, f := range byModule[mod] {
			if f.Fn == nil {
				return errors.Registration(mod, f.Name, fmt.Errorf("nil implementation"))
			}
			for _, name := range append([]string{f.Name}, f.Aliases...) {
				builder = builder.NewFunctionBuilder().
					WithGoModuleFunction(f.Fn, f.Params, f.Results).
					Export(name)
				names++
			}
		}

		if _, err := builder.Instantiate(ctx); err != nil {
			return errors.Registration(mod, "", err)
		}
		e.hostMods[mod] = struct{}{}

		Logger().Debug("host module instantiated",
			zap.String("module", mod),
			zap.Int("functions", len(byModule[mod])),
			zap.Int("export_names", names))
	}

	return nil
}

// LoadModule compiles wasmBytes and checks the guest export contract:
// linear memory under "memory", a usable allocator, and a well-formed entry
// point when one is present. Violations fail here, before any instance
// exists.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	if _, ok := compiled.ExportedMemories()[memoryExport]; !ok {
		_ = compiled.Close(ctx)
		return nil, errors.MissingExport(memoryExport, "guest must export its linear memory")
	}

	exports := compiled.ExportedFunctions()

	allocName, simpleAlloc, err := findAllocator(exports)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}

	entryName, err := findEntryPoint(exports)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}

	Logger().Debug("module loaded",
		zap.String("allocator", allocName),
		zap.Bool("size_only_allocator", simpleAlloc),
		zap.String("entry_point", entryName))

	return &WazeroModule{
		engine:      e,
		compiled:    compiled,
		allocName:   allocName,
		simpleAlloc: simpleAlloc,
		entryName:   entryName,
	}, nil
}

// Close releases the runtime and every module and instance created from it.
func (e *WazeroEngine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// findAllocator picks the guest allocator by conventional name and checks
// its wire signature: (i32) -> i32 size-only, or (i32, i32, i32, i32) -> i32
// realloc-style.
func findAllocator(exports map[string]api.FunctionDefinition) (name string, simple bool, err error) {
	for _, candidate := range allocNames {
		def, ok := exports[candidate]
		if !ok {
			continue
		}

		params := def.ParamTypes()
		results := def.ResultTypes()
		okShape := allI32(params) && allI32(results) && len(results) == 1 &&
			(len(params) == 1 || len(params) == 4)
		if !okShape {
			want := "(i32) -> i32"
			if len(params) >= 4 {
				want = "(i32, i32, i32, i32) -> i32"
			}
			return "", false, errors.New(errors.PhaseLoad, errors.KindSignatureMismatch).
				Func(candidate).
				Expected(want).
				Actual(sigString(params, results)).
				Detail("guest exports the wrong signature for func[%s]", candidate).
				Build()
		}

		return candidate, len(params) < 4, nil
	}

	return "", false, errors.MissingExport("allocator",
		"guest must export one of cabi_realloc, realloc, alloc, malloc")
}

// findEntryPoint returns the first conventional entry export, or "" when the
// guest has none. An entry point takes no parameters and returns nothing or
// a single i32 status.
func findEntryPoint(exports map[string]api.FunctionDefinition) (string, error) {
	for _, candidate := range entryNames {
		def, ok := exports[candidate]
		if !ok {
			continue
		}

		params := def.ParamTypes()
		results := def.ResultTypes()
		if len(params) != 0 || len(results) > 1 || !allI32(results) {
			return "", errors.New(errors.PhaseLoad, errors.KindSignatureMismatch).
				Func(candidate).
				Expected("() -> () or () -> i32").
				Actual(sigString(params, results)).
				Detail("guest exports the wrong signature for func[%s]", candidate).
				Build()
		}

		return candidate, nil
	}

	return "", nil
}

func allI32(types []api.ValueType) bool {
	for _, t := range types {
		if t != api.ValueTypeI32 {
			return false
		}
	}
	return true
}

// sigString renders wire types for error messages, e.g. "(i32, i64) -> i32".
func sigString(params, results []api.ValueType) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, t := range params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(api.ValueTypeName(t))
	}
	b.WriteString(") -> ")
	switch len(results) {
	case 0:
		b.WriteString("()")
	case 1:
		b.WriteString(api.ValueTypeName(results[0]))
	default:
		b.WriteByte('(')
		for i, t := range results {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(api.ValueTypeName(t))
		}
		b.WriteByte(')')
	}
	return b.String()
}

// WazeroModule is one compiled guest plus the export names discovered at
// load time. A module instantiates any number of times; compilation happens
// once.
type WazeroModule struct {
	engine      *WazeroEngine
	compiled    wazero.CompiledModule
	allocName   string
	simpleAlloc bool
	entryName   string // "" when the guest has no entry point
}

// EntryPoint returns the guest's entry export name, or "" when it has none.
// The caller invokes it explicitly; instantiation never runs it.
func (m *WazeroModule) EntryPoint() string {
	return m.entryName
}

// Instantiate creates a fresh instance with its own linear memory. Instances
// are anonymous so any number can coexist, and goroutine-confined: one
// request, one instance, no sharing.
func (m *WazeroModule) Instantiate(ctx context.Context) (*WazeroInstance, error) {
	// Anonymous name permits parallel instantiation; clearing the start
	// functions keeps wazero from auto-running _start, which doubles as an
	// entry point here and must run exactly once, on our schedule.
	modConfig := wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions()

	instance, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modConfig)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	mem := instance.ExportedMemory(memoryExport)
	allocFn := instance.ExportedFunction(m.allocName)
	if mem == nil || allocFn == nil {
		_ = instance.Close(ctx)
		return nil, errors.MissingExport(m.allocName, "export present at load time missing from instance")
	}

	return &WazeroInstance{
		module:   m,
		instance: instance,
		memory:   &WazeroMemory{mem: mem},
		alloc:    &guestAllocator{fn: allocFn, simple: m.simpleAlloc},
		funcs:    make(map[string]api.Function),
	}, nil
}

// Close releases the compiled module. Instances created from it close
// independently.
func (m *WazeroModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// WazeroInstance is one live instantiation of a guest module.
type WazeroInstance struct {
	module   *WazeroModule
	instance api.Module
	memory   *WazeroMemory
	alloc    *guestAllocator
	funcs    map[string]api.Function // export lookup cache
}

// Memory returns the instance's linear memory.
func (i *WazeroInstance) Memory() bridge.Memory {
	return i.memory
}

// Allocator returns the guest's exported allocator.
func (i *WazeroInstance) Allocator() bridge.Allocator {
	return i.alloc
}

// Exported reports whether the guest exports a function under name.
func (i *WazeroInstance) Exported(name string) bool {
	return i.lookup(name) != nil
}

// Call invokes an exported guest function. The context is also carried into
// any allocator re-entries the call triggers through host functions.
func (i *WazeroInstance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := i.lookup(name)
	if fn == nil {
		return nil, errors.New(errors.PhaseDispatch, errors.KindMissingExport).
			Func(name).
			Detail("guest does not export func[%s]", name).
			Build()
	}

	i.alloc.ctx = ctx
	defer func() { i.alloc.ctx = nil }()

	return fn.Call(ctx, params...)
}

// Close releases the instance and its memory.
func (i *WazeroInstance) Close(ctx context.Context) error {
	return i.instance.Close(ctx)
}

func (i *WazeroInstance) lookup(name string) api.Function {
	if fn, ok := i.funcs[name]; ok {
		return fn
	}
	fn := i.instance.ExportedFunction(name)
	if fn != nil {
		i.funcs[name] = fn
	}
	return fn
}

// WazeroMemory adapts api.Memory to bridge.Memory. Read hands back a copy;
// views into guest memory never outlive a call.
type WazeroMemory struct {
	mem api.Memory
}

func (m *WazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.New(errors.PhaseMarshal, errors.KindOutOfBounds).
			Detail("read out of bounds: offset=%d, length=%d", offset, length).
			Build()
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *WazeroMemory) Write(offset uint32, data []byte) error {
	if ok := m.mem.Write(offset, data); !ok {
		return errors.New(errors.PhaseMarshal, errors.KindOutOfBounds).
			Detail("write out of bounds: offset=%d, length=%d", offset, len(data)).
			Build()
	}
	return nil
}

func (m *WazeroMemory) ReadUint32LE(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.New(errors.PhaseMarshal, errors.KindOutOfBounds).
			Detail("read out of bounds: offset=%d, length=%d", offset, 4).
			Build()
	}
	return val, nil
}

func (m *WazeroMemory) WriteUint32LE(offset uint32, value uint32) error {
	if ok := m.mem.WriteUint32Le(offset, value); !ok {
		return errors.New(errors.PhaseMarshal, errors.KindOutOfBounds).
			Detail("write out of bounds: offset=%d, length=%d", offset, 4).
			Build()
	}
	return nil
}

func (m *WazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// guestAllocator adapts the guest's exported allocator to bridge.Allocator.
// The stack buffer is reused across calls; instances are goroutine-confined
// so allocator calls never overlap.
type guestAllocator struct {
	fn       api.Function
	simple   bool
	ctx      context.Context // live guest call context, set by Call
	stackBuf [4]uint64
}

func (a *guestAllocator) Alloc(size uint32) (uint32, error) {
	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	if a.simple {
		a.stackBuf[0] = uint64(size)
		if err := a.fn.CallWithStack(ctx, a.stackBuf[:1]); err != nil {
			return 0, err
		}
		return uint32(a.stackBuf[0]), nil
	}

	a.stackBuf[0] = 0 // no prior pointer: this is a fresh allocation
	a.stackBuf[1] = 0
	a.stackBuf[2] = reallocAlign
	a.stackBuf[3] = uint64(size)
	if err := a.fn.CallWithStack(ctx, a.stackBuf[:4]); err != nil {
		return 0, err
	}
	return uint32(a.stackBuf[0]), nil
}

// Compile-time checks that the adapters satisfy the bridge contracts.
var (
	_ bridge.Memory    = (*WazeroMemory)(nil)
	_ bridge.Allocator = (*guestAllocator)(nil)
)
