package wasmbin

import (
	"github.com/tetratelabs/wazero/api"
)

// FuncImport declares one function import.
type FuncImport struct {
	Module  string
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
}

// FuncDef defines one module-local function. Body holds instructions without
// the trailing end opcode; the builder appends it.
type FuncDef struct {
	Name    string // export name; empty means not exported
	Params  []api.ValueType
	Results []api.ValueType
	Locals  []api.ValueType
	Body    []byte
}

// GlobalDef defines one module-local i32 global.
type GlobalDef struct {
	Name    string // export name; empty means not exported
	Mutable bool
	Init    int32
}

type dataSeg struct {
	offset uint32
	bytes  []byte
}

// ModuleBuilder assembles a core WebAssembly module.
type ModuleBuilder struct {
	imports  []FuncImport
	funcs    []FuncDef
	globals  []GlobalDef
	data     []dataSeg
	memPages uint32
	memName  string
}

// NewModuleBuilder returns an empty builder. Call Memory to give the module
// linear memory; import-only probe modules leave it out.
func NewModuleBuilder() *ModuleBuilder {
	return &ModuleBuilder{memName: "memory"}
}

// Memory declares a module-defined linear memory of min pages, exported
// under the conventional "memory" name.
func (b *ModuleBuilder) Memory(pages uint32) *ModuleBuilder {
	b.memPages = pages
	return b
}

// Import adds a function import and returns its function index.
func (b *ModuleBuilder) Import(module, name string, params, results []api.ValueType) uint32 {
	b.imports = append(b.imports, FuncImport{Module: module, Name: name, Params: params, Results: results})
	return uint32(len(b.imports) - 1)
}

// Func adds a module-local function and returns its function index.
// Local functions index after all imports.
func (b *ModuleBuilder) Func(def FuncDef) uint32 {
	b.funcs = append(b.funcs, def)
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// Global adds an i32 global and returns its global index.
func (b *ModuleBuilder) Global(def GlobalDef) uint32 {
	b.globals = append(b.globals, def)
	return uint32(len(b.globals) - 1)
}

// Data places bytes at a fixed memory offset at instantiation.
func (b *ModuleBuilder) Data(offset uint32, bytes []byte) *ModuleBuilder {
	b.data = append(b.data, dataSeg{offset: offset, bytes: bytes})
	return b
}

// BumpAllocator defines an exported size-only allocator over a mutable
// heap-cursor global, mirroring the allocator a compiled guest carries.
// Returns the allocator's function index.
func (b *ModuleBuilder) BumpAllocator(name string, heapBase int32) uint32 {
	cursor := b.Global(GlobalDef{Mutable: true, Init: heapBase})
	return b.Func(FuncDef{
		Name:    name,
		Params:  []api.ValueType{api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
		Locals:  []api.ValueType{api.ValueTypeI32},
		Body: Body(
			GlobalGet(cursor),
			LocalSet(1),
			GlobalGet(cursor),
			LocalGet(0),
			I32Add(),
			GlobalSet(cursor),
			LocalGet(1),
		),
	})
}

// Build emits the module binary.
func (b *ModuleBuilder) Build() []byte {
	var out []byte
	out = append(out, 0x00, 0x61, 0x73, 0x6d)
	out = append(out, 0x01, 0x00, 0x00, 0x00)

	hasFuncs := len(b.imports)+len(b.funcs) > 0

	if hasFuncs {
		out = appendSection(out, 0x01, b.typeSection())
	}
	if len(b.imports) > 0 {
		out = appendSection(out, 0x02, b.importSection())
	}
	if len(b.funcs) > 0 {
		out = appendSection(out, 0x03, b.funcSection())
	}
	if b.memPages > 0 {
		out = appendSection(out, 0x05, b.memorySection())
	}
	if len(b.globals) > 0 {
		out = appendSection(out, 0x06, b.globalSection())
	}
	if exports := b.exportSection(); exports != nil {
		out = appendSection(out, 0x07, exports)
	}
	if len(b.funcs) > 0 {
		out = appendSection(out, 0x0a, b.codeSection())
	}
	if len(b.data) > 0 {
		out = appendSection(out, 0x0b, b.dataSection())
	}

	return out
}

func appendSection(out []byte, id byte, body []byte) []byte {
	out = append(out, id)
	out = append(out, EncodeULEB128(uint32(len(body)))...)
	return append(out, body...)
}

// typeSection emits one type per function, imports first. No deduplication;
// indices stay aligned with function order.
func (b *ModuleBuilder) typeSection() []byte {
	var s []byte
	s = append(s, EncodeULEB128(uint32(len(b.imports)+len(b.funcs)))...)

	emit := func(params, results []api.ValueType) {
		s = append(s, 0x60)
		s = append(s, EncodeULEB128(uint32(len(params)))...)
		for _, t := range params {
			s = append(s, ValTypeToWasm(t))
		}
		s = append(s, EncodeULEB128(uint32(len(results)))...)
		for _, t := range results {
			s = append(s, ValTypeToWasm(t))
		}
	}

	for _, imp := range b.imports {
		emit(imp.Params, imp.Results)
	}
	for _, fn := range b.funcs {
		emit(fn.Params, fn.Results)
	}
	return s
}

func (b *ModuleBuilder) importSection() []byte {
	var s []byte
	s = append(s, EncodeULEB128(uint32(len(b.imports)))...)
	for i, imp := range b.imports {
		s = append(s, encodeName(imp.Module)...)
		s = append(s, encodeName(imp.Name)...)
		s = append(s, 0x00)
		s = append(s, EncodeULEB128(uint32(i))...)
	}
	return s
}

func (b *ModuleBuilder) funcSection() []byte {
	var s []byte
	s = append(s, EncodeULEB128(uint32(len(b.funcs)))...)
	for i := range b.funcs {
		s = append(s, EncodeULEB128(uint32(len(b.imports)+i))...)
	}
	return s
}

func (b *ModuleBuilder) memorySection() []byte {
	var s []byte
	s = append(s, 0x01)
	s = append(s, 0x00)
	s = append(s, EncodeULEB128(b.memPages)...)
	return s
}

func (b *ModuleBuilder) globalSection() []byte {
	var s []byte
	s = append(s, EncodeULEB128(uint32(len(b.globals)))...)
	for _, g := range b.globals {
		s = append(s, 0x7f)
		if g.Mutable {
			s = append(s, 0x01)
		} else {
			s = append(s, 0x00)
		}
		s = append(s, I32Const(g.Init)...)
		s = append(s, 0x0b)
	}
	return s
}

func (b *ModuleBuilder) exportSection() []byte {
	type export struct {
		name string
		kind byte
		idx  uint32
	}
	var exports []export

	if b.memPages > 0 {
		exports = append(exports, export{b.memName, 0x02, 0})
	}
	for i, g := range b.globals {
		if g.Name != "" {
			exports = append(exports, export{g.Name, 0x03, uint32(i)})
		}
	}
	for i, fn := range b.funcs {
		if fn.Name != "" {
			exports = append(exports, export{fn.Name, 0x00, uint32(len(b.imports) + i)})
		}
	}

	if len(exports) == 0 {
		return nil
	}

	var s []byte
	s = append(s, EncodeULEB128(uint32(len(exports)))...)
	for _, e := range exports {
		s = append(s, encodeName(e.name)...)
		s = append(s, e.kind)
		s = append(s, EncodeULEB128(e.idx)...)
	}
	return s
}

func (b *ModuleBuilder) codeSection() []byte {
	var s []byte
	s = append(s, EncodeULEB128(uint32(len(b.funcs)))...)
	for _, fn := range b.funcs {
		body := encodeLocals(fn.Locals)
		body = append(body, fn.Body...)
		body = append(body, 0x0b)
		s = append(s, EncodeULEB128(uint32(len(body)))...)
		s = append(s, body...)
	}
	return s
}

// encodeLocals groups consecutive locals of the same type into run-length
// entries, the form the binary format requires.
func encodeLocals(locals []api.ValueType) []byte {
	type run struct {
		count uint32
		typ   api.ValueType
	}
	var runs []run
	for _, l := range locals {
		if len(runs) > 0 && runs[len(runs)-1].typ == l {
			runs[len(runs)-1].count++
			continue
		}
		runs = append(runs, run{1, l})
	}

	out := EncodeULEB128(uint32(len(runs)))
	for _, r := range runs {
		out = append(out, EncodeULEB128(r.count)...)
		out = append(out, ValTypeToWasm(r.typ))
	}
	return out
}

func (b *ModuleBuilder) dataSection() []byte {
	var s []byte
	s = append(s, EncodeULEB128(uint32(len(b.data)))...)
	for _, d := range b.data {
		s = append(s, 0x00)
		s = append(s, I32Const(int32(d.offset))...)
		s = append(s, 0x0b)
		s = append(s, EncodeULEB128(uint32(len(d.bytes)))...)
		s = append(s, d.bytes...)
	}
	return s
}
