// Package wasmbin emits small WebAssembly binaries directly, without a
// toolchain.
//
// The registry validator uses it to build probe modules that import every
// catalogued capability function, proving the bound host surface matches the
// declared signatures. Tests use it to assemble real guest modules: an
// exported memory, a bump allocator over a mutable heap-cursor global, data
// segments, and handler bodies that call host imports.
package wasmbin
