// Package bridge provides the host/guest contract for running sandboxed
// WebAssembly applications behind an HTTP server.
//
// A guest module is checked out of a pool for exactly one in-flight request,
// invoked through a narrow binary calling convention, and released with its
// memory fully reset. Every capability the guest can reach (console, math,
// strings, database, filesystem, outbound HTTP, crypto, tokens, sessions,
// auth, response building) is a host function described by a declarative
// registry and validated against its implementation before a module is
// accepted.
//
// # Architecture Overview
//
// The repository is organized into packages with distinct responsibilities:
//
//	wasm-bridge/         Root package: Memory/Allocator interfaces and marshalling
//	├── engine/          wazero integration: compile, instantiate, host binding
//	├── registry/        Declarative capability catalogue and binding validator
//	├── hostapi/         The capability namespaces exposed to guests
//	├── reqctx/          Per-request context: request snapshot, response builder
//	├── session/         Session store, role table, cookie helpers
//	├── txn/             Per-request database transaction handle
//	├── pool/            Bounded instance pool, one instance per request
//	├── server/          HTTP server and route table
//	├── config/          Environment configuration
//	├── errors/          Structured error types
//	└── internal/wasmbin Synthetic module emitter for probes and tests
//
// # Calling Convention
//
// Strings cross the boundary as adjacent (pointer, length) i32 pairs. String
// returns are a single i32 pointer to a length-prefixed buffer: a 4-byte
// little-endian length followed by raw UTF-8 bytes, allocated by the guest's
// own exported allocator. Integers are i64, floats f64, booleans i32 (0/1),
// pointers i32 offsets valid only inside the owning instance's memory.
//
// # Allocation Discipline
//
// The host never allocates guest memory on its own. Every outbound value is
// placed in memory obtained from the guest's exported allocator (cabi_realloc,
// realloc, alloc, or malloc, probed in that order), so the guest heap cursor
// has a single writer and host- and guest-issued allocations cannot diverge.
//
// # Thread Safety
//
// Engines and compiled modules are safe for concurrent use. An instance is
// owned by one request: host calls within it are strictly sequential.
package bridge
