// Package engine adapts wazero to the bridge contracts. It compiles guest
// modules, instantiates capability namespaces as host modules on a shared
// runtime, and hands out goroutine-confined instances whose memory and
// allocator satisfy the root package interfaces.
//
// The guest export contract is checked at load time: an exported "memory",
// an exported allocator (first present of cabi_realloc, realloc, alloc,
// malloc), and an optional entry point (first present of main, _start,
// start, init). Route handlers resolve later, at dispatch.
package engine
