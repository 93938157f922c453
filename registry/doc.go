// Package registry holds the declarative capability contract: every function
// the host exposes to guests, with its wire module, import name, aliases, and
// a high-level signature that lowers deterministically to core wasm types.
//
// The catalog ships embedded as registry.toml and is the single source of
// truth for three parties that must agree:
//
//   - the host bindings (hostapi) implementing each function,
//   - the engine registering those bindings as importable modules,
//   - compiled guests importing the functions by module and name.
//
// Validate compares a binding set against the catalog and reports every
// discrepancy in one pass. BuildProbe assembles a synthetic guest importing
// the full surface, so a bound engine can prove catalog conformance end to
// end through wazero's own type checker.
//
// Signature lowering is fixed: a string parameter becomes an (i32 ptr,
// i32 len) pair, integer becomes i64, number becomes f64, boolean becomes
// i32 (0 or 1), and pointer passes through as a raw i32. A string return
// lowers to a single i32 pointing at a length-prefixed buffer allocated
// inside guest memory.
package registry
