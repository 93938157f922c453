// Package hostapi implements the capability surface guests import. Each
// namespace lives in its own file and registers stack-based wazero
// implementations into a binder; Bind matches the set against the embedded
// registry catalogue and hands wire-typed host functions to the engine.
//
// Implementations follow a safe-default policy: parse and conversion
// failures return the type's zero value ("" / 0 / 0.0 / false) and the
// request continues. Only two things abort a guest call: an out-of-bounds
// memory range and a missing dispatch environment. Both panic; wazero turns
// the panic into a trap that fails the request.
//
// Process-wide resources (session store, role table, database pool, clock)
// are captured at Bind time. Everything per-request (the instance's memory
// and allocator, the request state, the boot-time route recorder) travels
// in the call context as an *Env installed with WithEnv.
package hostapi
