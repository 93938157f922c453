// Package reqctx carries the per-request execution context threaded through
// every capability call: an immutable Request view, a Response accumulator
// with terminal short-circuit semantics, and the State bag tying them to the
// request's session, transaction handle, and outbound HTTP configuration.
//
// Exactly one State exists per dispatched request and it is confined to the
// goroutine running that request's guest instance. Nothing in this package
// is safe for concurrent use and nothing needs to be.
package reqctx
