// Package server runs guest applications behind net/http. Booting a guest
// means instantiating it once with a recording environment, running its
// entry point so it registers routes, and freezing the resulting router;
// from then on every inbound request checks a fresh instance out of the
// pool, dispatches the matched handler with a per-request environment, and
// finalizes the accumulated response onto the wire.
//
// Guard refusals never reach the guest: a route miss, a missing session on
// a protected route, and a role mismatch each short-circuit to a small
// JSON body before an instance is even checked out. Whatever happens after
// checkout (normal completion, a trap, a client disconnect) the request's
// transaction is settled (open means rollback) and the instance is closed
// and its slot returned.
package server
