// Package session holds server-side authentication state: a mutex-guarded
// store of session records keyed by cookie-delivered ids, the Set-Cookie
// directives that attach and clear them, and the process-wide role table
// guard functions consult.
//
// Records expire a fixed TTL after last access; reads through Get refresh
// the clock. Each record also carries a raw key/value area for guest use,
// accessed only through the store so concurrent requests sharing one
// session stay correct.
package session
