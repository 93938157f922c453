// Package pool bounds how many guest instances are live at once. Every
// request checks a slot out, runs on a freshly instantiated guest, and
// releases the slot when done. Fresh instantiation per checkout is the
// isolation mechanism: a new instance starts from the compiled module's
// initial memory image, so nothing one request writes can leak into the
// next, and a trapped instance is simply closed and never reused.
//
// A slot is the right to hold one instance, not an instance itself. The
// pool never caches instances across requests.
package pool
