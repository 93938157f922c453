package reqctx

import (
	"net/http"

	"github.com/hostbridge/wasm-bridge/session"
	"github.com/hostbridge/wasm-bridge/txn"
)

// ClientConfig is the outbound HTTP configuration for one request. The
// configuration is explicit per-request state: call sites read it at call
// time and nothing ambient is consulted.
type ClientConfig struct {
	TimeoutMS    int64
	MaxRedirects int64
	UserAgent    string
	Cookies      bool
}

// DefaultClientConfig mirrors the server's configured defaults; the guest
// may adjust any of it for the rest of the request.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{TimeoutMS: 30_000, MaxRedirects: 10}
}

// OutboundResult records what the most recent outbound HTTP call produced,
// backing the response-code and response-header accessors that follow it.
type OutboundResult struct {
	Status  int
	Headers http.Header
}

// State is the per-request dispatch environment handed to host functions.
// Exactly one exists per request, owned by the goroutine running the
// request's instance.
type State struct {
	Req *Request
	Res *Response

	// Session is nil for anonymous requests. A login swaps a record in,
	// a logout clears it.
	Session *session.Record

	// Tx settles at request completion: the server rolls back anything
	// still open.
	Tx *txn.Handle

	Client   ClientConfig
	LastHTTP *OutboundResult

	// Jar carries outbound cookies across calls within this request once
	// the guest enables them.
	Jar http.CookieJar
}

// NewState assembles the dispatch environment for one request.
func NewState(req *Request, res *Response, tx *txn.Handle) *State {
	return &State{
		Req:    req,
		Res:    res,
		Tx:     tx,
		Client: DefaultClientConfig(),
	}
}
