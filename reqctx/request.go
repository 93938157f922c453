package reqctx

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hostbridge/wasm-bridge/internal/jsonpath"
)

// RequestInfo carries the raw material for a Request. The server fills it
// from the inbound HTTP request and the matched route; the Request takes
// ownership of the maps.
type RequestInfo struct {
	Method     string
	Path       string
	RemoteAddr string
	Params     map[string]string
	Query      url.Values
	Headers    http.Header
	Cookies    map[string]string
	Body       []byte
}

// Request is the immutable inbound view for one dispatch. Lookups by name
// return "" (or 0) when the value is absent; optional data is never an
// error. The body's JSON form is parsed lazily on first field access and
// cached, parse failure included, for the rest of the request.
type Request struct {
	method     string
	path       string
	remoteAddr string
	params     map[string]string
	query      url.Values
	headers    map[string][]string
	cookies    map[string]string
	body       []byte

	bodyRoot   any
	bodyBad    bool
	bodyParsed bool
}

// NewRequest builds the request view for one dispatch. Header names are
// folded to lower case here so every later lookup is a plain map access.
func NewRequest(info RequestInfo) *Request {
	headers := make(map[string][]string, len(info.Headers))
	for name, values := range info.Headers {
		headers[strings.ToLower(name)] = values
	}
	return &Request{
		method:     strings.ToUpper(info.Method),
		path:       info.Path,
		remoteAddr: info.RemoteAddr,
		params:     info.Params,
		query:      info.Query,
		headers:    headers,
		cookies:    info.Cookies,
		body:       info.Body,
	}
}

// Method returns the request method in upper case.
func (r *Request) Method() string { return r.method }

// Path returns the request path without the query string.
func (r *Request) Path() string { return r.path }

// RemoteAddr returns the peer address as the network layer reported it.
func (r *Request) RemoteAddr() string { return r.remoteAddr }

// Param returns a path parameter captured by the matched route pattern.
func (r *Request) Param(name string) string { return r.params[name] }

// ParamInt returns a path parameter as an integer, 0 when absent or
// unparseable.
func (r *Request) ParamInt(name string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(r.params[name]), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Query returns the first query value for the name.
func (r *Request) Query(name string) string {
	if r.query == nil {
		return ""
	}
	return r.query.Get(name)
}

// Header returns the first header value for the name, case-insensitive.
func (r *Request) Header(name string) string {
	values := r.headers[strings.ToLower(name)]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Cookie returns a request cookie value.
func (r *Request) Cookie(name string) string { return r.cookies[name] }

// Body returns the raw request body. Callers must not modify it.
func (r *Request) Body() []byte { return r.body }

// BodyField resolves a dot-separated path inside the JSON body: object keys
// by name, array elements by index. Scalars render as bare text, composites
// as compact JSON. Returns "" when the body is empty, not JSON, or the path
// does not resolve.
func (r *Request) BodyField(path string) string {
	if !r.bodyParsed {
		r.bodyParsed = true
		if len(r.body) == 0 {
			r.bodyBad = true
		} else if root, err := jsonpath.Parse(r.body); err != nil {
			r.bodyBad = true
		} else {
			r.bodyRoot = root
		}
	}
	if r.bodyBad {
		return ""
	}
	v, ok := jsonpath.Resolve(r.bodyRoot, path)
	if !ok {
		return ""
	}
	return jsonpath.Render(v)
}
