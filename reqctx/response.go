package reqctx

import (
	"strings"

	"github.com/hostbridge/wasm-bridge/errors"
)

// Header is one response header in emission order.
type Header struct {
	Name  string
	Value string
}

// Response accumulates the outbound side of one dispatch. Guards put it in
// a terminal short-circuited state: the preset status and body become final
// and every later mutation is silently suppressed, while the guest itself
// may keep executing read-only capabilities.
type Response struct {
	status         int
	headers        []Header
	body           []byte
	cookies        []string
	redirectURL    string
	redirectStatus int
	short          bool
	finalized      bool
}

// Final is the resolved response the server writes to the wire.
type Final struct {
	Status  int
	Headers []Header
	Cookies []string
	Body    []byte
}

// NewResponse returns an empty accumulator; the status defaults to 200
// unless set.
func NewResponse() *Response {
	return &Response{}
}

func (r *Response) mutable() bool { return !r.short && !r.finalized }

// validStatus bounds what reaches http.ResponseWriter.WriteHeader, which
// panics outside its accepted range.
func validStatus(code int) bool { return code >= 100 && code <= 599 }

// SetStatus sets the response status code. A code outside [100,599] is
// dropped and the previous value stands.
func (r *Response) SetStatus(code int) {
	if !r.mutable() || !validStatus(code) {
		return
	}
	r.status = code
}

// SetHeader sets a header, replacing the value of an existing entry with the
// same case-insensitive name. The position and spelling of the first
// insertion are kept.
func (r *Response) SetHeader(name, value string) {
	if !r.mutable() {
		return
	}
	for i := range r.headers {
		if strings.EqualFold(r.headers[i].Name, name) {
			r.headers[i].Value = value
			return
		}
	}
	r.headers = append(r.headers, Header{Name: name, Value: value})
}

// Header reads back a header value by case-insensitive name.
func (r *Response) Header(name string) (string, bool) {
	for i := range r.headers {
		if strings.EqualFold(r.headers[i].Name, name) {
			return r.headers[i].Value, true
		}
	}
	return "", false
}

// SetBody replaces the response body.
func (r *Response) SetBody(body []byte) {
	if !r.mutable() {
		return
	}
	r.body = body
}

// AppendBody appends to the response body.
func (r *Response) AppendBody(chunk []byte) {
	if !r.mutable() {
		return
	}
	r.body = append(r.body, chunk...)
}

// Body returns the accumulated body.
func (r *Response) Body() []byte { return r.body }

// AddCookie appends a Set-Cookie directive.
func (r *Response) AddCookie(directive string) {
	if !r.mutable() {
		return
	}
	r.cookies = append(r.cookies, directive)
}

// Redirect records a redirect to url. A status outside the 3xx range falls
// back to 302.
func (r *Response) Redirect(url string, status int) {
	if !r.mutable() {
		return
	}
	if status < 300 || status > 399 {
		status = 302
	}
	r.redirectURL = url
	r.redirectStatus = status
}

// ShortCircuit presets the final status and body and freezes the response.
// A pending redirect is dropped; cookies and headers already set survive.
// The first short circuit wins. A status outside [100,599] falls back
// to 200.
func (r *Response) ShortCircuit(status int, body []byte) {
	if !r.mutable() {
		return
	}
	if !validStatus(status) {
		status = 200
	}
	r.status = status
	r.body = body
	r.redirectURL = ""
	r.redirectStatus = 0
	r.short = true
}

// ShortCircuited reports whether a guard froze the response.
func (r *Response) ShortCircuited() bool { return r.short }

// Status returns the resolved status code: the explicit value, or 200.
func (r *Response) Status() int {
	if r.status == 0 {
		return 200
	}
	return r.status
}

// Finalize resolves the accumulated state into the wire form. A recorded
// redirect becomes a Location header plus its status. Valid exactly once;
// a second call reports a state error.
func (r *Response) Finalize() (*Final, error) {
	if r.finalized {
		return nil, errors.State("response already finalized")
	}
	if r.redirectURL != "" && !r.short {
		r.SetHeader("Location", r.redirectURL)
		r.status = r.redirectStatus
	}
	r.finalized = true
	return &Final{
		Status:  r.Status(),
		Headers: r.headers,
		Cookies: r.cookies,
		Body:    r.body,
	}, nil
}
