package server

import (
	"strings"
)

// Route is one guest-registered handler binding.
type Route struct {
	Method    string
	Pattern   string // normalized form: ":id" segments rewritten to "{id}"
	Handler   int32
	Protected bool
	Role      string // required role; "" means any authenticated session
}

// Router holds the routes a guest registers while its entry point runs.
// Registration is single-goroutine during boot; Freeze then makes the
// table read-only, after which matching is safe for concurrent use.
type Router struct {
	routes []Route
	frozen bool
}

// NewRouter returns an empty, unfrozen router.
func NewRouter() *Router { return &Router{} }

// normalizePattern rewrites express-style ":id" segments to "{id}" so both
// registration spellings land on one grammar. Params are whole segments;
// a ":" inside a segment is literal.
func normalizePattern(pattern string) string {
	if !strings.Contains(pattern, ":") {
		return pattern
	}
	segs := strings.Split(pattern, "/")
	for i, seg := range segs {
		if len(seg) > 1 && seg[0] == ':' {
			segs[i] = "{" + seg[1:] + "}"
		}
	}
	return strings.Join(segs, "/")
}

// trimPath drops a trailing slash so "/items" and "/items/" hit the same
// routes, and guarantees a leading one. The root path stays "/".
func trimPath(p string) string {
	if p == "" {
		return "/"
	}
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// Add records a route. A later registration with the same method and
// pattern replaces the earlier one; calls after Freeze are dropped.
func (r *Router) Add(method, pattern string, handler int32, protected bool, role string) {
	if r.frozen {
		return
	}
	rt := Route{
		Method:    strings.ToUpper(strings.TrimSpace(method)),
		Pattern:   normalizePattern(trimPath(pattern)),
		Handler:   handler,
		Protected: protected,
		Role:      strings.TrimSpace(role),
	}
	for i := range r.routes {
		if r.routes[i].Method == rt.Method && r.routes[i].Pattern == rt.Pattern {
			r.routes[i] = rt
			return
		}
	}
	r.routes = append(r.routes, rt)
}

// Freeze makes the router read-only.
func (r *Router) Freeze() { r.frozen = true }

// Len returns the number of registered routes.
func (r *Router) Len() int { return len(r.routes) }

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []Route {
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Find matches method and path against the table, extracting pattern
// params. When several routes match, the one with the fewest param
// captures wins, so static routes outrank "{id}" ones; among equals the
// earliest registration wins. Param values stay percent-encoded as they
// arrived on the wire.
func (r *Router) Find(method, path string) (Route, map[string]string, bool) {
	method = strings.ToUpper(method)
	pathSegs := strings.Split(trimPath(path), "/")

	best := -1
	bestCount := 0
	var bestParams map[string]string
	for i := range r.routes {
		if r.routes[i].Method != method {
			continue
		}
		params, count, ok := matchPattern(r.routes[i].Pattern, pathSegs)
		if !ok {
			continue
		}
		if best == -1 || count < bestCount {
			best, bestCount, bestParams = i, count, params
		}
	}
	if best == -1 {
		return Route{}, nil, false
	}
	return r.routes[best], bestParams, true
}

// matchPattern compares pattern segments against path segments, capturing
// "{name}" params. A param never matches an empty segment.
func matchPattern(pattern string, pathSegs []string) (map[string]string, int, bool) {
	patSegs := strings.Split(pattern, "/")
	if len(patSegs) != len(pathSegs) {
		return nil, 0, false
	}
	var params map[string]string
	count := 0
	for i, ps := range patSegs {
		if len(ps) > 1 && ps[0] == '{' && ps[len(ps)-1] == '}' {
			if pathSegs[i] == "" {
				return nil, 0, false
			}
			if params == nil {
				params = make(map[string]string, 2)
			}
			params[ps[1:len(ps)-1]] = pathSegs[i]
			count++
			continue
		}
		if ps != pathSegs[i] {
			return nil, 0, false
		}
	}
	return params, count, true
}
