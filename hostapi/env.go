package hostapi

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strings"
	"time"

	bridge "github.com/hostbridge/wasm-bridge"
	"github.com/hostbridge/wasm-bridge/errors"
	"github.com/hostbridge/wasm-bridge/reqctx"
	"github.com/hostbridge/wasm-bridge/session"
)

// wireEnv is the wire module most namespaces import from. Memory-runtime
// functions live in their own module.
const (
	wireEnv    = "env"
	wireMemory = "memory_runtime"
)

// Deps are the process-wide resources behind the dispatch surface, shared
// by every request. Nil fields get working defaults at Bind; DB stays nil
// when no database is configured and the database namespace degrades to
// error envelopes.
type Deps struct {
	Sessions *session.Store
	Roles    *session.RoleTable
	DB       *sql.DB

	// NewClient builds the outbound HTTP client for one call, from the
	// request's explicit client configuration. Nothing ambient.
	NewClient func(reqctx.ClientConfig, http.CookieJar) *http.Client

	Now    func() time.Time
	Getenv func(string) string

	// FilesRoot is the filesystem sandbox root. Guest paths resolve inside
	// it; escapes are soft failures.
	FilesRoot string

	// TokenSecret is the server-held signing key used when a guest passes
	// an empty secret to the token namespace.
	TokenSecret string
}

func (d *Deps) fillDefaults() {
	if d.Sessions == nil {
		d.Sessions = session.NewStore(time.Hour)
	}
	if d.Roles == nil {
		d.Roles = session.NewRoleTable()
	}
	if d.NewClient == nil {
		d.NewClient = NewHTTPClient
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Getenv == nil {
		d.Getenv = os.Getenv
	}
	if d.FilesRoot == "" {
		d.FilesRoot = "."
	}
}

// RouteRecorder receives route registrations while the guest's entry point
// runs. After boot the server freezes its router and hands instances an Env
// with a nil recorder; late registrations are logged and dropped.
type RouteRecorder interface {
	// Record adds one route. handler is the guest-side handler index;
	// protected routes carry a required role ("" means any session).
	Record(method, pattern string, handler int32, protected bool, role string)

	// Listen notes the port the guest asked for. Binding the socket is the
	// server's decision, not the guest's.
	Listen(port int64)
}

// Env is the per-request view handed to host functions: the owning
// instance's memory and allocator plus the request's dispatch state.
// Exactly one exists per request.
type Env struct {
	Mem   bridge.Memory
	Alloc bridge.Allocator
	State *reqctx.State

	// Routes is non-nil only while the guest boots.
	Routes RouteRecorder

	// Life is the reservation hook behind the memory-runtime namespace.
	// Usually nil; the namespace is a no-op without it.
	Life bridge.Lifetime
}

type envKey struct{}

// WithEnv returns a context carrying the request's dispatch environment.
// The server installs it before every guest call.
func WithEnv(ctx context.Context, e *Env) context.Context {
	return context.WithValue(ctx, envKey{}, e)
}

// FromContext returns the environment installed by WithEnv, or nil.
func FromContext(ctx context.Context) *Env {
	e, _ := ctx.Value(envKey{}).(*Env)
	return e
}

// env returns the request environment, aborting the guest call when none is
// installed. A capability invoked outside a request has no sane fallback.
func env(ctx context.Context) *Env {
	e := FromContext(ctx)
	if e == nil {
		panic(errors.NotInitialized(errors.PhaseDispatch, "dispatch environment"))
	}
	return e
}

// str copies the guest string at stack positions i, i+1 (pointer, length).
// An out-of-bounds range aborts the call.
func (e *Env) str(stack []uint64, i int) string {
	ref := bridge.StringRef{Ptr: uint32(stack[i]), Len: uint32(stack[i+1])}
	data, err := bridge.MarshalIn(e.Mem, ref)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// out places s in guest memory as a length-prefixed buffer and returns the
// pointer as a stack word. Allocation failure aborts the call.
func (e *Env) out(s string) uint64 {
	ptr, err := bridge.MarshalOut(e.Mem, e.Alloc, []byte(s))
	if err != nil {
		panic(err)
	}
	return uint64(ptr)
}

func boolWord(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// splitCSV splits a comma-separated list, trimming space and dropping
// empty entries.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
