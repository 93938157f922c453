package server

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	bridge "github.com/hostbridge/wasm-bridge"
	"github.com/hostbridge/wasm-bridge/engine"
	"github.com/hostbridge/wasm-bridge/errors"
	"github.com/hostbridge/wasm-bridge/hostapi"
	"github.com/hostbridge/wasm-bridge/pool"
	"github.com/hostbridge/wasm-bridge/reqctx"
	"github.com/hostbridge/wasm-bridge/session"
	"github.com/hostbridge/wasm-bridge/txn"
)

// Guest handler exports: a dedicated export per handler index, with a
// shared dispatcher as fallback for guests that compile one dispatch table.
const (
	handlerPrefix  = "__route_handler_"
	dispatchExport = "__dispatch_route"
)

// Guard refusals and pipeline failures answer with these bodies. They are
// deliberately shaped like guest error envelopes so API clients parse one
// format everywhere.
const (
	notFoundBody         = `{"ok":false,"error":"Not Found"}`
	methodNotAllowedBody = `{"ok":false,"error":"Method Not Allowed"}`
	unauthorizedBody     = `{"ok":false,"error":"Unauthorized"}`
	forbiddenBody        = `{"ok":false,"error":"Forbidden"}`
	badRequestBody       = `{"ok":false,"error":"Bad Request"}`
	tooLargeBody         = `{"ok":false,"error":"Payload Too Large"}`
	overloadedBody       = `{"ok":false,"error":"Service Unavailable"}`
	internalErrorBody    = `{"ok":false,"error":"Internal Server Error"}`
)

var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// sweepInterval is how often expired sessions are collected while serving.
const sweepInterval = time.Minute

// Config sizes the serving pipeline.
type Config struct {
	// Addr is the listen address for ListenAndServe.
	Addr string

	// MaxBodyBytes caps inbound request bodies; larger ones answer 413.
	MaxBodyBytes int64

	// PoolSize bounds concurrently live guest instances; PoolTimeout is
	// how long a request waits for a slot before answering 503.
	PoolSize    int
	PoolTimeout time.Duration

	// Client seeds every request's outbound HTTP configuration.
	Client reqctx.ClientConfig
}

func (c *Config) fillDefaults() {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 10 << 20
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 8
	}
	if c.PoolTimeout <= 0 {
		c.PoolTimeout = 5 * time.Second
	}
	if c.Client == (reqctx.ClientConfig{}) {
		c.Client = reqctx.DefaultClientConfig()
	}
}

// Server owns one loaded guest application: its instance pool, its frozen
// route table, and the request pipeline from inbound HTTP to finalized
// response. It is an http.Handler; ListenAndServe wraps it in a net/http
// server with graceful shutdown.
type Server struct {
	module  *engine.WazeroModule
	router  *Router
	pool    *pool.Pool
	deps    *hostapi.Deps
	addr    string
	maxBody int64
	client  reqctx.ClientConfig

	// guestPort is whatever the guest passed to its listen call. The
	// socket is bound to the configured address regardless; the value is
	// kept for the startup log.
	guestPort int64

	httpSrv *http.Server
}

// New wraps an already loaded module: it boots the guest once so its entry
// point registers routes, freezes the router, and returns a Server ready
// to serve. deps must be the same value the dispatch surface was bound
// over, so guards and capabilities see one session store and database.
func New(ctx context.Context, module *engine.WazeroModule, deps *hostapi.Deps, cfg Config) (*Server, error) {
	cfg.fillDefaults()
	if deps == nil {
		deps = &hostapi.Deps{}
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewStore(time.Hour)
	}

	s := &Server{
		module:  module,
		router:  NewRouter(),
		pool:    pool.New(module, cfg.PoolSize, cfg.PoolTimeout),
		deps:    deps,
		addr:    cfg.Addr,
		maxBody: cfg.MaxBodyBytes,
		client:  cfg.Client,
	}
	if err := s.boot(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// bootRecorder collects route registrations while the entry point runs.
type bootRecorder struct {
	router *Router
	port   int64
}

func (r *bootRecorder) Record(method, pattern string, handler int32, protected bool, role string) {
	r.router.Add(method, pattern, handler, protected, role)
}

func (r *bootRecorder) Listen(port int64) { r.port = port }

// boot runs the guest entry point on a dedicated instance whose
// environment records route registrations, then freezes the router. A
// guest without an entry point boots to an empty table: the server still
// runs, it just answers 404 to everything.
func (s *Server) boot(ctx context.Context) error {
	defer s.router.Freeze()

	entry := s.module.EntryPoint()
	if entry == "" {
		Logger().Warn("guest has no entry point; no routes will be registered")
		return nil
	}

	inst, err := s.pool.Checkout(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Release(ctx, inst)

	rec := &bootRecorder{router: s.router}
	state := reqctx.NewState(
		reqctx.NewRequest(reqctx.RequestInfo{}),
		reqctx.NewResponse(),
		txn.New(s.deps.DB),
	)
	state.Client = s.client
	defer state.Tx.Finish()

	env := &hostapi.Env{
		Mem:    inst.Memory(),
		Alloc:  inst.Allocator(),
		State:  state,
		Routes: rec,
	}
	if _, err := inst.Call(hostapi.WithEnv(ctx, env), entry); err != nil {
		return errors.Load("guest entry point", err)
	}
	s.guestPort = rec.port

	if s.router.Len() == 0 {
		Logger().Warn("guest registered no routes")
		return nil
	}
	for _, rt := range s.router.Routes() {
		Logger().Info("route registered",
			zap.String("method", rt.Method),
			zap.String("pattern", rt.Pattern),
			zap.Int32("handler", rt.Handler),
			zap.Bool("protected", rt.Protected),
			zap.String("role", rt.Role))
	}
	return nil
}

// Routes returns the guest's registered routes.
func (s *Server) Routes() []Route { return s.router.Routes() }

// GuestPort returns the port the guest asked to listen on, or 0. The
// configured address wins; this is informational.
func (s *Server) GuestPort() int64 { return s.guestPort }

// ServeHTTP runs the request pipeline: route match, session resolution,
// protection guards, guest dispatch on a pooled instance, response
// finalization. Guard refusals answer before any instance is checked out,
// so a rejected request has zero guest-visible side effects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := strings.ToUpper(r.Method)
	if !knownMethods[method] {
		writeJSON(w, http.StatusMethodNotAllowed, methodNotAllowedBody)
		return
	}
	if method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
		preflight(w)
		return
	}

	route, params, ok := s.router.Find(method, r.URL.Path)
	if !ok {
		writeJSON(w, http.StatusNotFound, notFoundBody)
		return
	}

	sess := s.deps.Sessions.Get(session.FromRequest(httpCookies{r}))
	if route.Protected {
		if sess == nil {
			writeJSON(w, http.StatusUnauthorized, unauthorizedBody)
			return
		}
		// "admin" passes every role gate; it is the role model's
		// superuser.
		if route.Role != "" && sess.Role != route.Role && sess.Role != "admin" {
			writeJSON(w, http.StatusForbidden, forbiddenBody)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var maxBytes *http.MaxBytesError
		if stderrors.As(err, &maxBytes) {
			writeJSON(w, http.StatusRequestEntityTooLarge, tooLargeBody)
			return
		}
		writeJSON(w, http.StatusBadRequest, badRequestBody)
		return
	}

	cookies := make(map[string]string, len(r.Cookies()))
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}

	req := reqctx.NewRequest(reqctx.RequestInfo{
		Method:     method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		Params:     params,
		Query:      r.URL.Query(),
		Headers:    r.Header,
		Cookies:    cookies,
		Body:       body,
	})
	res := reqctx.NewResponse()
	state := reqctx.NewState(req, res, txn.New(s.deps.DB))
	state.Session = sess
	state.Client = s.client

	ctx := r.Context()
	inst, err := s.pool.Checkout(ctx)
	if err != nil {
		if stderrors.Is(err, errors.Exhausted("")) {
			writeJSON(w, http.StatusServiceUnavailable, overloadedBody)
			return
		}
		if ctx.Err() != nil {
			return // client gone while waiting for a slot
		}
		Logger().Error("instance checkout failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, internalErrorBody)
		return
	}

	// Settlement must survive panics and client disconnects: an open
	// transaction rolls back and the instance always goes back to the
	// pool, on a context that outlives the request's.
	cleanupCtx := context.WithoutCancel(ctx)
	defer func() {
		if state.Tx.Finish() {
			Logger().Warn("request left a transaction open; rolled back",
				zap.String("method", method),
				zap.String("path", r.URL.Path))
		}
		s.pool.Release(cleanupCtx, inst)
	}()

	env := &hostapi.Env{Mem: inst.Memory(), Alloc: inst.Allocator(), State: state}
	out, err := invoke(hostapi.WithEnv(ctx, env), inst, route.Handler)
	if err != nil {
		if ctx.Err() != nil {
			return // disconnect mid-dispatch; settlement still runs
		}
		Logger().Error("handler trapped",
			zap.String("method", method),
			zap.String("path", r.URL.Path),
			zap.Int32("handler", route.Handler),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, internalErrorBody)
		return
	}

	// The handler's returned string is the body of last resort: an
	// explicit body or a short-circuit from inside the handler wins.
	if len(out) > 0 && !res.ShortCircuited() && len(res.Body()) == 0 {
		if ptr := uint32(out[0]); ptr != 0 {
			result, err := bridge.ReadPrefixed(inst.Memory(), ptr)
			if err != nil {
				Logger().Error("handler result pointer unreadable",
					zap.Int32("handler", route.Handler),
					zap.Error(err))
				writeJSON(w, http.StatusInternalServerError, internalErrorBody)
				return
			}
			res.SetBody(result)
		}
	}

	final, err := res.Finalize()
	if err != nil {
		Logger().Error("response finalize failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, internalErrorBody)
		return
	}
	writeFinal(w, final)

	Logger().Debug("request served",
		zap.String("method", method),
		zap.String("path", r.URL.Path),
		zap.Int("status", final.Status))
}

// invoke calls the guest handler: its dedicated export when present, the
// shared dispatcher otherwise.
func invoke(ctx context.Context, inst *engine.WazeroInstance, handler int32) ([]uint64, error) {
	name := fmt.Sprintf("%s%d", handlerPrefix, handler)
	if inst.Exported(name) {
		return inst.Call(ctx, name)
	}
	return inst.Call(ctx, dispatchExport, api.EncodeI32(handler))
}

// httpCookies adapts an inbound request to the session cookie lookup.
type httpCookies struct{ r *http.Request }

func (c httpCookies) Cookie(name string) string {
	ck, err := c.r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}

// writeFinal puts a finalized response on the wire. Bodies without an
// explicit Content-Type are sniffed: JSON documents, then markup, then
// plain text.
func writeFinal(w http.ResponseWriter, final *reqctx.Final) {
	h := w.Header()
	for _, hd := range final.Headers {
		h.Set(hd.Name, hd.Value)
	}
	for _, c := range final.Cookies {
		h.Add("Set-Cookie", c)
	}
	if h.Get("Access-Control-Allow-Origin") == "" {
		h.Set("Access-Control-Allow-Origin", "*")
	}
	if len(final.Body) > 0 && h.Get("Content-Type") == "" {
		h.Set("Content-Type", sniffContentType(final.Body))
	}
	w.WriteHeader(final.Status)
	if len(final.Body) > 0 {
		_, _ = w.Write(final.Body)
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// preflight answers CORS preflights permissively: any origin, method, and
// headers. Routed OPTIONS requests (no Access-Control-Request-Method) are
// not preflights and dispatch normally.
func preflight(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "*")
	h.Set("Access-Control-Allow-Headers", "*")
	w.WriteHeader(http.StatusNoContent)
}

// sniffContentType picks a Content-Type for guest bodies that never set
// one.
func sniffContentType(body []byte) string {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '{', '[':
			return "application/json"
		case '<':
			return "text/html; charset=utf-8"
		}
	}
	return "text/plain; charset=utf-8"
}

// ListenAndServe serves on the configured address until Shutdown or a
// listener error. A background ticker sweeps expired sessions while the
// server runs.
func (s *Server) ListenAndServe() error {
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopSweep := make(chan struct{})
	defer close(stopSweep)
	go s.sweepSessions(stopSweep)

	Logger().Info("serving",
		zap.String("addr", s.addr),
		zap.Int("routes", s.router.Len()),
		zap.Int("pool_size", s.pool.Size()))

	err := s.httpSrv.ListenAndServe()
	if stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) sweepSessions(stop <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			if n := s.deps.Sessions.Sweep(now); n > 0 {
				Logger().Debug("sessions swept", zap.Int("expired", n))
			}
		case <-stop:
			return
		}
	}
}
