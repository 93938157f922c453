package hostapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/hostbridge/wasm-bridge/reqctx"
)

// maxClientTimeoutMS caps guest-requested outbound timeouts.
const maxClientTimeoutMS = 300_000

// NewHTTPClient builds an outbound client from one request's explicit
// configuration. A non-positive redirect limit stops following entirely and
// returns the 3xx as-is.
func NewHTTPClient(cfg reqctx.ClientConfig, jar http.CookieJar) *http.Client {
	checkRedirect := func(req *http.Request, via []*http.Request) error {
		if cfg.MaxRedirects <= 0 {
			return http.ErrUseLastResponse
		}
		if int64(len(via)) >= cfg.MaxRedirects {
			return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
		}
		return nil
	}

	return &http.Client{
		Timeout:       time.Duration(cfg.TimeoutMS) * time.Millisecond,
		Jar:           jar,
		CheckRedirect: checkRedirect,
	}
}

// Every body-returning verb shares one shape: success hands the response
// body back as the string result and records status plus headers for the
// follow-up accessors; failure hands back an error envelope instead. The
// configuration read at call time is the request's own ClientConfig, so
// there is no ambient client state to leak between requests.
func bindHTTPClient(b *binder, d *Deps) {
	verb := func(method string, contentType string, hasBody bool) api.GoModuleFunc {
		return api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
			e := env(ctx)
			target := e.str(stack, 0)
			var body string
			if hasBody {
				body = e.str(stack, 2)
			}
			stack[0] = e.out(outboundCall(ctx, e, d, method, target, body, contentType, nil))
		})
	}

	b.fn(wireEnv, "http_get", verb(http.MethodGet, "", false))
	b.fn(wireEnv, "http_delete", verb(http.MethodDelete, "", false))
	b.fn(wireEnv, "http_head", verb(http.MethodHead, "", false))
	b.fn(wireEnv, "http_options", verb(http.MethodOptions, "", false))
	b.fn(wireEnv, "http_post", verb(http.MethodPost, "", true))
	b.fn(wireEnv, "http_put", verb(http.MethodPut, "", true))
	b.fn(wireEnv, "http_patch", verb(http.MethodPatch, "", true))
	b.fn(wireEnv, "http_post_json", verb(http.MethodPost, "application/json", true))
	b.fn(wireEnv, "http_put_json", verb(http.MethodPut, "application/json", true))
	b.fn(wireEnv, "http_patch_json", verb(http.MethodPatch, "application/json", true))

	b.fn(wireEnv, "http_post_form", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		target := e.str(stack, 0)
		form, ok := decodeStringMap(e.str(stack, 2))
		if !ok {
			stack[0] = e.out(envFail(codeValidation, "form must be a JSON object of strings"))
			return
		}
		values := url.Values{}
		for k, v := range form {
			values.Set(k, v)
		}
		stack[0] = e.out(outboundCall(ctx, e, d, http.MethodPost, target, values.Encode(),
			"application/x-www-form-urlencoded", nil))
	}))

	b.fn(wireEnv, "http_get_with_headers", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		target := e.str(stack, 0)
		headers, _ := decodeStringMap(e.str(stack, 2))
		stack[0] = e.out(outboundCall(ctx, e, d, http.MethodGet, target, "", "", headers))
	}))

	b.fn(wireEnv, "http_post_with_headers", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		target := e.str(stack, 0)
		body := e.str(stack, 2)
		headers, _ := decodeStringMap(e.str(stack, 4))
		stack[0] = e.out(outboundCall(ctx, e, d, http.MethodPost, target, body, "", headers))
	}))

	b.fn(wireEnv, "http_get_response_code", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.LastHTTP == nil {
			stack[0] = 0
			return
		}
		stack[0] = uint64(int64(e.State.LastHTTP.Status))
	}))

	b.fn(wireEnv, "http_get_response_headers", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.LastHTTP == nil {
			stack[0] = e.out("{}")
			return
		}
		flat := make(map[string]string, len(e.State.LastHTTP.Headers))
		for name, vals := range e.State.LastHTTP.Headers {
			flat[name] = strings.Join(vals, ", ")
		}
		encoded, err := json.Marshal(flat)
		if err != nil {
			stack[0] = e.out("{}")
			return
		}
		stack[0] = e.out(string(encoded))
	}))

	b.fn(wireEnv, "http_set_timeout", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		ms := int64(stack[0])
		if ms <= 0 || ms > maxClientTimeoutMS {
			Logger().Debug("timeout out of range, keeping current",
				zap.Int64("requested_ms", ms))
			return
		}
		e.State.Client.TimeoutMS = ms
	}))

	b.fn(wireEnv, "http_set_max_redirects", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		n := int64(stack[0])
		if n < 0 {
			n = 0
		}
		e.State.Client.MaxRedirects = n
	}))

	b.fn(wireEnv, "http_set_user_agent", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		e.State.Client.UserAgent = e.str(stack, 0)
	}))

	b.fn(wireEnv, "http_enable_cookies", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		enable := stack[0] != 0
		e.State.Client.Cookies = enable
		if enable && e.State.Jar == nil {
			jar, err := cookiejar.New(nil)
			if err == nil {
				e.State.Jar = jar
			}
		}
	}))

	b.fn(wireEnv, "http_encode_url", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		stack[0] = e.out(url.QueryEscape(e.str(stack, 0)))
	}))

	b.fn(wireEnv, "http_decode_url", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		decoded, err := url.QueryUnescape(e.str(stack, 0))
		if err != nil {
			decoded = ""
		}
		stack[0] = e.out(decoded)
	}))

	b.fn(wireEnv, "http_build_query", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		fields, ok := decodeStringMap(e.str(stack, 0))
		if !ok {
			stack[0] = e.out("")
			return
		}
		values := url.Values{}
		for k, v := range fields {
			values.Set(k, v)
		}
		stack[0] = e.out(values.Encode())
	}))
}

// outboundCall performs one outbound request under the request's client
// configuration and updates the last-response accessors. The return value
// is either the response body or an error envelope.
func outboundCall(ctx context.Context, e *Env, d *Deps, method, target, body, contentType string, headers map[string]string) string {
	cfg := e.State.Client

	var jar http.CookieJar
	if cfg.Cookies {
		jar = e.State.Jar
	}

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		e.State.LastHTTP = &reqctx.OutboundResult{}
		return envFail(codeInvalidURL, err.Error())
	}

	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}

	resp, err := d.NewClient(cfg, jar).Do(req)
	if err != nil {
		e.State.LastHTTP = &reqctx.OutboundResult{}
		code := codeNetwork
		var netErr net.Error
		if stderrors.As(err, &netErr) && netErr.Timeout() {
			code = codeTimeout
		}
		Logger().Debug("outbound call failed",
			zap.String("method", method),
			zap.String("url", target),
			zap.Error(err))
		return envFail(code, err.Error())
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		e.State.LastHTTP = &reqctx.OutboundResult{Status: resp.StatusCode, Headers: resp.Header.Clone()}
		return envFail(codeNetwork, err.Error())
	}

	e.State.LastHTTP = &reqctx.OutboundResult{Status: resp.StatusCode, Headers: resp.Header.Clone()}
	return string(payload)
}

// decodeStringMap parses a JSON object whose values render as strings.
// Non-string scalars are stringified; nested values are dropped.
func decodeStringMap(raw string) (map[string]string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, false
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		case nil:
			out[k] = ""
		}
	}
	return out, true
}
