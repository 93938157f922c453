package hostapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

// echoServer reports method, body, and selected request headers so verb
// tests can assert what actually went over the wire.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Echo-Method", r.Method)
		w.Header().Set("X-Echo-Content-Type", r.Header.Get("Content-Type"))
		w.Header().Set("X-Echo-Agent", r.Header.Get("User-Agent"))
		w.Write([]byte(r.Method + ":" + string(body)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPVerbs(t *testing.T) {
	srv := echoServer(t)
	fns := surface(t, nil)

	t.Run("get", func(t *testing.T) {
		e, ctx := newEnv(t)
		urlPtr, urlLen := put(t, e, srv.URL)
		stack := call(ctx, fns["env.http_get"], urlPtr, urlLen)
		if got := readStr(t, e, stack[0]); got != "GET:" {
			t.Errorf("http_get body = %q", got)
		}

		stack = call(ctx, fns["env.http_get_response_code"])
		if got := int64(stack[0]); got != 200 {
			t.Errorf("response code after get = %d", got)
		}
	})

	t.Run("post json sets content type", func(t *testing.T) {
		e, ctx := newEnv(t)
		urlPtr, urlLen := put(t, e, srv.URL)
		bodyPtr, bodyLen := put(t, e, `{"x":1}`)
		stack := call(ctx, fns["env.http_post_json"], urlPtr, urlLen, bodyPtr, bodyLen)
		if got := readStr(t, e, stack[0]); got != `POST:{"x":1}` {
			t.Errorf("http_post_json body = %q", got)
		}
		if e.State.LastHTTP.Headers.Get("X-Echo-Content-Type") != "application/json" {
			t.Error("http_post_json did not send application/json")
		}
	})

	t.Run("head has empty body", func(t *testing.T) {
		e, ctx := newEnv(t)
		urlPtr, urlLen := put(t, e, srv.URL)
		stack := call(ctx, fns["env.http_head"], urlPtr, urlLen)
		if got := readStr(t, e, stack[0]); got != "" {
			t.Errorf("http_head body = %q, want empty", got)
		}
		stack = call(ctx, fns["env.http_get_response_code"])
		if got := int64(stack[0]); got != 200 {
			t.Errorf("response code after head = %d", got)
		}
	})

	t.Run("post form", func(t *testing.T) {
		e, ctx := newEnv(t)
		urlPtr, urlLen := put(t, e, srv.URL)
		formPtr, formLen := put(t, e, `{"a":"1","b":"two words"}`)
		stack := call(ctx, fns["env.http_post_form"], urlPtr, urlLen, formPtr, formLen)
		got := readStr(t, e, stack[0])
		if got != "POST:a=1&b=two+words" {
			t.Errorf("http_post_form body = %q", got)
		}
		if e.State.LastHTTP.Headers.Get("X-Echo-Content-Type") != "application/x-www-form-urlencoded" {
			t.Error("http_post_form did not send a form content type")
		}
	})

	t.Run("headers variant", func(t *testing.T) {
		probe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(r.Header.Get("X-Token")))
		}))
		defer probe.Close()

		e, ctx := newEnv(t)
		urlPtr, urlLen := put(t, e, probe.URL)
		hdrPtr, hdrLen := put(t, e, `{"X-Token":"abc123"}`)
		stack := call(ctx, fns["env.http_get_with_headers"], urlPtr, urlLen, hdrPtr, hdrLen)
		if got := readStr(t, e, stack[0]); got != "abc123" {
			t.Errorf("header did not reach the server: %q", got)
		}
	})

	t.Run("user agent applies per request", func(t *testing.T) {
		e, ctx := newEnv(t)
		uaPtr, uaLen := put(t, e, "bridge-test/1.0")
		call(ctx, fns["env.http_set_user_agent"], uaPtr, uaLen)

		urlPtr, urlLen := put(t, e, srv.URL)
		call(ctx, fns["env.http_get"], urlPtr, urlLen)
		if got := e.State.LastHTTP.Headers.Get("X-Echo-Agent"); got != "bridge-test/1.0" {
			t.Errorf("user agent on the wire = %q", got)
		}
	})
}

func TestHTTPFailureEnvelopes(t *testing.T) {
	fns := surface(t, nil)

	t.Run("invalid url", func(t *testing.T) {
		e, ctx := newEnv(t)
		urlPtr, urlLen := put(t, e, "http://bad url with spaces")
		stack := call(ctx, fns["env.http_get"], urlPtr, urlLen)
		env := decodeEnvelope(t, readStr(t, e, stack[0]))
		if env.OK || env.Err == nil || env.Err.Code != "invalid_url" {
			t.Errorf("invalid url envelope = %+v", env)
		}
		stack = call(ctx, fns["env.http_get_response_code"])
		if stack[0] != 0 {
			t.Errorf("response code after failed call = %d, want 0", int64(stack[0]))
		}
	})

	t.Run("timeout", func(t *testing.T) {
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(2 * time.Second)
		}))
		defer slow.Close()

		e, ctx := newEnv(t)
		call(ctx, fns["env.http_set_timeout"], 50)

		urlPtr, urlLen := put(t, e, slow.URL)
		stack := call(ctx, fns["env.http_get"], urlPtr, urlLen)
		env := decodeEnvelope(t, readStr(t, e, stack[0]))
		if env.OK || env.Err == nil || env.Err.Code != "timeout" {
			t.Errorf("timeout envelope = %+v", env)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		dead.Close() // nothing listens here anymore

		e, ctx := newEnv(t)
		urlPtr, urlLen := put(t, e, dead.URL)
		stack := call(ctx, fns["env.http_get"], urlPtr, urlLen)
		env := decodeEnvelope(t, readStr(t, e, stack[0]))
		if env.OK || env.Err == nil || env.Err.Code != "network_fail" {
			t.Errorf("refused connection envelope = %+v", env)
		}
	})
}

func TestHTTPRedirectPolicy(t *testing.T) {
	fns := surface(t, nil)

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/hop" {
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		w.Write([]byte("landed"))
	}))
	defer target.Close()

	t.Run("follows by default", func(t *testing.T) {
		e, ctx := newEnv(t)
		urlPtr, urlLen := put(t, e, target.URL+"/hop")
		stack := call(ctx, fns["env.http_get"], urlPtr, urlLen)
		if got := readStr(t, e, stack[0]); got != "landed" {
			t.Errorf("default redirect follow got %q", got)
		}
	})

	t.Run("zero stops following", func(t *testing.T) {
		e, ctx := newEnv(t)
		call(ctx, fns["env.http_set_max_redirects"], 0)

		urlPtr, urlLen := put(t, e, target.URL+"/hop")
		call(ctx, fns["env.http_get"], urlPtr, urlLen)

		stack := call(ctx, fns["env.http_get_response_code"])
		if got := int64(stack[0]); got != http.StatusFound {
			t.Errorf("response code with redirects off = %d, want 302", got)
		}
	})
}

func TestHTTPResponseHeadersAccessor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("X-Multi", "one")
		w.Header().Add("X-Multi", "two")
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()
	fns := surface(t, nil)

	t.Run("before any call", func(t *testing.T) {
		e, ctx := newEnv(t)
		stack := call(ctx, fns["env.http_get_response_headers"])
		if got := readStr(t, e, stack[0]); got != "{}" {
			t.Errorf("headers before any call = %q, want {}", got)
		}
		stack = call(ctx, fns["env.http_get_response_code"])
		if stack[0] != 0 {
			t.Errorf("code before any call = %d, want 0", int64(stack[0]))
		}
	})

	t.Run("multi-value headers flatten", func(t *testing.T) {
		e, ctx := newEnv(t)
		urlPtr, urlLen := put(t, e, srv.URL)
		call(ctx, fns["env.http_get"], urlPtr, urlLen)

		stack := call(ctx, fns["env.http_get_response_code"])
		if got := int64(stack[0]); got != http.StatusTeapot {
			t.Errorf("response code = %d, want 418", got)
		}

		stack = call(ctx, fns["env.http_get_response_headers"])
		headers := map[string]string{}
		if err := json.Unmarshal([]byte(readStr(t, e, stack[0])), &headers); err != nil {
			t.Fatalf("headers do not decode: %v", err)
		}
		if headers["X-Multi"] != "one, two" {
			t.Errorf("X-Multi = %q, want joined values", headers["X-Multi"])
		}
	})
}

func TestHTTPTimeoutBounds(t *testing.T) {
	fns := surface(t, nil)
	e, ctx := newEnv(t)

	before := e.State.Client.TimeoutMS
	call(ctx, fns["env.http_set_timeout"], 0)
	if e.State.Client.TimeoutMS != before {
		t.Error("zero timeout was accepted")
	}
	call(ctx, fns["env.http_set_timeout"], uint64(maxClientTimeoutMS+1))
	if e.State.Client.TimeoutMS != before {
		t.Error("over-limit timeout was accepted")
	}
	call(ctx, fns["env.http_set_timeout"], 1500)
	if e.State.Client.TimeoutMS != 1500 {
		t.Errorf("timeout = %d, want 1500", e.State.Client.TimeoutMS)
	}
}

func TestHTTPURLHelpers(t *testing.T) {
	fns := surface(t, nil)

	t.Run("encode decode round trip", func(t *testing.T) {
		e, ctx := newEnv(t)
		inPtr, inLen := put(t, e, "a b&c=d")
		stack := call(ctx, fns["env.http_encode_url"], inPtr, inLen)
		encoded := readStr(t, e, stack[0])
		if encoded != url.QueryEscape("a b&c=d") {
			t.Errorf("http_encode_url = %q", encoded)
		}

		encPtr, encLen := put(t, e, encoded)
		stack = call(ctx, fns["env.http_decode_url"], encPtr, encLen)
		if got := readStr(t, e, stack[0]); got != "a b&c=d" {
			t.Errorf("decode(encode(x)) = %q", got)
		}
	})

	t.Run("decode malformed", func(t *testing.T) {
		e, ctx := newEnv(t)
		inPtr, inLen := put(t, e, "%zz")
		stack := call(ctx, fns["env.http_decode_url"], inPtr, inLen)
		if got := readStr(t, e, stack[0]); got != "" {
			t.Errorf("http_decode_url(%%zz) = %q, want empty", got)
		}
	})

	t.Run("build query", func(t *testing.T) {
		e, ctx := newEnv(t)
		inPtr, inLen := put(t, e, `{"b":"2","a":"one two","n":3,"ok":true}`)
		stack := call(ctx, fns["env.http_build_query"], inPtr, inLen)
		if got := readStr(t, e, stack[0]); got != "a=one+two&b=2&n=3&ok=true" {
			t.Errorf("http_build_query = %q", got)
		}
	})

	t.Run("build query invalid input", func(t *testing.T) {
		e, ctx := newEnv(t)
		inPtr, inLen := put(t, e, `[1,2]`)
		stack := call(ctx, fns["env.http_build_query"], inPtr, inLen)
		if got := readStr(t, e, stack[0]); got != "" {
			t.Errorf("http_build_query on array = %q, want empty", got)
		}
	})
}
