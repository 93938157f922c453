package hostapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/hostbridge/wasm-bridge/session"
)

func authDeps() *Deps {
	deps := &Deps{
		Sessions: session.NewStore(time.Hour),
		Roles:    session.NewRoleTable(),
	}
	deps.Roles.Register("admin", "items.write", "items.read")
	deps.Roles.Register("viewer", "items.read")
	return deps
}

func login(t *testing.T, fns map[string]api.GoModuleFunc, e *Env, ctx context.Context, userID int64, role string) string {
	t.Helper()
	rPtr, rLen := put(t, e, role)
	stack := call(ctx, fns["env._auth_login"], uint64(userID), rPtr, rLen)
	id := readStr(t, e, stack[0])
	if id == "" {
		t.Fatal("login returned an empty session id")
	}
	return id
}

func TestAuthLoginCreatesSession(t *testing.T) {
	deps := authDeps()
	fns := surface(t, deps)
	e, ctx := newEnv(t)

	id := login(t, fns, e, ctx, 42, "admin")

	if e.State.Session == nil || e.State.Session.ID != id {
		t.Fatal("login did not install the session on the request")
	}
	rec := deps.Sessions.Get(id)
	if rec == nil || rec.UserID != 42 || rec.Role != "admin" {
		t.Fatalf("store record = %+v", rec)
	}

	final, err := e.State.Res.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if len(final.Cookies) != 1 || !strings.HasPrefix(final.Cookies[0], "session="+id+";") {
		t.Errorf("session cookie not attached: %v", final.Cookies)
	}
}

func TestAuthLogout(t *testing.T) {
	deps := authDeps()
	fns := surface(t, deps)
	e, ctx := newEnv(t)

	id := login(t, fns, e, ctx, 7, "viewer")
	call(ctx, fns["env._auth_logout"])

	if e.State.Session != nil {
		t.Error("session still on the request after logout")
	}
	if deps.Sessions.Get(id) != nil {
		t.Error("session still in the store after logout")
	}

	final, _ := e.State.Res.Finalize()
	var cleared bool
	for _, c := range final.Cookies {
		if strings.Contains(c, "Max-Age=0") {
			cleared = true
		}
	}
	if !cleared {
		t.Errorf("no clearing cookie after logout: %v", final.Cookies)
	}
}

func TestAuthGetSession(t *testing.T) {
	fns := surface(t, authDeps())

	t.Run("anonymous", func(t *testing.T) {
		e, ctx := newEnv(t)
		stack := call(ctx, fns["env._auth_get_session"])
		if got := readStr(t, e, stack[0]); got != "null" {
			t.Errorf("anonymous session view = %q, want null", got)
		}
	})

	t.Run("logged in", func(t *testing.T) {
		e, ctx := newEnv(t)
		id := login(t, fns, e, ctx, 42, "admin")
		stack := call(ctx, fns["env._auth_get_session"])
		got := readStr(t, e, stack[0])
		want := `{"user_id":42,"role":"admin","session_id":"` + id + `"}`
		if got != want {
			t.Errorf("session view = %s, want %s", got, want)
		}
	})
}

func TestAuthRequireAuth(t *testing.T) {
	fns := surface(t, authDeps())

	t.Run("anonymous gets 401", func(t *testing.T) {
		e, ctx := newEnv(t)
		stack := call(ctx, fns["env._auth_require_auth"])
		if stack[0] != 0 {
			t.Error("guard passed without a session")
		}
		if !e.State.Res.ShortCircuited() || e.State.Res.Status() != 401 {
			t.Errorf("response not frozen at 401: status %d", e.State.Res.Status())
		}
		if string(e.State.Res.Body()) != unauthorizedBody {
			t.Errorf("401 body = %s", e.State.Res.Body())
		}
	})

	t.Run("session passes", func(t *testing.T) {
		e, ctx := newEnv(t)
		login(t, fns, e, ctx, 1, "viewer")
		stack := call(ctx, fns["env._auth_require_auth"])
		if stack[0] != 1 {
			t.Error("guard refused a live session")
		}
		if e.State.Res.ShortCircuited() {
			t.Error("guard froze the response on success")
		}
	})
}

func TestAuthRequireRole(t *testing.T) {
	fns := surface(t, authDeps())

	t.Run("anonymous gets 401", func(t *testing.T) {
		e, ctx := newEnv(t)
		csvPtr, csvLen := put(t, e, "admin")
		stack := call(ctx, fns["env._auth_require_role"], csvPtr, csvLen)
		if stack[0] != 0 || e.State.Res.Status() != 401 {
			t.Errorf("anonymous refusal: verdict %d, status %d", stack[0], e.State.Res.Status())
		}
	})

	t.Run("wrong role gets 403", func(t *testing.T) {
		e, ctx := newEnv(t)
		login(t, fns, e, ctx, 2, "viewer")
		csvPtr, csvLen := put(t, e, "admin,editor")
		stack := call(ctx, fns["env._auth_require_role"], csvPtr, csvLen)
		if stack[0] != 0 {
			t.Error("viewer passed an admin gate")
		}
		if e.State.Res.Status() != 403 || string(e.State.Res.Body()) != forbiddenBody {
			t.Errorf("refusal = %d %s", e.State.Res.Status(), e.State.Res.Body())
		}
	})

	t.Run("matching role passes", func(t *testing.T) {
		e, ctx := newEnv(t)
		login(t, fns, e, ctx, 3, "editor")
		csvPtr, csvLen := put(t, e, "admin, editor")
		stack := call(ctx, fns["env._auth_require_role"], csvPtr, csvLen)
		if stack[0] != 1 || e.State.Res.ShortCircuited() {
			t.Error("editor refused by an admin,editor gate")
		}
	})

	t.Run("empty csv means any session", func(t *testing.T) {
		e, ctx := newEnv(t)
		login(t, fns, e, ctx, 4, "viewer")
		stack := call(ctx, fns["env._auth_require_role"], 0, 0)
		if stack[0] != 1 {
			t.Error("empty role list refused a live session")
		}
	})
}

// A refusal freezes the response: whatever the guest writes afterwards is
// suppressed, so the refusal is what goes to the wire.
func TestAuthRefusalFreezesResponse(t *testing.T) {
	fns := surface(t, authDeps())
	e, ctx := newEnv(t)

	csvPtr, csvLen := put(t, e, "admin")
	call(ctx, fns["env._auth_require_role"], csvPtr, csvLen)

	call(ctx, fns["env._res_set_status"], 200)
	bodyPtr, bodyLen := put(t, e, "made it anyway")
	call(ctx, fns["env._http_respond"], 200, bodyPtr, bodyLen)

	if e.State.Res.Status() != 401 || string(e.State.Res.Body()) != unauthorizedBody {
		t.Errorf("frozen response changed: %d %s", e.State.Res.Status(), e.State.Res.Body())
	}
}

func TestAuthPermissionChecks(t *testing.T) {
	fns := surface(t, authDeps())

	t.Run("can consults the role table", func(t *testing.T) {
		e, ctx := newEnv(t)
		login(t, fns, e, ctx, 5, "viewer")

		permPtr, permLen := put(t, e, "items.read")
		stack := call(ctx, fns["env._auth_can"], permPtr, permLen)
		if stack[0] != 1 {
			t.Error("viewer cannot items.read")
		}

		permPtr, permLen = put(t, e, "items.write")
		stack = call(ctx, fns["env._auth_can"], permPtr, permLen)
		if stack[0] != 0 {
			t.Error("viewer can items.write")
		}
	})

	t.Run("can is false for anonymous", func(t *testing.T) {
		e, ctx := newEnv(t)
		permPtr, permLen := put(t, e, "items.read")
		stack := call(ctx, fns["env._auth_can"], permPtr, permLen)
		if stack[0] != 0 {
			t.Error("anonymous request holds a permission")
		}
	})

	t.Run("has_any_role does not freeze", func(t *testing.T) {
		e, ctx := newEnv(t)
		login(t, fns, e, ctx, 6, "viewer")

		csvPtr, csvLen := put(t, e, "admin,editor")
		stack := call(ctx, fns["env._auth_has_any_role"], csvPtr, csvLen)
		if stack[0] != 0 {
			t.Error("viewer matched admin,editor")
		}
		if e.State.Res.ShortCircuited() {
			t.Error("has_any_role froze the response")
		}

		csvPtr, csvLen = put(t, e, "viewer")
		stack = call(ctx, fns["env._auth_has_any_role"], csvPtr, csvLen)
		if stack[0] != 1 {
			t.Error("viewer did not match viewer")
		}
	})
}

func TestAuthUserAccessors(t *testing.T) {
	fns := surface(t, authDeps())

	t.Run("anonymous", func(t *testing.T) {
		e, ctx := newEnv(t)
		stack := call(ctx, fns["env._auth_user_id"])
		if stack[0] != 0 {
			t.Errorf("anonymous user id = %d", int64(stack[0]))
		}
		stack = call(ctx, fns["env._auth_user_role"])
		if got := readStr(t, e, stack[0]); got != "" {
			t.Errorf("anonymous role = %q", got)
		}
	})

	t.Run("logged in", func(t *testing.T) {
		e, ctx := newEnv(t)
		login(t, fns, e, ctx, 42, "admin")
		stack := call(ctx, fns["env._auth_user_id"])
		if got := int64(stack[0]); got != 42 {
			t.Errorf("user id = %d, want 42", got)
		}
		stack = call(ctx, fns["env._auth_user_role"])
		if got := readStr(t, e, stack[0]); got != "admin" {
			t.Errorf("role = %q, want admin", got)
		}
	})
}

func TestAuthVerify(t *testing.T) {
	deps := authDeps()
	deps.TokenSecret = "server-key"
	fns := surface(t, deps)
	e, ctx := newEnv(t)

	claimsPtr, claimsLen := put(t, e, `{"sub":"42"}`)
	stack := call(ctx, fns["env._jwt_sign"], claimsPtr, claimsLen, 0, 0)
	token := readStr(t, e, stack[0])
	if token == "" {
		t.Fatal("could not sign a token under the server key")
	}

	tokPtr, tokLen := put(t, e, token)
	stack = call(ctx, fns["env._auth_verify"], tokPtr, tokLen)
	if stack[0] != 1 {
		t.Error("server-key token did not verify")
	}

	badPtr, badLen := put(t, e, token+"x")
	stack = call(ctx, fns["env._auth_verify"], badPtr, badLen)
	if stack[0] != 0 {
		t.Error("tampered token verified")
	}
}

func TestAuthVerifyWithoutServerKey(t *testing.T) {
	fns := surface(t, authDeps())
	e, ctx := newEnv(t)

	tokPtr, tokLen := put(t, e, "a.b.c")
	stack := call(ctx, fns["env._auth_verify"], tokPtr, tokLen)
	if stack[0] != 0 {
		t.Error("verify without a configured key returned true")
	}
}

// Detached sessions: the record exists server-side, but the request stays
// anonymous and no cookie is written.
func TestAuthCreateAndDestroySession(t *testing.T) {
	deps := authDeps()
	fns := surface(t, deps)
	e, ctx := newEnv(t)

	stack := call(ctx, fns["env._auth_create_session"], 42)
	id := readStr(t, e, stack[0])
	if id == "" {
		t.Fatal("create_session returned an empty id")
	}
	rec := deps.Sessions.Get(id)
	if rec == nil || rec.UserID != 42 || rec.Role != "" {
		t.Fatalf("store record = %+v", rec)
	}
	if e.State.Session != nil {
		t.Error("detached session ended up on the request")
	}
	final, err := e.State.Res.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if len(final.Cookies) != 0 {
		t.Errorf("detached session wrote cookies: %v", final.Cookies)
	}

	idPtr, idLen := put(t, e, id)
	stack = call(ctx, fns["env._auth_destroy_session"], idPtr, idLen)
	if stack[0] != 1 {
		t.Error("destroying a live session reported false")
	}
	if deps.Sessions.Get(id) != nil {
		t.Error("session still in the store after destroy")
	}

	stack = call(ctx, fns["env._auth_destroy_session"], idPtr, idLen)
	if stack[0] != 0 {
		t.Error("destroying a dead session reported true")
	}
}

func TestAuthDestroySessionClearsOwnRequest(t *testing.T) {
	deps := authDeps()
	fns := surface(t, deps)
	e, ctx := newEnv(t)

	id := login(t, fns, e, ctx, 7, "viewer")
	idPtr, idLen := put(t, e, id)
	if stack := call(ctx, fns["env._auth_destroy_session"], idPtr, idLen); stack[0] != 1 {
		t.Fatal("destroy of the request's own session reported false")
	}
	if e.State.Session != nil {
		t.Error("request still carries the destroyed session")
	}
}
