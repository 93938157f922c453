package hostapi

import (
	"context"
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/hostbridge/wasm-bridge/session"
)

// Guard bodies, byte-identical to what the server's own pre-checks emit.
const (
	unauthorizedBody = `{"ok":false,"error":"Unauthorized"}`
	forbiddenBody    = `{"ok":false,"error":"Forbidden"}`
)

type sessionView struct {
	UserID    int64  `json:"user_id"`
	Role      string `json:"role"`
	SessionID string `json:"session_id"`
}

// The auth namespace owns login/logout and the in-handler guards. Guards
// return their verdict AND preset the final response on refusal: the
// response freezes at 401/403 so nothing the guest does afterwards can
// overwrite the refusal, while the guest itself keeps running.
func bindAuth(b *binder, d *Deps) {
	b.fn(wireEnv, "_auth_login", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		userID := int64(stack[0])
		role := e.str(stack, 1)

		rec := d.Sessions.Create(userID, role, nil)
		e.State.Session = rec
		e.State.Res.AddCookie(session.Cookie(rec.ID, d.Sessions.TTL()))

		Logger().Debug("session created",
			zap.Int64("user_id", userID),
			zap.String("role", role))
		stack[0] = e.out(rec.ID)
	}))

	b.fn(wireEnv, "_auth_logout", api.GoModuleFunc(func(ctx context.Context, _ api.Module, _ []uint64) {
		e := env(ctx)
		if e.State.Session != nil {
			d.Sessions.Destroy(e.State.Session.ID)
			e.State.Session = nil
		}
		e.State.Res.AddCookie(session.ClearCookie())
	}))

	b.fn(wireEnv, "_auth_get_session", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.Session == nil {
			stack[0] = e.out("null")
			return
		}
		view := sessionView{
			UserID:    e.State.Session.UserID,
			Role:      e.State.Session.Role,
			SessionID: e.State.Session.ID,
		}
		encoded, err := json.Marshal(view)
		if err != nil {
			stack[0] = e.out("null")
			return
		}
		stack[0] = e.out(string(encoded))
	}))

	b.fn(wireEnv, "_auth_require_auth", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.Session == nil {
			e.State.Res.ShortCircuit(401, []byte(unauthorizedBody))
			stack[0] = 0
			return
		}
		stack[0] = 1
	}))

	b.fn(wireEnv, "_auth_require_role", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.Session == nil {
			e.State.Res.ShortCircuit(401, []byte(unauthorizedBody))
			stack[0] = 0
			return
		}
		if !roleIn(e.State.Session.Role, e.str(stack, 0)) {
			e.State.Res.ShortCircuit(403, []byte(forbiddenBody))
			stack[0] = 0
			return
		}
		stack[0] = 1
	}))

	b.fn(wireEnv, "_auth_can", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.Session == nil {
			stack[0] = 0
			return
		}
		stack[0] = boolWord(d.Roles.Can(e.State.Session.Role, e.str(stack, 0)))
	}))

	b.fn(wireEnv, "_auth_has_any_role", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.Session == nil {
			stack[0] = 0
			return
		}
		stack[0] = boolWord(roleIn(e.State.Session.Role, e.str(stack, 0)))
	}))

	b.fn(wireEnv, "_auth_user_id", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.Session == nil {
			stack[0] = 0
			return
		}
		stack[0] = uint64(e.State.Session.UserID)
	}))

	b.fn(wireEnv, "_auth_user_role", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if e.State.Session == nil {
			stack[0] = e.out("")
			return
		}
		stack[0] = e.out(e.State.Session.Role)
	}))

	b.fn(wireEnv, "_auth_verify", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		if d.TokenSecret == "" {
			stack[0] = 0
			return
		}
		parsed, err := jwt.Parse(e.str(stack, 0), func(t *jwt.Token) (any, error) {
			return []byte(d.TokenSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		stack[0] = boolWord(err == nil && parsed.Valid)
	}))

	// Session creation without login: the record exists server-side but no
	// cookie is written and the dispatch state stays anonymous. The guest
	// holds the only reference to the returned id.
	b.fn(wireEnv, "_auth_create_session", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		userID := int64(int32(stack[0]))
		rec := d.Sessions.Create(userID, "", nil)
		Logger().Debug("detached session created", zap.Int64("user_id", userID))
		stack[0] = e.out(rec.ID)
	}))

	b.fn(wireEnv, "_auth_destroy_session", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		id := e.str(stack, 0)
		if d.Sessions.Get(id) == nil {
			stack[0] = 0
			return
		}
		d.Sessions.Destroy(id)
		if e.State.Session != nil && e.State.Session.ID == id {
			e.State.Session = nil
		}
		stack[0] = 1
	}))
}

// roleIn reports whether role appears in a CSV of acceptable roles. An
// empty CSV accepts any authenticated role.
func roleIn(role, csv string) bool {
	accepted := splitCSV(csv)
	if len(accepted) == 0 {
		return true
	}
	for _, want := range accepted {
		if role == want {
			return true
		}
	}
	return false
}
