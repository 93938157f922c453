package hostapi

import (
	"context"
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tetratelabs/wazero/api"
)

// Tokens are HS256 only. Signing takes a JSON claims object verbatim,
// guests manage exp/iat themselves, and every failure path collapses to
// "" or false per the safe-default policy. A guest passing an empty secret
// gets the server-held key from deps, so applications can sign without
// embedding key material in the module.
func bindToken(b *binder, d *Deps) {
	secretOr := func(s string) string {
		if s == "" {
			return d.TokenSecret
		}
		return s
	}

	b.fn(wireEnv, "_jwt_sign", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		claimsJSON := e.str(stack, 0)
		secret := secretOr(e.str(stack, 2))

		var claims jwt.MapClaims
		if err := json.Unmarshal([]byte(claimsJSON), &claims); err != nil || secret == "" {
			stack[0] = e.out("")
			return
		}

		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			stack[0] = e.out("")
			return
		}
		stack[0] = e.out(signed)
	}))

	b.fn(wireEnv, "_jwt_verify", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		token := e.str(stack, 0)
		secret := secretOr(e.str(stack, 2))

		parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		stack[0] = boolWord(err == nil && parsed.Valid)
	}))

	b.fn(wireEnv, "_jwt_decode", api.GoModuleFunc(func(ctx context.Context, _ api.Module, stack []uint64) {
		e := env(ctx)
		token := e.str(stack, 0)

		// Decode without verification: the guest asked for the payload,
		// not a trust decision.
		claims := jwt.MapClaims{}
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(token, claims); err != nil {
			stack[0] = e.out("")
			return
		}
		encoded, err := json.Marshal(claims)
		if err != nil {
			stack[0] = e.out("")
			return
		}
		stack[0] = e.out(string(encoded))
	}))
}
