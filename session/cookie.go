package session

import (
	"fmt"
	"time"
)

// CookieName is the cookie that delivers the session id.
const CookieName = "session"

// Older guests set the id under these names; lookups accept them so a
// redeploy does not log everyone out.
var legacyCookieNames = []string{"sid", "todo.sid"}

// Cookie renders the Set-Cookie directive attaching a session.
func Cookie(id string, ttl time.Duration) string {
	return fmt.Sprintf("%s=%s; Path=/; HttpOnly; SameSite=Lax; Max-Age=%d",
		CookieName, id, int(ttl.Seconds()))
}

// ClearCookie renders the Set-Cookie directive removing the session cookie.
func ClearCookie() string {
	return fmt.Sprintf("%s=; Path=/; Max-Age=0; HttpOnly", CookieName)
}

// CookieSource yields request cookie values by name; empty means absent.
// *reqctx.Request satisfies it.
type CookieSource interface {
	Cookie(name string) string
}

// FromRequest resolves the session id from request cookies: the current
// name first, then the legacy names.
func FromRequest(req CookieSource) string {
	if id := req.Cookie(CookieName); id != "" {
		return id
	}
	for _, name := range legacyCookieNames {
		if id := req.Cookie(name); id != "" {
			return id
		}
	}
	return ""
}
