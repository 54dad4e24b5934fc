package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const SessionCookie = "sid"

type sessionKey struct{}

// Sessions issues a random session id cookie to clients that lack one and
// stores the id in the request context.
func Sessions(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := ""
			if c, err := r.Cookie(SessionCookie); err == nil {
				if _, perr := uuid.Parse(c.Value); perr == nil {
					sid = c.Value
				}
			}
			if sid == "" {
				sid = uuid.NewString()
			}
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sid,
				Path:     "/",
				MaxAge:   int(ttl.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sid)))
		})
	}
}

// SessionID returns the id set by Sessions, or "" outside of it.
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionKey{}).(string)
	return sid
}
