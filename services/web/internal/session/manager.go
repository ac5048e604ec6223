package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Manager issues the session cookie and binds its id to the request context.
type Manager struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

func (m Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := ""
		if c, err := r.Cookie(m.CookieName); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				sid = c.Value
			}
		}
		if sid == "" {
			sid = uuid.NewString()
		}
		// Re-issued on every request so the browser-side expiry slides with
		// the server-side one.
		http.SetCookie(w, &http.Cookie{
			Name:     m.CookieName,
			Value:    sid,
			Path:     "/",
			MaxAge:   int(m.TTL.Seconds()),
			HttpOnly: true,
			Secure:   m.Secure,
			SameSite: http.SameSiteLaxMode,
		})
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), sid)))
	})
}
