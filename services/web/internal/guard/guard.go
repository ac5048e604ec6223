// Package guard gates a role's pages behind a backend-verified bearer token.
package guard

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/fitkeeda-web/internal/http/response"
	"github.com/diagnosis/fitkeeda-web/pkg/events"
	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Role describes one independently guarded area of the site.
type Role struct {
	Name       string
	StorageKey string
	LoginPath  string
	HomePath   string
	VerifyPath string
}

var (
	Admin = Role{
		Name:       "admin",
		StorageKey: session.AdminTokenKey,
		LoginPath:  "/admin/login",
		HomePath:   "/admin",
		VerifyPath: "/admin-auth/verify",
	}
	Coach = Role{
		Name:       "coach",
		StorageKey: session.CoachTokenKey,
		LoginPath:  "/coach/login",
		HomePath:   "/coach",
		VerifyPath: "/coach-auth/verify",
	}
	Resident = Role{
		Name:       "resident",
		StorageKey: session.ResidentTokenKey,
		LoginPath:  "/residents/auth-resident",
		HomePath:   "/residents",
		VerifyPath: "/auth/verify",
	}
)

type State int

const (
	StateLoading State = iota
	StateVerifying
	StateRedirectLogin
	StateRenderLogin
	StateRenderProtected
	StateRedirectHome
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateVerifying:
		return "verifying"
	case StateRedirectLogin:
		return "redirect_login"
	case StateRenderLogin:
		return "render_login"
	case StateRenderProtected:
		return "render_protected"
	case StateRedirectHome:
		return "redirect_home"
	}
	return "unknown"
}

// Decision is the terminal outcome of one guard evaluation.
type Decision struct {
	State    State
	Location string // set for redirects
	Token    string // set when the token verified
	Purged   bool
}

func (d Decision) Redirect() bool {
	return d.State == StateRedirectLogin || d.State == StateRedirectHome
}

var decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fitkeeda_web",
	Name:      "guard_decisions_total",
	Help:      "Route guard outcomes, by role and state.",
}, []string{"role", "state"})

type Guard struct {
	role     Role
	tokens   session.TokenStore
	verifier Verifier
	events   events.Publisher
}

func New(role Role, tokens session.TokenStore, verifier Verifier, publisher events.Publisher) *Guard {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Guard{
		role:     role,
		tokens:   tokens,
		verifier: verifier,
		events:   publisher,
	}
}

func (g *Guard) Role() Role { return g.role }

// Decide evaluates path for the guard's role. A cancelled ctx yields
// ctx.Err() and leaves the stored token untouched.
func (g *Guard) Decide(ctx context.Context, path string) (Decision, error) {
	onLogin := strings.TrimRight(path, "/") == g.role.LoginPath

	token, err := g.tokens.Get(ctx, g.role.StorageKey)
	if err != nil {
		return Decision{State: StateLoading}, err
	}

	if token == "" {
		if onLogin {
			return g.record(Decision{State: StateRenderLogin}), nil
		}
		return g.record(Decision{State: StateRedirectLogin, Location: g.role.LoginPath}), nil
	}

	verr := g.verifier.Verify(ctx, g.role, token)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Decision{State: StateVerifying}, ctxErr
	}

	if verr != nil {
		logger.WarnContext(ctx, "Token verification failed, purging",
			"role", g.role.Name,
			"error", verr,
		)
		if err := g.tokens.Clear(ctx, g.role.StorageKey); err != nil {
			logger.ErrorContext(ctx, "Failed to purge token", "role", g.role.Name, "error", err)
		}
		g.publish(ctx, events.AuthTokenPurged, verr.Error())
		if onLogin {
			return g.record(Decision{State: StateRenderLogin, Purged: true}), nil
		}
		return g.record(Decision{State: StateRedirectLogin, Location: g.role.LoginPath, Purged: true}), nil
	}

	if onLogin {
		return g.record(Decision{State: StateRedirectHome, Location: g.role.HomePath, Token: token}), nil
	}
	return g.record(Decision{State: StateRenderProtected, Token: token}), nil
}

// Middleware runs Decide for every request and either serves next or
// redirects with 303 so the guarded URL is replaced, not stacked.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), logger.RoleKey, g.role.Name)

		d, err := g.Decide(ctx, r.URL.Path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.DebugContext(ctx, "Client went away during verification, discarding result")
				return
			}
			logger.ErrorContext(ctx, "Guard failed to read token", "error", err)
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		if d.Redirect() {
			http.Redirect(w, r, d.Location, http.StatusSeeOther)
			return
		}
		if d.Token != "" {
			ctx = WithToken(ctx, g.role, d.Token)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// APIMiddleware is Middleware for JSON endpoints: instead of redirecting it
// answers 401 with a JSON body.
func (g *Guard) APIMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), logger.RoleKey, g.role.Name)

		d, err := g.Decide(ctx, r.URL.Path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			logger.ErrorContext(ctx, "Guard failed to read token", "error", err)
			response.WriteError(w, http.StatusServiceUnavailable, "session store unavailable", response.CodeInternalError)
			return
		}
		if d.State != StateRenderProtected {
			response.Unauthorized(w, "login required")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithToken(ctx, g.role, d.Token)))
	})
}

func (g *Guard) record(d Decision) Decision {
	decisions.WithLabelValues(g.role.Name, d.State.String()).Inc()
	return d
}

func (g *Guard) publish(ctx context.Context, subject, reason string) {
	evt := events.AuthEvent{Role: g.role.Name, Reason: reason, At: time.Now().UTC()}
	if err := g.events.Publish(ctx, subject, evt); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}

type tokenKey string

// WithToken records a verified token for role on ctx.
func WithToken(ctx context.Context, role Role, token string) context.Context {
	return context.WithValue(ctx, tokenKey(role.Name), token)
}

// TokenFrom returns the token the guard verified for role on this request.
func TokenFrom(ctx context.Context, role Role) string {
	token, _ := ctx.Value(tokenKey(role.Name)).(string)
	return token
}
