// Package handlers serves the admin, coach, resident and public pages.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/diagnosis/fitkeeda-web/pkg/auth"
	"github.com/diagnosis/fitkeeda-web/pkg/events"
	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/api"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/guard"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/notify"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/session"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/views"
)

type Options struct {
	API        *api.Client
	Store      session.Store
	Tokens     session.TokenStore
	Views      *views.Renderer
	Events     events.Publisher
	Notifier   *notify.Notifier
	SubmitLock time.Duration
}

type Handler struct {
	api        *api.Client
	store      session.Store
	tokens     session.TokenStore
	views      *views.Renderer
	events     events.Publisher
	notifier   *notify.Notifier
	submitLock time.Duration
	now        func() time.Time
}

func New(opts Options) *Handler {
	h := &Handler{
		api:        opts.API,
		store:      opts.Store,
		tokens:     opts.Tokens,
		views:      opts.Views,
		events:     opts.Events,
		notifier:   opts.Notifier,
		submitLock: opts.SubmitLock,
		now:        time.Now,
	}
	if h.events == nil {
		h.events = events.Noop{}
	}
	if h.notifier == nil {
		h.notifier = notify.New(notify.NewDevMailer())
	}
	if h.submitLock <= 0 {
		h.submitLock = 30 * time.Second
	}
	return h
}

type link struct {
	Href  string
	Label string
}

type stat struct {
	Label string
	Value int
}

type errorView struct {
	Message string
	Retry   string
}

type doneView struct {
	Heading string
	Message string
	Next    link
}

// client returns the backend client carrying the token the guard verified
// for role.
func (h *Handler) client(ctx context.Context, role guard.Role) *api.Client {
	return h.api.WithToken(guard.TokenFrom(ctx, role))
}

// hint decodes display data from the role's token. It is never used for
// access decisions.
func (h *Handler) hint(ctx context.Context, role guard.Role) *auth.IdentityHint {
	token := guard.TokenFrom(ctx, role)
	if token == "" {
		return &auth.IdentityHint{}
	}
	claims, err := auth.Decode(token)
	if err != nil {
		logger.WarnContext(ctx, "Could not decode identity hint", "role", role.Name, "error", err)
		return &auth.IdentityHint{}
	}
	return claims
}

func (h *Handler) page(r *http.Request, role *guard.Role, title string, data any) views.Page {
	p := views.Page{Title: title, Data: data}
	if role != nil {
		p.Role = role.Name
		hint := h.hint(r.Context(), *role)
		p.Name = hint.FullName
		if p.Name == "" {
			p.Name = hint.Email
		}
	}
	p.Flash = h.popFlash(r.Context())
	return p
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, p views.Page) {
	h.views.Render(w, r, status, name, p)
}

// fail turns a backend error into a response. A rejected token is handled
// like a failed guard check; anything else gets an explicit error page.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, role *guard.Role, err error) {
	ctx := r.Context()
	if errors.Is(err, context.Canceled) {
		return
	}
	if role != nil && api.IsUnauthorized(err) {
		logger.WarnContext(ctx, "Backend rejected token mid-request, purging", "role", role.Name, "error", err)
		if cerr := h.tokens.Clear(ctx, role.StorageKey); cerr != nil {
			logger.ErrorContext(ctx, "Failed to purge token", "error", cerr)
		}
		http.Redirect(w, r, role.LoginPath, http.StatusSeeOther)
		return
	}

	logger.ErrorContext(ctx, "Backend call failed", "path", r.URL.Path, "error", err)
	p := h.page(r, role, "Error", errorView{Message: api.UserMessage(err), Retry: r.URL.RequestURI()})
	h.render(w, r, http.StatusBadGateway, "error", p)
}

// statusFor maps a backend error to the status of the page that reports it.
func statusFor(err error) int {
	var e *api.Error
	if errors.As(err, &e) && e.Status < 500 && e.Status != http.StatusTooManyRequests {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}

func (h *Handler) publish(ctx context.Context, subject string, data any) {
	if err := h.events.Publish(ctx, subject, data); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "subject", subject, "error", err)
	}
}

const flashKey = "flash"

func (h *Handler) setFlash(ctx context.Context, msg string) {
	sid, ok := session.IDFrom(ctx)
	if !ok {
		return
	}
	if err := h.store.Set(ctx, sid, flashKey, []byte(msg)); err != nil {
		logger.WarnContext(ctx, "Failed to store flash", "error", err)
	}
}

func (h *Handler) popFlash(ctx context.Context) string {
	sid, ok := session.IDFrom(ctx)
	if !ok {
		return ""
	}
	v, err := h.store.Get(ctx, sid, flashKey)
	if err != nil {
		return ""
	}
	_ = h.store.Delete(ctx, sid, flashKey)
	return string(v)
}

// remember records a completed side effect under key for this session.
// An empty key is ignored.
func (h *Handler) remember(ctx context.Context, key, value string) {
	sid, ok := session.IDFrom(ctx)
	if !ok || key == "" {
		return
	}
	if err := h.store.Set(ctx, sid, key, []byte(value)); err != nil {
		logger.WarnContext(ctx, "Failed to record completed step", "key", key, "error", err)
	}
}

func (h *Handler) remembered(ctx context.Context, key string) bool {
	sid, ok := session.IDFrom(ctx)
	if !ok || key == "" {
		return false
	}
	_, err := h.store.Get(ctx, sid, key)
	return err == nil
}

func (h *Handler) forget(ctx context.Context, key string) {
	if sid, ok := session.IDFrom(ctx); ok && key != "" {
		_ = h.store.Delete(ctx, sid, key)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, to, msg string) {
	h.setFlash(r.Context(), msg)
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func formatPrice(v float64) string {
	return "₹" + strconv.FormatFloat(v, 'f', 0, 64)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02 Jan 2006")
}
