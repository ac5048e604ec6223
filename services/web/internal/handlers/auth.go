package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/diagnosis/fitkeeda-web/internal/utils"
	"github.com/diagnosis/fitkeeda-web/pkg/auth"
	"github.com/diagnosis/fitkeeda-web/pkg/events"
	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/api"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/guard"
)

type loginView struct {
	Heading       string
	Action        string
	IdentityLabel string
	IdentityName  string
	Identity      string
	SignupAction  string
	Societies     []string
}

func (h *Handler) loginView(ctx context.Context, role guard.Role) loginView {
	v := loginView{
		Action:        role.LoginPath,
		IdentityLabel: "Phone",
		IdentityName:  "phone",
	}
	switch role.Name {
	case guard.Admin.Name:
		v.Heading = "Admin login"
		v.IdentityLabel = "Email"
		v.IdentityName = "email"
	case guard.Coach.Name:
		v.Heading = "Coach login"
	default:
		v.Heading = "Resident login"
		v.SignupAction = "/residents/signup"
		societies, err := h.api.ListSocieties(ctx)
		if err != nil {
			logger.WarnContext(ctx, "Failed to load societies for signup", "error", err)
		}
		for _, s := range societies {
			v.Societies = append(v.Societies, s.Name)
		}
	}
	return v
}

// LoginPage renders the role's login form. The guard has already decided
// that no valid token exists.
func (h *Handler) LoginPage(role guard.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := h.page(r, nil, "Log in", h.loginView(r.Context(), role))
		h.render(w, r, http.StatusOK, "login", p)
	}
}

func (h *Handler) Login(role guard.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := r.ParseForm(); err != nil {
			h.loginFailed(w, r, role, http.StatusBadRequest, "Invalid form submission.", "")
			return
		}
		identity := utils.NormalizePhone(r.PostForm.Get("phone"))
		if role.Name == guard.Admin.Name {
			identity = utils.NormalizeEmail(r.PostForm.Get("email"))
		}
		password := r.PostForm.Get("password")
		if identity == "" || password == "" {
			h.loginFailed(w, r, role, http.StatusUnprocessableEntity, "Enter your login and password.", identity)
			return
		}

		var (
			res *api.TokenResponse
			err error
		)
		switch role.Name {
		case guard.Admin.Name:
			res, err = h.api.AdminLogin(ctx, api.AdminLoginRequest{Email: identity, Password: password})
		case guard.Coach.Name:
			res, err = h.api.CoachLogin(ctx, api.LoginRequest{Phone: identity, Password: password})
		default:
			res, err = h.api.Login(ctx, api.LoginRequest{Phone: identity, Password: password})
		}
		if err != nil {
			status := http.StatusBadGateway
			msg := api.UserMessage(err)
			var apiErr *api.Error
			if errors.As(err, &apiErr) && apiErr.Status < 500 {
				status = http.StatusUnauthorized
				if apiErr.Message == "" {
					msg = "Invalid credentials."
				}
			}
			logger.WarnContext(ctx, "Login failed", "role", role.Name, "error", err)
			h.loginFailed(w, r, role, status, msg, identity)
			return
		}
		if res.AccessToken == "" {
			logger.ErrorContext(ctx, "Login response carried no token", "role", role.Name)
			h.loginFailed(w, r, role, http.StatusBadGateway, "Login is temporarily unavailable.", identity)
			return
		}

		h.completeLogin(w, r, role, res.AccessToken)
	}
}

func (h *Handler) completeLogin(w http.ResponseWriter, r *http.Request, role guard.Role, token string) {
	ctx := r.Context()
	if hint, err := auth.Decode(token); err == nil && hint.Expired(h.now()) {
		logger.WarnContext(ctx, "Backend issued a token that already looks expired", "role", role.Name)
	}
	if err := h.tokens.Set(ctx, role.StorageKey, token); err != nil {
		logger.ErrorContext(ctx, "Failed to store token", "role", role.Name, "error", err)
		h.loginFailed(w, r, role, http.StatusServiceUnavailable, "Could not start your session. Please try again.", "")
		return
	}
	logger.InfoContext(ctx, "User logged in", "role", role.Name)
	h.publish(ctx, events.AuthLoggedIn, events.AuthEvent{Role: role.Name, At: h.now().UTC()})
	http.Redirect(w, r, role.HomePath, http.StatusSeeOther)
}

func (h *Handler) loginFailed(w http.ResponseWriter, r *http.Request, role guard.Role, status int, msg, identity string) {
	v := h.loginView(r.Context(), role)
	v.Identity = identity
	p := h.page(r, nil, "Log in", v)
	p.Error = msg
	h.render(w, r, status, "login", p)
}

// Signup registers a resident and logs them straight in.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	role := guard.Resident
	if err := r.ParseForm(); err != nil {
		h.loginFailed(w, r, role, http.StatusBadRequest, "Invalid form submission.", "")
		return
	}
	req := api.SignupRequest{
		FullName:    strings.TrimSpace(r.PostForm.Get("fullName")),
		Phone:       utils.NormalizePhone(r.PostForm.Get("phone")),
		SocietyName: strings.TrimSpace(r.PostForm.Get("societyName")),
		Password:    r.PostForm.Get("password"),
	}
	if req.FullName == "" || req.Phone == "" || req.SocietyName == "" || req.Password == "" {
		h.loginFailed(w, r, role, http.StatusUnprocessableEntity, "All signup fields are required.", req.Phone)
		return
	}

	if err := h.api.Signup(ctx, req); err != nil {
		logger.WarnContext(ctx, "Signup failed", "error", err)
		h.loginFailed(w, r, role, statusFor(err), api.UserMessage(err), req.Phone)
		return
	}
	res, err := h.api.Login(ctx, api.LoginRequest{Phone: req.Phone, Password: req.Password})
	if err != nil || res.AccessToken == "" {
		logger.WarnContext(ctx, "Login after signup failed", "error", err)
		h.redirectWithFlash(w, r, role.LoginPath, "Account created. Please log in.")
		return
	}
	h.completeLogin(w, r, role, res.AccessToken)
}

func (h *Handler) Logout(role guard.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := h.tokens.Clear(ctx, role.StorageKey); err != nil {
			logger.ErrorContext(ctx, "Failed to clear token", "role", role.Name, "error", err)
		}
		h.publish(ctx, events.AuthLoggedOut, events.AuthEvent{Role: role.Name, At: h.now().UTC()})
		http.Redirect(w, r, role.LoginPath, http.StatusSeeOther)
	}
}
