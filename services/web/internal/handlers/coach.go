package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/fitkeeda-web/internal/http/response"
	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/api"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/attendance"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/guard"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

var coachRole = &guard.Coach

func (h *Handler) attendanceService(ctx context.Context) *attendance.Service {
	svc := attendance.New(h.client(ctx, guard.Coach), h.events)
	svc.Now = h.now
	return svc
}

// currentCoach maps the logged-in coach to their backend record.
func (h *Handler) currentCoach(ctx context.Context, svc *attendance.Service) (*api.Coach, error) {
	return svc.ResolveCoach(ctx, h.hint(ctx, guard.Coach).Phone)
}

func (h *Handler) coachNotFound(w http.ResponseWriter, r *http.Request) {
	p := h.page(r, coachRole, "Coach", errorView{Message: "We could not find a coach profile for this login. Please contact the admin."})
	h.render(w, r, http.StatusNotFound, "error", p)
}

func (h *Handler) CoachDashboard(w http.ResponseWriter, r *http.Request) {
	v := dashboardView{
		Heading: "Coach dashboard",
		Links: []link{
			{Href: "/coach/sessions", Label: "My sessions"},
			{Href: "/coach/attendance", Label: "Mark attendance"},
		},
	}
	h.render(w, r, http.StatusOK, "dashboard", h.page(r, coachRole, "Dashboard", v))
}

func (h *Handler) CoachSessions(w http.ResponseWriter, r *http.Request) {
	client := h.client(r.Context(), guard.Coach)
	svc := h.attendanceService(r.Context())
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	apartment := strings.TrimSpace(r.URL.Query().Get("apartment"))

	var (
		coach    *api.Coach
		sessions []api.Session
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		coach, err = h.currentCoach(ctx, svc)
		return err
	})
	g.Go(func() (err error) {
		sessions, err = client.ListSessions(ctx, api.SessionFilter{Apartment: apartment})
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, attendance.ErrCoachNotFound) {
			h.coachNotFound(w, r)
			return
		}
		h.fail(w, r, coachRole, err)
		return
	}

	v := tableView{
		Heading:      "My sessions",
		SearchAction: r.URL.Path,
		Search:       q,
		Headers:      []string{"Society", "Sport", "Slot", "Plan"},
		Empty:        "No sessions assigned to you yet.",
	}
	for _, s := range sessions {
		if s.AssignedCoach == nil || s.AssignedCoach.ID != coach.ID {
			continue
		}
		if matches(q, s.Apartment, s.Sport, s.Slot) {
			v.Rows = append(v.Rows, row(s.Apartment, s.Sport, s.Slot, s.Plan))
		}
	}
	h.render(w, r, http.StatusOK, "table", h.page(r, coachRole, "My sessions", v))
}

type boardView struct {
	Entries []attendance.Entry
	Now     time.Time
}

func (h *Handler) AttendanceBoard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	svc := h.attendanceService(ctx)
	coach, err := h.currentCoach(ctx, svc)
	if errors.Is(err, attendance.ErrCoachNotFound) {
		h.coachNotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, coachRole, err)
		return
	}
	entries, err := svc.Board(ctx, coach.ID)
	if err != nil {
		h.fail(w, r, coachRole, err)
		return
	}
	v := boardView{Entries: entries, Now: h.now()}
	h.render(w, r, http.StatusOK, "attendance_board", h.page(r, coachRole, "Attendance", v))
}

func (h *Handler) ToggleAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")
	svc := h.attendanceService(ctx)
	coach, err := h.currentCoach(ctx, svc)
	if errors.Is(err, attendance.ErrCoachNotFound) {
		h.coachNotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, coachRole, err)
		return
	}

	status, err := svc.Toggle(ctx, coach.ID, sessionID)
	switch {
	case err == nil:
		h.redirectWithFlash(w, r, "/coach/attendance", "Marked "+status+".")
	case errors.Is(err, attendance.ErrOutsideWindow), errors.Is(err, attendance.ErrNotOnBoard):
		h.redirectWithFlash(w, r, "/coach/attendance", err.Error())
	case api.IsUnauthorized(err), errors.Is(err, context.Canceled):
		h.fail(w, r, coachRole, err)
	default:
		logger.ErrorContext(ctx, "Failed to toggle attendance", "session_id", sessionID, "error", err)
		h.redirectWithFlash(w, r, "/coach/attendance", "Could not update attendance: "+api.UserMessage(err))
	}
}

type boardEntryJSON struct {
	SessionID string     `json:"sessionId"`
	Sport     string     `json:"sport"`
	Apartment string     `json:"apartment"`
	Slot      string     `json:"slot"`
	Status    string     `json:"status"`
	CanMark   bool       `json:"canMark"`
	OpensAt   *time.Time `json:"opensAt,omitempty"`
	ClosesAt  *time.Time `json:"closesAt,omitempty"`
}

// AttendanceJSON serves the board for scripted clients.
func (h *Handler) AttendanceJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	svc := h.attendanceService(ctx)
	coach, err := h.currentCoach(ctx, svc)
	if err != nil {
		h.apiFail(w, r, err)
		return
	}
	entries, err := svc.Board(ctx, coach.ID)
	if err != nil {
		h.apiFail(w, r, err)
		return
	}
	out := make([]boardEntryJSON, 0, len(entries))
	for _, e := range entries {
		j := boardEntryJSON{
			SessionID: e.SessionID,
			Sport:     e.Session.Sport,
			Apartment: e.Session.Apartment,
			Slot:      e.Session.Slot,
			Status:    e.Status,
			CanMark:   e.CanMark,
		}
		if !e.Window.Start.IsZero() {
			opens, closes := e.Window.Opens, e.Window.Closes
			j.OpensAt, j.ClosesAt = &opens, &closes
		}
		out = append(out, j)
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"coachId": coach.ID, "entries": out})
}

func (h *Handler) ToggleAttendanceJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")
	svc := h.attendanceService(ctx)
	coach, err := h.currentCoach(ctx, svc)
	if err != nil {
		h.apiFail(w, r, err)
		return
	}
	status, err := svc.Toggle(ctx, coach.ID, sessionID)
	if err != nil {
		h.apiFail(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID, "status": status})
}

// apiFail is fail for JSON endpoints.
func (h *Handler) apiFail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, context.Canceled):
	case errors.Is(err, attendance.ErrOutsideWindow):
		response.WriteError(w, http.StatusConflict, err.Error(), response.CodeOutsideWindow)
	case errors.Is(err, attendance.ErrNotOnBoard), errors.Is(err, attendance.ErrCoachNotFound):
		response.NotFound(w, err.Error())
	case api.IsUnauthorized(err):
		if cerr := h.tokens.Clear(ctx, guard.Coach.StorageKey); cerr != nil {
			logger.ErrorContext(ctx, "Failed to purge token", "error", cerr)
		}
		response.Unauthorized(w, "login required")
	default:
		logger.ErrorContext(ctx, "Backend call failed", "path", r.URL.Path, "error", err)
		response.WriteError(w, http.StatusBadGateway, api.UserMessage(err), response.CodeBackendError)
	}
}
