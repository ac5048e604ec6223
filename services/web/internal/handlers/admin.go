package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/diagnosis/fitkeeda-web/pkg/events"
	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/api"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/attendance"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/guard"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/wizard"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

var adminRole = &guard.Admin

type dashboardView struct {
	Heading string
	Stats   []stat
	Links   []link
}

type tableView struct {
	Heading      string
	Actions      []link
	SearchAction string
	Search       string
	Headers      []string
	Rows         []tableRow
	Empty        string
}

type tableRow struct {
	Cells []string
	// Delete, when set, is the POST target of the row's delete button.
	Delete string
}

func row(cells ...string) tableRow { return tableRow{Cells: cells} }

// matches reports whether any cell contains q, case-insensitively.
func matches(q string, cells ...string) bool {
	if q == "" {
		return true
	}
	q = strings.ToLower(q)
	for _, c := range cells {
		if strings.Contains(strings.ToLower(c), q) {
			return true
		}
	}
	return false
}

func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	client := h.client(r.Context(), guard.Admin)

	var societies, coaches, sessions, bookings int
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		list, err := client.ListSocieties(ctx)
		societies = len(list)
		return err
	})
	g.Go(func() error {
		list, err := client.ListCoaches(ctx)
		coaches = len(list)
		return err
	})
	g.Go(func() error {
		list, err := client.ListSessions(ctx, api.SessionFilter{})
		sessions = len(list)
		return err
	})
	g.Go(func() error {
		list, err := client.ListBookings(ctx, api.BookingFilter{})
		bookings = len(list)
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, adminRole, err)
		return
	}

	v := dashboardView{
		Heading: "Admin dashboard",
		Stats: []stat{
			{Label: "societies", Value: societies},
			{Label: "coaches", Value: coaches},
			{Label: "sessions", Value: sessions},
			{Label: "bookings", Value: bookings},
		},
		Links: []link{
			{Href: "/admin/societies", Label: "Societies"},
			{Href: "/admin/coaches", Label: "Coaches"},
			{Href: "/admin/sessions", Label: "Sessions"},
			{Href: "/admin/sessions/assign", Label: "Assign coaches"},
			{Href: "/admin/coaches/schedule", Label: "Coach schedule"},
			{Href: "/admin/bookings", Label: "Bookings"},
			{Href: "/admin/residents", Label: "Residents"},
			{Href: "/admin/enquiries", Label: "Coach and society enquiries"},
			{Href: "/admin/customer-enquiries", Label: "Resident enquiries"},
			{Href: "/admin/prospective", Label: "Prospective clients"},
			{Href: "/admin/attendance", Label: "Attendance today"},
			{Href: "/admin/notices/new", Label: "Send notice"},
		},
	}
	h.render(w, r, http.StatusOK, "dashboard", h.page(r, adminRole, "Dashboard", v))
}

// listPage fetches rows and renders them through the shared table template.
func (h *Handler) listPage(title string, v tableView, load func(ctx context.Context, q string) ([]tableRow, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		rows, err := load(r.Context(), q)
		if err != nil {
			h.fail(w, r, adminRole, err)
			return
		}
		v := v
		v.Heading = title
		v.Search = q
		v.SearchAction = r.URL.Path
		v.Rows = rows
		if v.Empty == "" {
			v.Empty = "Nothing here yet."
		}
		h.render(w, r, http.StatusOK, "table", h.page(r, adminRole, title, v))
	}
}

func (h *Handler) AdminSocieties() http.HandlerFunc {
	v := tableView{
		Actions: []link{{Href: "/admin/societies/new", Label: "Add society"}},
		Headers: []string{"Name", "Area", "Amenities"},
	}
	return h.listPage("Societies", v, func(ctx context.Context, q string) ([]tableRow, error) {
		list, err := h.client(ctx, guard.Admin).ListSocieties(ctx)
		if err != nil {
			return nil, err
		}
		var rows []tableRow
		for _, s := range list {
			amenities := strings.Join(s.Amenities, ", ")
			if matches(q, s.Name, s.Area, amenities) {
				rows = append(rows, row(s.Name, s.Area, amenities))
			}
		}
		return rows, nil
	})
}

func (h *Handler) AdminCoaches() http.HandlerFunc {
	v := tableView{
		Actions: []link{{Href: "/admin/coaches/new", Label: "Add coach"}},
		Headers: []string{"Name", "Phone", "Email", "Location", "Sports"},
	}
	return h.listPage("Coaches", v, func(ctx context.Context, q string) ([]tableRow, error) {
		list, err := h.client(ctx, guard.Admin).ListCoaches(ctx)
		if err != nil {
			return nil, err
		}
		var rows []tableRow
		for _, c := range list {
			sports := strings.Join(c.Sports, ", ")
			if matches(q, c.Name, c.Phone, c.Email, c.Location, sports) {
				rows = append(rows, row(c.Name, c.Phone, c.Email, c.Location, sports))
			}
		}
		return rows, nil
	})
}

func (h *Handler) AdminSessions() http.HandlerFunc {
	v := tableView{
		Actions: []link{
			{Href: "/admin/sessions/new", Label: "Create session"},
			{Href: "/admin/sessions/assign", Label: "Assign coaches"},
		},
		Headers: []string{"Society", "Sport", "Slot", "Plan", "Price", "Coach"},
	}
	return h.listPage("Sessions", v, func(ctx context.Context, q string) ([]tableRow, error) {
		list, err := h.client(ctx, guard.Admin).ListSessions(ctx, api.SessionFilter{})
		if err != nil {
			return nil, err
		}
		var rows []tableRow
		for _, s := range list {
			coach := "Unassigned"
			if s.AssignedCoach != nil {
				coach = s.AssignedCoach.Name
			}
			if matches(q, s.Apartment, s.Sport, s.Slot, coach) {
				rows = append(rows, row(s.Apartment, s.Sport, s.Slot, s.Plan, formatPrice(s.Price), coach))
			}
		}
		return rows, nil
	})
}

// AdminCoachSchedule lists every coach with the sessions assigned to them.
func (h *Handler) AdminCoachSchedule() http.HandlerFunc {
	v := tableView{
		Actions: []link{{Href: "/admin/sessions/assign", Label: "Assign coaches"}},
		Headers: []string{"Coach", "Phone", "Society", "Sport", "Slot", "Plan"},
	}
	return h.listPage("Coach schedule", v, func(ctx context.Context, q string) ([]tableRow, error) {
		client := h.client(ctx, guard.Admin)
		var coaches []api.Coach
		var sessions []api.Session
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			coaches, err = client.ListCoaches(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			sessions, err = client.ListSessions(gctx, api.SessionFilter{})
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		byCoach := make(map[string][]api.Session)
		for _, s := range sessions {
			if s.AssignedCoach != nil {
				byCoach[s.AssignedCoach.ID] = append(byCoach[s.AssignedCoach.ID], s)
			}
		}
		var rows []tableRow
		for _, c := range coaches {
			assigned := byCoach[c.ID]
			if len(assigned) == 0 {
				if matches(q, c.Name, c.Phone) {
					rows = append(rows, row(c.Name, c.Phone, "-", "-", "No sessions assigned", "-"))
				}
				continue
			}
			for _, s := range assigned {
				if matches(q, c.Name, c.Phone, s.Apartment, s.Sport, s.Slot) {
					rows = append(rows, row(c.Name, c.Phone, s.Apartment, s.Sport, s.Slot, s.Plan))
				}
			}
		}
		return rows, nil
	})
}

func (h *Handler) AdminBookings() http.HandlerFunc {
	v := tableView{Headers: []string{"Name", "Phone", "Society", "Sport", "Slot", "Price", "Payment", "Booked", ""}}
	return h.listPage("Bookings", v, func(ctx context.Context, q string) ([]tableRow, error) {
		list, err := h.client(ctx, guard.Admin).ListBookings(ctx, api.BookingFilter{})
		if err != nil {
			return nil, err
		}
		var rows []tableRow
		for _, b := range list {
			if matches(q, b.Name, b.Number, b.Apartment, b.Sport) {
				br := row(b.Name, b.Number, b.Apartment, b.Sport, b.Slot, formatPrice(b.Price), b.PaymentStatus, formatDate(b.CreatedAt))
				if b.ID != "" {
					br.Delete = "/admin/bookings/" + url.PathEscape(b.ID) + "/delete"
				}
				rows = append(rows, br)
			}
		}
		return rows, nil
	})
}

func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bookingID := chi.URLParam(r, "bookingID")
	if err := h.client(ctx, guard.Admin).DeleteBooking(ctx, bookingID); err != nil {
		if api.IsUnauthorized(err) || errors.Is(err, context.Canceled) {
			h.fail(w, r, adminRole, err)
			return
		}
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			h.redirectWithFlash(w, r, "/admin/bookings", "That booking was already removed.")
			return
		}
		logger.ErrorContext(ctx, "Failed to delete booking", "booking_id", bookingID, "error", err)
		h.redirectWithFlash(w, r, "/admin/bookings", "Could not delete the booking: "+api.UserMessage(err))
		return
	}
	logger.InfoContext(ctx, "Booking deleted", "booking_id", bookingID)
	h.redirectWithFlash(w, r, "/admin/bookings", "Booking deleted.")
}

func (h *Handler) AdminResidents() http.HandlerFunc {
	v := tableView{Headers: []string{"Name", "Phone", "Society"}}
	return h.listPage("Residents", v, func(ctx context.Context, q string) ([]tableRow, error) {
		list, err := h.client(ctx, guard.Admin).ListResidents(ctx)
		if err != nil {
			return nil, err
		}
		var rows []tableRow
		for _, res := range list {
			if matches(q, res.FullName, res.Phone, res.SocietyName) {
				rows = append(rows, row(res.FullName, res.Phone, res.SocietyName))
			}
		}
		return rows, nil
	})
}

func (h *Handler) AdminEnquiries() http.HandlerFunc {
	v := tableView{Headers: []string{"Type", "Name", "Society", "Phone", "Email", "Location", "Details", "Received"}}
	return h.listPage("Enquiries", v, func(ctx context.Context, q string) ([]tableRow, error) {
		list, err := h.client(ctx, guard.Admin).ListEnquiries(ctx)
		if err != nil {
			return nil, err
		}
		var rows []tableRow
		for _, e := range list {
			details := strings.Join(e.SportsSpecialized, ", ")
			if e.Type == api.EnquirySociety {
				details = strings.Join(e.Amenities, ", ")
			}
			if matches(q, e.Type, e.Name, e.SocietyName, e.Phone, e.Email, e.Location, details) {
				rows = append(rows, row(e.Type, e.Name, e.SocietyName, e.Phone, e.Email, e.Location, details, formatDate(e.CreatedAt)))
			}
		}
		return rows, nil
	})
}

func (h *Handler) AdminCustomerEnquiries() http.HandlerFunc {
	v := tableView{Headers: []string{"Name", "Phone", "Society", "Subject", "Message", "Received"}}
	return h.listPage("Resident enquiries", v, func(ctx context.Context, q string) ([]tableRow, error) {
		list, err := h.client(ctx, guard.Admin).ListNotices(ctx, api.NoticeFilter{Type: api.NoticeCustomer})
		if err != nil {
			return nil, err
		}
		var rows []tableRow
		for _, n := range list {
			if n.Type != api.NoticeCustomer {
				continue
			}
			if matches(q, n.Name, n.Phone, n.SocietyName, n.Subject, n.Message) {
				rows = append(rows, row(n.Name, n.Phone, n.SocietyName, n.Subject, n.Message, formatDate(n.CreatedAt)))
			}
		}
		return rows, nil
	})
}

func (h *Handler) AdminProspective() http.HandlerFunc {
	v := tableView{Headers: []string{"Name", "Phone", "Email", "Society", "Source", "Seen"}}
	return h.listPage("Prospective clients", v, func(ctx context.Context, q string) ([]tableRow, error) {
		list, err := h.client(ctx, guard.Admin).ListProspective(ctx)
		if err != nil {
			return nil, err
		}
		var rows []tableRow
		for _, p := range list {
			if matches(q, p.FullName, p.Phone, p.Email, p.SocietyName, p.SourceForm) {
				rows = append(rows, row(p.FullName, p.Phone, p.Email, p.SocietyName, p.SourceForm, formatDate(p.CreatedAt)))
			}
		}
		return rows, nil
	})
}

type assignView struct {
	Sessions []api.Session
	Coaches  []api.Coach
}

func (h *Handler) AssignCoachPage(w http.ResponseWriter, r *http.Request) {
	client := h.client(r.Context(), guard.Admin)
	var v assignView
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		v.Sessions, err = client.ListSessions(ctx, api.SessionFilter{})
		return err
	})
	g.Go(func() (err error) {
		v.Coaches, err = client.ListCoaches(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.fail(w, r, adminRole, err)
		return
	}
	h.render(w, r, http.StatusOK, "assign_coach", h.page(r, adminRole, "Assign coaches", v))
}

func (h *Handler) AssignCoach(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")
	coachID := strings.TrimSpace(r.PostFormValue("coachId"))
	if coachID == "" {
		h.redirectWithFlash(w, r, "/admin/sessions/assign", "Choose a coach first.")
		return
	}
	if err := h.client(ctx, guard.Admin).AssignCoach(ctx, sessionID, coachID); err != nil {
		if api.IsUnauthorized(err) {
			h.fail(w, r, adminRole, err)
			return
		}
		logger.ErrorContext(ctx, "Failed to assign coach", "session_id", sessionID, "coach_id", coachID, "error", err)
		h.redirectWithFlash(w, r, "/admin/sessions/assign", "Could not assign coach: "+api.UserMessage(err))
		return
	}
	logger.InfoContext(ctx, "Coach assigned", "session_id", sessionID, "coach_id", coachID)
	h.publish(ctx, events.CoachAssigned, events.CoachAssignedEvent{SessionID: sessionID, CoachID: coachID, AssignedAt: h.now().UTC()})
	h.redirectWithFlash(w, r, "/admin/sessions/assign", "Coach assigned.")
}

type overviewView struct {
	Days []attendance.CoachDay
}

func (h *Handler) AttendanceOverview(w http.ResponseWriter, r *http.Request) {
	svc := attendance.New(h.client(r.Context(), guard.Admin), h.events)
	svc.Now = h.now
	days, err := svc.Overview(r.Context())
	if err != nil {
		h.fail(w, r, adminRole, err)
		return
	}
	h.render(w, r, http.StatusOK, "attendance_overview", h.page(r, adminRole, "Attendance", overviewView{Days: days}))
}

func (h *Handler) addCoachFlow() *flow {
	return &flow{
		form:        wizard.AddCoach,
		role:        adminRole,
		path:        "/admin/coaches/new",
		submitLabel: "Add coach",
		submit: func(r *http.Request, v wizard.Values) (string, error) {
			ctx := r.Context()
			client := h.client(ctx, guard.Admin)
			coach := api.Coach{
				Name:     v.Get("name"),
				Email:    v.Get("email"),
				Phone:    v.Get("phone"),
				Location: v.Get("location"),
				Sports:   v.List("sports"),
				Password: v.Get("password"),
			}
			// A resubmit after a failed credential step only retries the credentials.
			createdKey := ""
			if attempt, ok := api.IdempotencyKeyFrom(ctx); ok {
				createdKey = "created:" + wizard.AddCoach.Name + ":" + attempt
			}
			if !h.remembered(ctx, createdKey) {
				created, err := client.CreateCoach(ctx, coach)
				if err != nil {
					return "", err
				}
				h.remember(ctx, createdKey, created.ID)
			}
			if err := client.RegisterCoachAuth(ctx, api.LoginRequest{Phone: coach.Phone, Password: coach.Password}); err != nil {
				return "", fmt.Errorf("coach saved but login setup failed: %w", err)
			}
			h.forget(ctx, createdKey)
			h.setFlash(ctx, "Coach "+coach.Name+" added.")
			return "/admin/coaches", nil
		},
	}
}

func (h *Handler) addSocietyFlow() *flow {
	return &flow{
		form:        wizard.AddSociety,
		role:        adminRole,
		path:        "/admin/societies/new",
		submitLabel: "Add society",
		submit: func(r *http.Request, v wizard.Values) (string, error) {
			ctx := r.Context()
			s := api.Society{Name: v.Get("name"), Area: v.Get("area"), Amenities: v.List("amenities")}
			if _, err := h.client(ctx, guard.Admin).CreateSociety(ctx, s); err != nil {
				return "", err
			}
			h.setFlash(ctx, "Society "+s.Name+" added.")
			return "/admin/societies", nil
		},
	}
}

func (h *Handler) societyOptions(r *http.Request, role guard.Role) ([]option, error) {
	ctx := r.Context()
	list, err := h.client(ctx, role).ListSocieties(ctx)
	if err != nil {
		return nil, err
	}
	opts := make([]option, 0, len(list))
	for _, s := range list {
		opts = append(opts, option{Value: s.Name, Label: s.Name})
	}
	return opts, nil
}

func (h *Handler) createSessionFlow() *flow {
	return &flow{
		form:        wizard.CreateSession,
		role:        adminRole,
		path:        "/admin/sessions/new",
		submitLabel: "Create session",
		options: func(r *http.Request) (map[string][]option, error) {
			opts, err := h.societyOptions(r, guard.Admin)
			if err != nil {
				return nil, err
			}
			return map[string][]option{"apartment": opts}, nil
		},
		submit: func(r *http.Request, v wizard.Values) (string, error) {
			ctx := r.Context()
			price, _ := strconv.ParseFloat(v.Get("price"), 64)
			months, _ := strconv.Atoi(v.Get("months"))
			s := api.Session{
				Apartment: v.Get("apartment"),
				Sport:     v.Get("sport"),
				Slot:      strings.TrimSpace(v.Get("slot")),
				Plan:      v.Get("plan"),
				Price:     price,
				Months:    months,
			}
			if _, err := h.client(ctx, guard.Admin).CreateSession(ctx, s); err != nil {
				return "", err
			}
			h.setFlash(ctx, "Session created.")
			return "/admin/sessions", nil
		},
	}
}

func (h *Handler) sendNoticeFlow() *flow {
	return &flow{
		form:        wizard.SendNotice,
		role:        adminRole,
		path:        "/admin/notices/new",
		submitLabel: "Send notice",
		options: func(r *http.Request) (map[string][]option, error) {
			opts, err := h.societyOptions(r, guard.Admin)
			if err != nil {
				return nil, err
			}
			return map[string][]option{"societyName": opts}, nil
		},
		submit: func(r *http.Request, v wizard.Values) (string, error) {
			ctx := r.Context()
			n := api.Notice{
				Type:        api.NoticeAdmin,
				SocietyName: v.Get("societyName"),
				Subject:     v.Get("subject"),
				Message:     v.Get("message"),
			}
			if _, err := h.client(ctx, guard.Admin).CreateNotice(ctx, n); err != nil {
				return "", err
			}
			h.setFlash(ctx, "Notice sent.")
			return "/admin", nil
		},
	}
}
