package handlers

import (
	"net/http"
	"strings"

	"github.com/diagnosis/fitkeeda-web/services/web/internal/guard"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type Guards struct {
	Admin    *guard.Guard
	Coach    *guard.Guard
	Resident *guard.Guard
}

type RouteOptions struct {
	Guards Guards
	// LoginLimit wraps credential posts. Nil disables limiting.
	LoginLimit     func(http.Handler) http.Handler
	AllowedOrigins []string
}

func passthrough(next http.Handler) http.Handler { return next }

// Mount registers every page and endpoint on r.
func (h *Handler) Mount(r chi.Router, opts RouteOptions) {
	limit := opts.LoginLimit
	if limit == nil {
		limit = passthrough
	}
	// serve registers a flow under a router mounted at prefix.
	serve := func(r chi.Router, prefix string, f *flow) {
		p := strings.TrimPrefix(f.path, prefix)
		r.Get(p, h.serveFlow(f))
		r.Post(p, h.serveFlow(f))
	}

	r.Get("/", h.Home)
	r.Get("/enquiry/thanks", h.Thanks)
	serve(r, "", h.coachEnquiryFlow())
	serve(r, "", h.societyEnquiryFlow())

	r.Route("/admin", func(r chi.Router) {
		r.Post("/logout", h.Logout(guard.Admin))
		r.Group(func(r chi.Router) {
			r.Use(opts.Guards.Admin.Middleware)
			r.Get("/login", h.LoginPage(guard.Admin))
			r.With(limit).Post("/login", h.Login(guard.Admin))

			r.Get("/", h.AdminDashboard)
			r.Get("/societies", h.AdminSocieties())
			r.Get("/coaches", h.AdminCoaches())
			r.Get("/coaches/schedule", h.AdminCoachSchedule())
			r.Get("/sessions", h.AdminSessions())
			r.Get("/sessions/assign", h.AssignCoachPage)
			r.Post("/sessions/{sessionID}/assign", h.AssignCoach)
			r.Get("/bookings", h.AdminBookings())
			r.Post("/bookings/{bookingID}/delete", h.DeleteBooking)
			r.Get("/residents", h.AdminResidents())
			r.Get("/enquiries", h.AdminEnquiries())
			r.Get("/customer-enquiries", h.AdminCustomerEnquiries())
			r.Get("/prospective", h.AdminProspective())
			r.Get("/attendance", h.AttendanceOverview)
			serve(r, "/admin", h.addCoachFlow())
			serve(r, "/admin", h.addSocietyFlow())
			serve(r, "/admin", h.createSessionFlow())
			serve(r, "/admin", h.sendNoticeFlow())
		})
	})

	r.Route("/coach", func(r chi.Router) {
		r.Post("/logout", h.Logout(guard.Coach))
		r.Group(func(r chi.Router) {
			r.Use(opts.Guards.Coach.Middleware)
			r.Get("/login", h.LoginPage(guard.Coach))
			r.With(limit).Post("/login", h.Login(guard.Coach))

			r.Get("/", h.CoachDashboard)
			r.Get("/sessions", h.CoachSessions)
			r.Get("/attendance", h.AttendanceBoard)
			r.Post("/attendance/{sessionID}/toggle", h.ToggleAttendance)
		})
	})

	r.Route("/residents", func(r chi.Router) {
		r.Post("/logout", h.Logout(guard.Resident))
		r.With(limit).Post("/signup", h.Signup)
		r.Group(func(r chi.Router) {
			r.Use(opts.Guards.Resident.Middleware)
			r.Get("/auth-resident", h.LoginPage(guard.Resident))
			r.With(limit).Post("/auth-resident", h.Login(guard.Resident))

			r.Get("/", h.ResidentDashboard)
			r.Get("/bookings", h.ResidentBookings)
			r.Get("/plans", h.ResidentPlans)
			r.Get("/notices", h.ResidentNotices)
			serve(r, "/residents", h.bookSessionFlow())
			r.Get("/book/pay", h.PaymentPage)
			r.Post("/book/pay", h.ConfirmPayment)
			serve(r, "/residents", h.residentEnquiryFlow())
		})
	})

	r.Route("/api/coach", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(opts.Guards.Coach.APIMiddleware)
		r.Get("/attendance", h.AttendanceJSON)
		r.Post("/attendance/{sessionID}/toggle", h.ToggleAttendanceJSON)
	})
}
