package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/diagnosis/fitkeeda-web/internal/utils"
	"github.com/diagnosis/fitkeeda-web/pkg/events"
	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/api"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/guard"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/session"
	"github.com/diagnosis/fitkeeda-web/services/web/internal/wizard"
)

var residentRole = &guard.Resident

const pendingBookingKey = "pending_booking"

// pendingBooking is held server-side between order creation and payment
// verification so the amount never round-trips through the browser.
type pendingBooking struct {
	OrderID string      `json:"orderId"`
	Booking api.Booking `json:"booking"`
}

var errNoPendingBooking = errors.New("no booking is awaiting payment")

func (h *Handler) ResidentDashboard(w http.ResponseWriter, r *http.Request) {
	hint := h.hint(r.Context(), guard.Resident)
	heading := "Welcome"
	if hint.FullName != "" {
		heading = "Welcome, " + hint.FullName
	}
	v := dashboardView{
		Heading: heading,
		Links: []link{
			{Href: "/residents/plans", Label: "Sessions in my society"},
			{Href: "/residents/book", Label: "Book a session"},
			{Href: "/residents/bookings", Label: "My bookings"},
			{Href: "/residents/notices", Label: "Notices from FitKeeda"},
			{Href: "/residents/enquiry", Label: "Contact us"},
		},
	}
	h.render(w, r, http.StatusOK, "dashboard", h.page(r, residentRole, "Home", v))
}

func (h *Handler) ResidentBookings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	phone := h.hint(ctx, guard.Resident).Phone
	list, err := h.client(ctx, guard.Resident).ListBookings(ctx, api.BookingFilter{Number: phone})
	if err != nil {
		h.fail(w, r, residentRole, err)
		return
	}
	v := tableView{
		Heading: "My bookings",
		Actions: []link{{Href: "/residents/book", Label: "Book a session"}},
		Headers: []string{"Sport", "Society", "Slot", "Plan", "Price", "Payment", "Booked"},
		Empty:   "You have no bookings yet.",
	}
	for _, b := range list {
		// The backend filter is advisory; never show another resident's rows.
		if phone != "" && !utils.SamePhone(b.Number, phone) {
			continue
		}
		v.Rows = append(v.Rows, row(b.Sport, b.Apartment, b.Slot, b.Plan, formatPrice(b.Price), b.PaymentStatus, formatDate(b.CreatedAt)))
	}
	h.render(w, r, http.StatusOK, "table", h.page(r, residentRole, "My bookings", v))
}

// ResidentPlans lists the sessions and plans offered in the resident's society.
func (h *Handler) ResidentPlans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	list, err := h.societySessions(ctx)
	if err != nil {
		h.fail(w, r, residentRole, err)
		return
	}
	society := h.hint(ctx, guard.Resident).SocietyName
	v := tableView{
		Heading: "Sessions in " + society,
		Actions: []link{{Href: "/residents/book", Label: "Book a session"}},
		Headers: []string{"Sport", "Slot", "Plan", "Months", "Price", "Coach"},
		Empty:   "No sessions are offered in your society yet.",
	}
	if society == "" {
		v.Heading = "Sessions"
	}
	for _, s := range list {
		if society != "" && !strings.EqualFold(s.Apartment, society) {
			continue
		}
		coach := "To be announced"
		if s.AssignedCoach != nil {
			coach = s.AssignedCoach.Name
		}
		v.Rows = append(v.Rows, row(s.Sport, s.Slot, s.Plan, strconv.Itoa(s.Months), formatPrice(s.Price), coach))
	}
	h.render(w, r, http.StatusOK, "table", h.page(r, residentRole, "Sessions", v))
}

type noticesView struct {
	SocietyName string
	Notices     []api.Notice
}

func (h *Handler) ResidentNotices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	society := h.hint(ctx, guard.Resident).SocietyName
	list, err := h.client(ctx, guard.Resident).ListNotices(ctx, api.NoticeFilter{SocietyName: society, Type: api.NoticeAdmin})
	if err != nil {
		h.fail(w, r, residentRole, err)
		return
	}
	v := noticesView{SocietyName: society}
	for _, n := range list {
		if n.Type != api.NoticeAdmin {
			continue
		}
		if n.SocietyName == "" || strings.EqualFold(n.SocietyName, society) {
			v.Notices = append(v.Notices, n)
		}
	}
	h.render(w, r, http.StatusOK, "notices", h.page(r, residentRole, "Notices", v))
}

func (h *Handler) residentPrefill(r *http.Request) map[string]string {
	hint := h.hint(r.Context(), guard.Resident)
	return map[string]string{
		"name":      hint.FullName,
		"number":    hint.Phone,
		"phone":     hint.Phone,
		"apartment": hint.SocietyName,
	}
}

func sessionLabel(s api.Session) string {
	label := s.Sport + " · " + s.Slot
	if s.Plan != "" {
		label += " · " + s.Plan
	}
	return label + " · " + formatPrice(s.Price)
}

func (h *Handler) societySessions(ctx context.Context) ([]api.Session, error) {
	society := h.hint(ctx, guard.Resident).SocietyName
	return h.client(ctx, guard.Resident).ListSessions(ctx, api.SessionFilter{Apartment: society})
}

func findSession(list []api.Session, id string) (api.Session, bool) {
	for _, s := range list {
		if s.ID == id {
			return s, true
		}
	}
	return api.Session{}, false
}

func (h *Handler) bookSessionFlow() *flow {
	return &flow{
		form:        wizard.BookSession,
		role:        residentRole,
		path:        "/residents/book",
		submitLabel: "Proceed to payment",
		prefill:     h.residentPrefill,
		options: func(r *http.Request) (map[string][]option, error) {
			list, err := h.societySessions(r.Context())
			if err != nil {
				return nil, err
			}
			opts := make([]option, 0, len(list))
			for _, s := range list {
				opts = append(opts, option{Value: s.ID, Label: sessionLabel(s)})
			}
			return map[string][]option{"sessionId": opts}, nil
		},
		advanced: func(r *http.Request, from int, v wizard.Values) {
			if from != 0 {
				return
			}
			ctx := r.Context()
			p := api.ProspectiveClient{
				FullName:    v.Get("name"),
				Phone:       v.Get("number"),
				SocietyName: v.Get("apartment"),
				SourceForm:  "booking-form",
			}
			if err := h.client(ctx, guard.Resident).CreateProspective(ctx, p); err != nil {
				logger.WarnContext(ctx, "Failed to record prospective client", "error", err)
			}
		},
		summary: func(r *http.Request, v wizard.Values) []summaryRow {
			rows := []summaryRow{
				{Label: "Name", Value: v.Get("name")},
				{Label: "Phone", Value: v.Get("number")},
				{Label: "Society", Value: v.Get("apartment")},
			}
			list, err := h.societySessions(r.Context())
			if err != nil {
				logger.WarnContext(r.Context(), "Failed to load session for summary", "error", err)
				return rows
			}
			if s, ok := findSession(list, v.Get("sessionId")); ok {
				rows = append(rows,
					summaryRow{Label: "Sport", Value: s.Sport},
					summaryRow{Label: "Slot", Value: s.Slot},
					summaryRow{Label: "Plan", Value: s.Plan},
					summaryRow{Label: "Amount", Value: formatPrice(s.Price)},
				)
			}
			return rows
		},
		submit: func(r *http.Request, v wizard.Values) (string, error) {
			ctx := r.Context()
			list, err := h.societySessions(ctx)
			if err != nil {
				return "", err
			}
			s, ok := findSession(list, v.Get("sessionId"))
			if !ok {
				return "", fmt.Errorf("session %q is no longer offered", v.Get("sessionId"))
			}
			order, err := h.client(ctx, guard.Resident).CreateOrder(ctx, s.Price)
			if err != nil {
				return "", err
			}
			pending := pendingBooking{
				OrderID: order.ID,
				Booking: api.Booking{
					ResidentID: h.hint(ctx, guard.Resident).ID,
					Apartment:  v.Get("apartment"),
					Name:       v.Get("name"),
					Number:     v.Get("number"),
					Sport:      s.Sport,
					Plan:       s.Plan,
					Price:      s.Price,
					Months:     s.Months,
					Slot:       s.Slot,
				},
			}
			if err := h.savePending(ctx, pending); err != nil {
				return "", err
			}
			return "/residents/book/pay", nil
		},
	}
}

func (h *Handler) savePending(ctx context.Context, p pendingBooking) error {
	sid, ok := session.IDFrom(ctx)
	if !ok {
		return session.ErrNoSession
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return h.store.Set(ctx, sid, pendingBookingKey, raw)
}

func (h *Handler) loadPending(ctx context.Context) (*pendingBooking, error) {
	sid, ok := session.IDFrom(ctx)
	if !ok {
		return nil, errNoPendingBooking
	}
	raw, err := h.store.Get(ctx, sid, pendingBookingKey)
	if errors.Is(err, session.ErrNotFound) {
		return nil, errNoPendingBooking
	}
	if err != nil {
		return nil, err
	}
	var p pendingBooking
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode pending booking: %w", err)
	}
	return &p, nil
}

type paymentView struct {
	Booking api.Booking
	OrderID string
	Action  string
}

func (h *Handler) PaymentPage(w http.ResponseWriter, r *http.Request) {
	p, err := h.loadPending(r.Context())
	if errors.Is(err, errNoPendingBooking) {
		h.redirectWithFlash(w, r, "/residents/book", "Choose a session to book first.")
		return
	}
	if err != nil {
		h.fail(w, r, residentRole, err)
		return
	}
	v := paymentView{Booking: p.Booking, OrderID: p.OrderID, Action: "/residents/book/pay"}
	h.render(w, r, http.StatusOK, "payment", h.page(r, residentRole, "Payment", v))
}

// ConfirmPayment verifies the gateway callback and records the booking.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.loadPending(ctx)
	if errors.Is(err, errNoPendingBooking) {
		h.redirectWithFlash(w, r, "/residents/bookings", "There is no payment waiting to be confirmed.")
		return
	}
	if err != nil {
		h.fail(w, r, residentRole, err)
		return
	}

	sid, _ := session.IDFrom(ctx)
	release, acquired, err := h.store.Acquire(ctx, sid, "submit:payment", h.submitLock)
	if err != nil {
		h.fail(w, r, residentRole, err)
		return
	}
	if !acquired {
		h.paymentFailed(w, r, p, http.StatusConflict, wizard.ErrSubmitInFlight.Error())
		return
	}
	defer release()

	verification := api.PaymentVerification{
		OrderID:   strings.TrimSpace(r.PostFormValue("order_id")),
		PaymentID: strings.TrimSpace(r.PostFormValue("payment_id")),
		Signature: strings.TrimSpace(r.PostFormValue("signature")),
	}
	if verification.OrderID != p.OrderID || verification.PaymentID == "" || verification.Signature == "" {
		h.paymentFailed(w, r, p, http.StatusUnprocessableEntity, "Payment details are incomplete. Please try again.")
		return
	}

	client := h.client(ctx, guard.Resident)
	ok, err := client.VerifyPayment(ctx, verification)
	if err != nil {
		if api.IsUnauthorized(err) || errors.Is(err, context.Canceled) {
			h.fail(w, r, residentRole, err)
			return
		}
		logger.ErrorContext(ctx, "Payment verification failed", "order_id", p.OrderID, "error", err)
		h.paymentFailed(w, r, p, statusFor(err), api.UserMessage(err))
		return
	}
	if !ok {
		logger.WarnContext(ctx, "Payment signature rejected", "order_id", p.OrderID)
		h.paymentFailed(w, r, p, http.StatusUnprocessableEntity, "Payment could not be verified.")
		return
	}

	booking := p.Booking
	booking.PaymentStatus = "success"
	// A retry after a lost response must not create a second booking.
	if _, err := client.CreateBooking(api.WithIdempotencyKey(ctx, p.OrderID), booking); err != nil {
		if api.IsUnauthorized(err) || errors.Is(err, context.Canceled) {
			h.fail(w, r, residentRole, err)
			return
		}
		// Paid but not recorded: keep the pending booking so a retry can finish it.
		logger.ErrorContext(ctx, "Booking not recorded after payment", "order_id", p.OrderID, "error", err)
		h.paymentFailed(w, r, p, statusFor(err), "Your payment went through but the booking was not saved. Please retry; you will not be charged again.")
		return
	}

	_ = h.store.Delete(ctx, sid, pendingBookingKey)
	logger.InfoContext(ctx, "Booking confirmed", "order_id", p.OrderID, "sport", booking.Sport)
	h.publish(ctx, events.BookingConfirmed, events.BookingConfirmedEvent{
		OrderID: p.OrderID,
		Sport:   booking.Sport,
		Slot:    booking.Slot,
		Price:   booking.Price,
		At:      h.now().UTC(),
	})
	v := doneView{
		Heading: "Booking confirmed",
		Message: fmt.Sprintf("You are booked for %s at %s.", booking.Sport, booking.Slot),
		Next:    link{Href: "/residents/bookings", Label: "See my bookings"},
	}
	h.render(w, r, http.StatusOK, "done", h.page(r, residentRole, "Booking confirmed", v))
}

func (h *Handler) paymentFailed(w http.ResponseWriter, r *http.Request, p *pendingBooking, status int, msg string) {
	v := paymentView{Booking: p.Booking, OrderID: p.OrderID, Action: "/residents/book/pay"}
	page := h.page(r, residentRole, "Payment", v)
	page.Error = msg
	h.render(w, r, status, "payment", page)
}

func (h *Handler) residentEnquiryFlow() *flow {
	return &flow{
		form:        wizard.ResidentEnquiry,
		role:        residentRole,
		path:        "/residents/enquiry",
		submitLabel: "Send",
		prefill:     h.residentPrefill,
		submit: func(r *http.Request, v wizard.Values) (string, error) {
			ctx := r.Context()
			n := api.Notice{
				Type:        api.NoticeCustomer,
				Name:        v.Get("name"),
				Phone:       v.Get("phone"),
				Subject:     v.Get("subject"),
				Message:     v.Get("message"),
				SocietyName: h.hint(ctx, guard.Resident).SocietyName,
			}
			if _, err := h.client(ctx, guard.Resident).CreateNotice(ctx, n); err != nil {
				return "", err
			}
			h.setFlash(ctx, "Thanks, we will get back to you soon.")
			return "/residents", nil
		},
	}
}
