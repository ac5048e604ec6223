package api

import (
	"context"
	"net/url"
)

// Auth

func (c *Client) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	var out TokenResponse
	return &out, c.post(ctx, "/auth/login", req, &out)
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	return c.post(ctx, "/auth/signup", req, nil, Idempotent())
}

func (c *Client) CoachLogin(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	var out TokenResponse
	return &out, c.post(ctx, "/coach-auth/login", req, &out)
}

func (c *Client) RegisterCoachAuth(ctx context.Context, req LoginRequest) error {
	return c.post(ctx, "/coach-auth/register", req, nil, Idempotent())
}

func (c *Client) AdminLogin(ctx context.Context, req AdminLoginRequest) (*TokenResponse, error) {
	var out TokenResponse
	return &out, c.post(ctx, "/admin-auth/login", req, &out)
}

// Verify asks the backend whether token is still good at endpoint.
func (c *Client) Verify(ctx context.Context, endpoint, token string) error {
	return c.WithToken(token).get(ctx, endpoint, nil)
}

// Residents

func (c *Client) ListResidents(ctx context.Context) ([]Resident, error) {
	var out []Resident
	return out, c.get(ctx, "/residents", &out)
}

// Societies

func (c *Client) ListSocieties(ctx context.Context) ([]Society, error) {
	var out []Society
	return out, c.get(ctx, "/societies", &out)
}

func (c *Client) CreateSociety(ctx context.Context, s Society) (*Society, error) {
	var out Society
	return &out, c.post(ctx, "/societies", s, &out, Idempotent())
}

// Coaches

func (c *Client) ListCoaches(ctx context.Context) ([]Coach, error) {
	var out []Coach
	return out, c.get(ctx, "/coaches", &out)
}

func (c *Client) CreateCoach(ctx context.Context, coach Coach) (*Coach, error) {
	var out Coach
	return &out, c.post(ctx, "/coaches", coach, &out, Idempotent())
}

// Sessions

func (c *Client) ListSessions(ctx context.Context, f SessionFilter) ([]Session, error) {
	var out []Session
	return out, c.get(ctx, "/sessions", &out, Query(f))
}

func (c *Client) CreateSession(ctx context.Context, s Session) (*Session, error) {
	var out Session
	return &out, c.post(ctx, "/sessions", s, &out, Idempotent())
}

func (c *Client) AssignCoach(ctx context.Context, sessionID, coachID string) error {
	body := map[string]string{"coachId": coachID}
	return c.patch(ctx, "/sessions/"+url.PathEscape(sessionID)+"/assign-coach", body, nil)
}

// Bookings

func (c *Client) ListBookings(ctx context.Context, f BookingFilter) ([]Booking, error) {
	var out []Booking
	return out, c.get(ctx, "/bookings", &out, Query(f))
}

func (c *Client) CreateBooking(ctx context.Context, b Booking) (*Booking, error) {
	var out Booking
	return &out, c.post(ctx, "/bookings", b, &out, Idempotent())
}

func (c *Client) DeleteBooking(ctx context.Context, id string) error {
	return c.delete(ctx, "/bookings/"+url.PathEscape(id))
}

// Enquiries

func (c *Client) ListEnquiries(ctx context.Context) ([]Enquiry, error) {
	var out []Enquiry
	return out, c.get(ctx, "/enquiries", &out)
}

func (c *Client) CreateEnquiry(ctx context.Context, e Enquiry) (*Enquiry, error) {
	var out Enquiry
	return &out, c.post(ctx, "/enquiries", e, &out, Idempotent())
}

// Customer enquiries and admin notices

func (c *Client) ListNotices(ctx context.Context, f NoticeFilter) ([]Notice, error) {
	var out []Notice
	return out, c.get(ctx, "/customerenquiries", &out, Query(f))
}

func (c *Client) CreateNotice(ctx context.Context, n Notice) (*Notice, error) {
	var out Notice
	return &out, c.post(ctx, "/customerenquiries", n, &out, Idempotent())
}

// Prospective clients

func (c *Client) ListProspective(ctx context.Context) ([]ProspectiveClient, error) {
	var out []ProspectiveClient
	return out, c.get(ctx, "/prospective", &out)
}

func (c *Client) CreateProspective(ctx context.Context, p ProspectiveClient) error {
	return c.post(ctx, "/prospective", p, nil)
}

// Attendance

func (c *Client) SeedTodayAttendance(ctx context.Context, coachID string) (*SeedResult, error) {
	var out SeedResult
	return &out, c.post(ctx, "/attendance/seed/today", map[string]string{"coachId": coachID}, &out)
}

func (c *Client) TodayAttendance(ctx context.Context, coachID string) ([]AttendanceRecord, error) {
	var out []AttendanceRecord
	return out, c.get(ctx, "/attendance/today/"+url.PathEscape(coachID), &out)
}

func (c *Client) MarkAttendance(ctx context.Context, m MarkAttendance) error {
	return c.post(ctx, "/attendance/mark", m, nil)
}

// Payments

func (c *Client) CreateOrder(ctx context.Context, amount float64) (*Order, error) {
	var out Order
	return &out, c.post(ctx, "/payments/create-order", map[string]float64{"amount": amount}, &out, Idempotent())
}

func (c *Client) VerifyPayment(ctx context.Context, v PaymentVerification) (bool, error) {
	var out struct {
		Success bool `json:"success"`
	}
	if err := c.post(ctx, "/payments/verify", v, &out); err != nil {
		return false, err
	}
	return out.Success, nil
}
