package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/fitkeeda-web/pkg/logger"
	"github.com/nats-io/nats.go"
)

// Publisher emits front-end activity for downstream analytics and audit.
// Publishing is best effort: callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("fitkeeda-web"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn}, nil
}

func (n *NATSPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSPublisher) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// Noop drops every event. Used when NATS is disabled.
type Noop struct{}

func (Noop) Publish(ctx context.Context, subject string, data interface{}) error {
	logger.DebugContext(ctx, "Event dropped (publisher disabled)", "subject", subject)
	return nil
}

func (Noop) Close() error { return nil }

// Event subjects
const (
	AuthLoggedIn     = "web.auth.logged_in"
	AuthLoggedOut    = "web.auth.logged_out"
	AuthTokenPurged  = "web.auth.token_purged"
	AttendanceMarked = "web.attendance.marked"
	FormSubmitted    = "web.form.submitted"
	FormSubmitFailed = "web.form.submit_failed"
	CoachAssigned    = "web.session.coach_assigned"
	BookingConfirmed = "web.booking.confirmed"
)

// Event payloads
type AuthEvent struct {
	Role   string    `json:"role"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

type AttendanceMarkedEvent struct {
	CoachID   string    `json:"coach_id"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	MarkedAt  time.Time `json:"marked_at"`
}

type FormEvent struct {
	Form  string    `json:"form"`
	Role  string    `json:"role,omitempty"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

type CoachAssignedEvent struct {
	SessionID  string    `json:"session_id"`
	CoachID    string    `json:"coach_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

type BookingConfirmedEvent struct {
	OrderID string    `json:"order_id"`
	Sport   string    `json:"sport"`
	Slot    string    `json:"slot"`
	Price   float64   `json:"price"`
	At      time.Time `json:"at"`
}
