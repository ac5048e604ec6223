package api

import "time"

type LoginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type SignupRequest struct {
	FullName    string `json:"fullName"`
	Phone       string `json:"phone"`
	SocietyName string `json:"societyName"`
	Password    string `json:"password"`
}

type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Message     string `json:"message,omitempty"`
}

type Society struct {
	ID        string   `json:"_id,omitempty"`
	Name      string   `json:"name"`
	Area      string   `json:"area"`
	Amenities []string `json:"amenities,omitempty"`
}

type Coach struct {
	ID       string   `json:"_id,omitempty"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Location string   `json:"location"`
	Password string   `json:"password,omitempty"`
	Sessions []string `json:"sessions,omitempty"`
	Sports   []string `json:"sports,omitempty"`
}

type CoachRef struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Session struct {
	ID            string    `json:"_id,omitempty"`
	Apartment     string    `json:"apartment"`
	Sport         string    `json:"sport"`
	Slot          string    `json:"slot"`
	Plan          string    `json:"plan,omitempty"`
	Price         float64   `json:"price,omitempty"`
	Months        int       `json:"months,omitempty"`
	AssignedCoach *CoachRef `json:"assignedCoach,omitempty"`
}

type SessionFilter struct {
	Apartment string `url:"apartment,omitempty"`
	Sport     string `url:"sport,omitempty"`
}

type Booking struct {
	ID            string    `json:"_id,omitempty"`
	ResidentID    string    `json:"residentId,omitempty"`
	Apartment     string    `json:"apartment"`
	Name          string    `json:"name"`
	Number        string    `json:"number"`
	Sport         string    `json:"sport,omitempty"`
	Plan          string    `json:"plan,omitempty"`
	Price         float64   `json:"price"`
	Months        int       `json:"months,omitempty"`
	Slot          string    `json:"slot,omitempty"`
	PaymentStatus string    `json:"paymentStatus,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitempty"`
}

type BookingFilter struct {
	Number string `url:"number,omitempty"`
}

type Resident struct {
	ID          string `json:"_id,omitempty"`
	FullName    string `json:"fullName"`
	SocietyName string `json:"societyName"`
	Phone       string `json:"phone"`
}

// Enquiry covers both coach and society enquiries; Type tells them apart.
type Enquiry struct {
	ID                string    `json:"_id,omitempty"`
	Type              string    `json:"type"`
	Name              string    `json:"name,omitempty"`
	SocietyName       string    `json:"societyName,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	Email             string    `json:"email,omitempty"`
	Location          string    `json:"location,omitempty"`
	SportsSpecialized []string  `json:"sportsSpecialized,omitempty"`
	Amenities         []string  `json:"amenities,omitempty"`
	CreatedAt         time.Time `json:"createdAt,omitempty"`
}

const (
	EnquiryCoach   = "coach"
	EnquirySociety = "society"
)

// Notice is either a resident's enquiry (type customer) or an admin notice
// (type admin); the backend stores both in one collection.
type Notice struct {
	ID          string    `json:"_id,omitempty"`
	Type        string    `json:"type"`
	Name        string    `json:"name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Message     string    `json:"message"`
	SocietyName string    `json:"societyName,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

const (
	NoticeCustomer = "customer"
	NoticeAdmin    = "admin"
)

type NoticeFilter struct {
	SocietyName string `url:"societyName,omitempty"`
	Type        string `url:"type,omitempty"`
}

type ProspectiveClient struct {
	ID           string         `json:"_id,omitempty"`
	FullName     string         `json:"fullName,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	Email        string         `json:"email,omitempty"`
	SocietyName  string         `json:"societyName,omitempty"`
	SourceForm   string         `json:"sourceForm,omitempty"`
	ExtraDetails map[string]any `json:"extraDetails,omitempty"`
	CreatedAt    time.Time      `json:"createdAt,omitempty"`
}

const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

type AttendanceRecord struct {
	SessionID string     `json:"sessionId"`
	CoachID   string     `json:"coachId"`
	Status    string     `json:"status"`
	Date      time.Time  `json:"date"`
	MarkedAt  *time.Time `json:"markedAt,omitempty"`
	Session   *Session   `json:"session,omitempty"`
}

type MarkAttendance struct {
	CoachID   string `json:"coachId"`
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	Date      string `json:"date,omitempty"`
}

type SeedResult struct {
	Success     bool `json:"success"`
	SeededCount int  `json:"seededCount"`
}

type Order struct {
	ID       string  `json:"id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

type PaymentVerification struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}
