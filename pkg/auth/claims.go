package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// IdentityHint is what the backend put in a token payload. It is read without
// a signature check and is only good for display and pre-filling forms; the
// verification endpoint is the sole authority on whether a token is valid.
type IdentityHint struct {
	ID          string `json:"id"`
	Phone       string `json:"phone"`
	FullName    string `json:"fullName"`
	SocietyName string `json:"societyName"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

var ErrMalformedToken = errors.New("malformed token")

// Decode extracts the payload of a bearer token without verifying it.
func Decode(token string) (*IdentityHint, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformedToken
	}
	hint := &IdentityHint{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, hint); err != nil {
		return nil, errors.Join(ErrMalformedToken, err)
	}
	return hint, nil
}

// Expired reports whether the hint carries an exp claim that is already past.
// Tokens without exp are never considered expired here.
func (h *IdentityHint) Expired(now time.Time) bool {
	if h == nil || h.ExpiresAt == nil {
		return false
	}
	return !now.Before(h.ExpiresAt.Time)
}
