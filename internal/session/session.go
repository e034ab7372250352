// Package session keeps server-side login state in Redis. Clients only ever
// hold the opaque session id, carried in an httpOnly cookie.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/google/uuid"
)

// State is the position of a session in Anonymous -> Authenticated -> CompanySelected.
type State string

const (
	StateAnonymous       State = "anonymous"
	StateAuthenticated   State = "authenticated"
	StateCompanySelected State = "company_selected"
)

type Session struct {
	ID        string      `json:"-"`
	UserID    uuid.UUID   `json:"userId"`
	CompanyID *uuid.UUID  `json:"companyId,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (s *Session) State() State {
	switch {
	case s == nil || s.UserID == uuid.Nil:
		return StateAnonymous
	case s.CompanyID == nil:
		return StateAuthenticated
	default:
		return StateCompanySelected
	}
}

// SelectCompany binds the session to a company until it is selected again
// or the binding is revoked.
func (s *Session) SelectCompany(companyID uuid.UUID, role domain.Role) {
	s.CompanyID = &companyID
	s.Role = role
}

// ClearCompany drops the selection, returning the session to Authenticated.
func (s *Session) ClearCompany() {
	s.CompanyID = nil
	s.Role = ""
}

// NewID returns 32 random bytes encoded for use in a cookie.
func NewID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
