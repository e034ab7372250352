package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Scope is the (user, company, role) triple resolved from a session that
// has selected a company. Company-owned resources are only reachable through it.
type Scope struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Role      Role
}

// Require fails with ErrForbidden unless the scope's role grants min.
func (s Scope) Require(min Role) error {
	if !s.Role.AtLeast(min) {
		return fmt.Errorf("%w: requires %s role", ErrForbidden, min)
	}
	return nil
}

// Owns reports whether a row belonging to companyID is visible in this scope.
func (s Scope) Owns(companyID uuid.UUID) bool {
	return s.CompanyID == companyID
}
