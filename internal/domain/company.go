package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Company struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name      string    `json:"name" gorm:"not null"`
	Slug      string    `json:"slug" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Membership binds a user to a company with a role inside that company.
type Membership struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID    uuid.UUID `json:"userId" gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_company"`
	CompanyID uuid.UUID `json:"companyId" gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_company;index"`
	Role      Role      `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	CreatedAt time.Time `json:"createdAt"`

	User    *User    `json:"user,omitempty" gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Company *Company `json:"company,omitempty" gorm:"foreignKey:CompanyID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// CompanyMembership is a company as seen by one user.
type CompanyMembership struct {
	Company *Company
	Role    Role
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a company name into a url-safe slug.
func Slugify(name string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
