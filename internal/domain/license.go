package domain

import (
	"time"

	"github.com/google/uuid"
)

// License grants a company seat and storage quotas. A token is redeemed
// exactly once; an expired license is inert whatever IsActive says.
type License struct {
	ID              uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Token           string     `json:"token" gorm:"type:varchar(64);uniqueIndex;not null"`
	CompanyID       *uuid.UUID `json:"companyId" gorm:"type:uuid;index;uniqueIndex:idx_licenses_company_active,where:is_active = true"`
	ExpiresAt       time.Time  `json:"expiresAt" gorm:"not null"`
	IsActive        bool       `json:"isActive" gorm:"not null;default:false"`
	IsUsed          bool       `json:"isUsed" gorm:"not null;default:false"`
	UsedAt          *time.Time `json:"usedAt"`
	MaxUsers        int        `json:"maxUsers" gorm:"not null"`
	MaxStorageBytes int64      `json:"maxStorageBytes" gorm:"not null"`
	CreatedBy       uuid.UUID  `json:"createdBy" gorm:"type:uuid;not null"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`

	Company *Company `json:"-" gorm:"foreignKey:CompanyID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	Creator *User    `json:"-" gorm:"foreignKey:CreatedBy;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (l *License) IsExpired(now time.Time) bool {
	return l.ExpiresAt.Before(now)
}

// IsEffective reports whether the license currently grants quota.
func (l *License) IsEffective(now time.Time) bool {
	return l.IsActive && !l.IsExpired(now)
}

// QuotaUsage summarises a company's consumption against its active license.
type QuotaUsage struct {
	License         *License `json:"license"`
	ActiveUsers     int64    `json:"activeUsers"`
	MaxUsers        int      `json:"maxUsers"`
	UsedBytes       int64    `json:"usedBytes"`
	MaxStorageBytes int64    `json:"maxStorageBytes"`
}
