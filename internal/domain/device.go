package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Device is a physical or browser client, tracked independently of users.
type Device struct {
	ID         uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UID        string         `json:"uid" gorm:"column:uid;type:varchar(255);uniqueIndex;not null"`
	Name       string         `json:"name"`
	DeviceInfo datatypes.JSON `json:"deviceInfo" gorm:"type:jsonb"`
	LastSeen   time.Time      `json:"lastSeen" gorm:"not null"`
	IsActive   bool           `json:"isActive" gorm:"not null;default:true"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}
