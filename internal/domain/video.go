package domain

import (
	"time"

	"github.com/google/uuid"
)

type Video struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CompanyID  uuid.UUID `json:"companyId" gorm:"type:uuid;not null;uniqueIndex:idx_videos_company_file"`
	UploadedBy uuid.UUID `json:"uploadedBy" gorm:"type:uuid;not null;index"`
	FileName   string    `json:"fileName" gorm:"not null;uniqueIndex:idx_videos_company_file"`
	FileSize   int64     `json:"fileSize" gorm:"not null"`
	MimeType   string    `json:"mimeType" gorm:"not null"`
	StorageKey string    `json:"-" gorm:"not null"`
	IsActive   bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Company  *Company `json:"-" gorm:"foreignKey:CompanyID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Uploader *User    `json:"-" gorm:"foreignKey:UploadedBy;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}
