package repository

import (
	"context"
	"time"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type CompanyRepository interface {
	Create(ctx context.Context, company *domain.Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Company, error)
	List(ctx context.Context) ([]*domain.Company, error)
	// LockByID loads the company row with FOR UPDATE. Only meaningful inside a transaction.
	LockByID(ctx context.Context, id uuid.UUID) (*domain.Company, error)
}

type MembershipRepository interface {
	Create(ctx context.Context, membership *domain.Membership) error
	Get(ctx context.Context, userID, companyID uuid.UUID) (*domain.Membership, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Membership, error)
	ListByCompanyID(ctx context.Context, companyID uuid.UUID) ([]*domain.Membership, error)
	Delete(ctx context.Context, userID, companyID uuid.UUID) error
	CountActiveUsers(ctx context.Context, companyID uuid.UUID) (int64, error)
	CountByRole(ctx context.Context, companyID uuid.UUID, role domain.Role) (int64, error)
}

type LicenseRepository interface {
	Create(ctx context.Context, license *domain.License) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.License, error)
	GetByToken(ctx context.Context, token string) (*domain.License, error)
	// LockByToken loads the license row with FOR UPDATE. Only meaningful inside a transaction.
	LockByToken(ctx context.Context, token string) (*domain.License, error)
	GetActiveByCompanyID(ctx context.Context, companyID uuid.UUID, now time.Time) (*domain.License, error)
	DeactivateByCompanyID(ctx context.Context, companyID uuid.UUID) (int64, error)
	Update(ctx context.Context, license *domain.License) error
	List(ctx context.Context, companyID *uuid.UUID) ([]*domain.License, error)
}

type DeviceRepository interface {
	// Upsert inserts the device or, when its uid exists, refreshes the
	// listed columns. The stored row is written back into device.
	Upsert(ctx context.Context, device *domain.Device, updateColumns []string) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Device, error)
	GetByUID(ctx context.Context, uid string) (*domain.Device, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	List(ctx context.Context, activeOnly bool) ([]*domain.Device, error)
}

type VideoRepository interface {
	Create(ctx context.Context, video *domain.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Video, error)
	ListActiveByCompanyID(ctx context.Context, companyID uuid.UUID) ([]*domain.Video, error)
	SumActiveSizeByCompanyID(ctx context.Context, companyID uuid.UUID) (int64, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Transactor runs fn against repositories bound to a single database
// transaction. Returning an error from fn rolls everything back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(repos *Repositories) error) error
}

type Repositories struct {
	User       UserRepository
	Company    CompanyRepository
	Membership MembershipRepository
	License    LicenseRepository
	Device     DeviceRepository
	Video      VideoRepository
	Tx         Transactor
}
