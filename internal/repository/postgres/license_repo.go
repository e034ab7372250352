package postgres

import (
	"context"
	"time"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type licenseRepository struct {
	db *gorm.DB
}

func NewLicenseRepository(db *gorm.DB) *licenseRepository {
	return &licenseRepository{db: db}
}

func (r *licenseRepository) Create(ctx context.Context, license *domain.License) error {
	return translateError(r.db.WithContext(ctx).Create(license).Error)
}

func (r *licenseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.License, error) {
	var license domain.License
	if err := r.db.WithContext(ctx).First(&license, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &license, nil
}

func (r *licenseRepository) GetByToken(ctx context.Context, token string) (*domain.License, error) {
	var license domain.License
	if err := r.db.WithContext(ctx).First(&license, "token = ?", token).Error; err != nil {
		return nil, translateError(err)
	}
	return &license, nil
}

func (r *licenseRepository) LockByToken(ctx context.Context, token string) (*domain.License, error) {
	var license domain.License
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&license, "token = ?", token).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &license, nil
}

// GetActiveByCompanyID returns the company's active license unless it has expired.
func (r *licenseRepository) GetActiveByCompanyID(ctx context.Context, companyID uuid.UUID, now time.Time) (*domain.License, error) {
	var license domain.License
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND is_active = ? AND expires_at > ?", companyID, true, now).
		First(&license).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &license, nil
}

func (r *licenseRepository) DeactivateByCompanyID(ctx context.Context, companyID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.License{}).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

func (r *licenseRepository) Update(ctx context.Context, license *domain.License) error {
	return translateError(r.db.WithContext(ctx).Save(license).Error)
}

func (r *licenseRepository) List(ctx context.Context, companyID *uuid.UUID) ([]*domain.License, error) {
	var licenses []*domain.License
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if companyID != nil {
		query = query.Where("company_id = ?", *companyID)
	}
	if err := query.Find(&licenses).Error; err != nil {
		return nil, err
	}
	return licenses, nil
}
