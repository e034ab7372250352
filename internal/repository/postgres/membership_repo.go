package postgres

import (
	"context"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type membershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *membershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) Create(ctx context.Context, membership *domain.Membership) error {
	return translateError(r.db.WithContext(ctx).Create(membership).Error)
}

func (r *membershipRepository) Get(ctx context.Context, userID, companyID uuid.UUID) (*domain.Membership, error) {
	var membership domain.Membership
	err := r.db.WithContext(ctx).
		Preload("Company").
		Where("user_id = ? AND company_id = ?", userID, companyID).
		First(&membership).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &membership, nil
}

func (r *membershipRepository) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Membership, error) {
	var memberships []*domain.Membership
	err := r.db.WithContext(ctx).
		Preload("Company").
		Where("user_id = ?", userID).
		Order("created_at").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *membershipRepository) ListByCompanyID(ctx context.Context, companyID uuid.UUID) ([]*domain.Membership, error) {
	var memberships []*domain.Membership
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("company_id = ?", companyID).
		Order("created_at").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	return memberships, nil
}

func (r *membershipRepository) Delete(ctx context.Context, userID, companyID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND company_id = ?", userID, companyID).
		Delete(&domain.Membership{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CountActiveUsers counts members of the company whose user account is active.
func (r *membershipRepository) CountActiveUsers(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Membership{}).
		Joins("JOIN users ON users.id = memberships.user_id").
		Where("memberships.company_id = ? AND users.is_active = ?", companyID, true).
		Count(&count).Error
	return count, err
}

func (r *membershipRepository) CountByRole(ctx context.Context, companyID uuid.UUID, role domain.Role) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Membership{}).
		Where("company_id = ? AND role = ?", companyID, role).
		Count(&count).Error
	return count, err
}
