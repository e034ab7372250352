package postgres

import (
	"context"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type companyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) *companyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Create(ctx context.Context, company *domain.Company) error {
	return translateError(r.db.WithContext(ctx).Create(company).Error)
}

func (r *companyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	var company domain.Company
	if err := r.db.WithContext(ctx).First(&company, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &company, nil
}

func (r *companyRepository) GetBySlug(ctx context.Context, slug string) (*domain.Company, error) {
	var company domain.Company
	if err := r.db.WithContext(ctx).First(&company, "slug = ?", slug).Error; err != nil {
		return nil, translateError(err)
	}
	return &company, nil
}

func (r *companyRepository) List(ctx context.Context) ([]*domain.Company, error) {
	var companies []*domain.Company
	err := r.db.WithContext(ctx).Order("name").Find(&companies).Error
	if err != nil {
		return nil, err
	}
	return companies, nil
}

func (r *companyRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.Company, error) {
	var company domain.Company
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&company, "id = ?", id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &company, nil
}
