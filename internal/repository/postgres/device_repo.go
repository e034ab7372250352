package postgres

import (
	"context"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type deviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *deviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) Upsert(ctx context.Context, device *domain.Device, updateColumns []string) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).
		Create(device).Error
	if err != nil {
		return translateError(err)
	}
	// Reload so callers see the stored row, not the values they proposed.
	var stored domain.Device
	if err := r.db.WithContext(ctx).First(&stored, "uid = ?", device.UID).Error; err != nil {
		return translateError(err)
	}
	*device = stored
	return nil
}

func (r *deviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	var device domain.Device
	if err := r.db.WithContext(ctx).First(&device, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &device, nil
}

func (r *deviceRepository) GetByUID(ctx context.Context, uid string) (*domain.Device, error) {
	var device domain.Device
	if err := r.db.WithContext(ctx).First(&device, "uid = ?", uid).Error; err != nil {
		return nil, translateError(err)
	}
	return &device, nil
}

func (r *deviceRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&domain.Device{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *deviceRepository) List(ctx context.Context, activeOnly bool) ([]*domain.Device, error) {
	var devices []*domain.Device
	query := r.db.WithContext(ctx).Order("last_seen DESC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}
