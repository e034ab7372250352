package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/metrics"
	"github.com/dom/tenant-portal/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

const maxDeviceUIDLength = 255

type DeviceService struct {
	deviceRepo repository.DeviceRepository
	logger     zerolog.Logger
}

func NewDeviceService(deviceRepo repository.DeviceRepository, logger zerolog.Logger) *DeviceService {
	return &DeviceService{
		deviceRepo: deviceRepo,
		logger:     logger.With().Str("component", "devices").Logger(),
	}
}

type RegisterDeviceInput struct {
	UID        string
	Name       string
	DeviceInfo json.RawMessage
}

// RegisterOrTouch records a device in a single upsert keyed on uid. Known
// devices get fresh info and lastSeen; their active flag is left alone.
func (s *DeviceService) RegisterOrTouch(ctx context.Context, input RegisterDeviceInput) (*domain.Device, error) {
	uid := strings.TrimSpace(input.UID)
	if uid == "" {
		return nil, fmt.Errorf("%w: device uid is required", domain.ErrInvalidInput)
	}
	if len(uid) > maxDeviceUIDLength {
		return nil, fmt.Errorf("%w: device uid is too long", domain.ErrInvalidInput)
	}

	info := datatypes.JSON("{}")
	if len(input.DeviceInfo) > 0 {
		if !json.Valid(input.DeviceInfo) {
			return nil, fmt.Errorf("%w: device info must be JSON", domain.ErrInvalidInput)
		}
		info = datatypes.JSON(input.DeviceInfo)
	}

	now := time.Now()
	device := &domain.Device{
		ID:         uuid.New(),
		UID:        uid,
		Name:       strings.TrimSpace(input.Name),
		DeviceInfo: info,
		LastSeen:   now,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	columns := []string{"device_info", "last_seen", "updated_at"}
	if device.Name != "" {
		columns = append(columns, "name")
	}
	if err := s.deviceRepo.Upsert(ctx, device, columns); err != nil {
		return nil, err
	}

	metrics.DeviceRegistrationsTotal.Inc()
	s.logger.Debug().Str("device_uid", device.UID).Msg("device seen")
	return device, nil
}

func (s *DeviceService) Deactivate(ctx context.Context, actor *domain.User, id uuid.UUID) error {
	if actor == nil || !actor.IsSuperAdmin {
		return domain.ErrForbidden
	}
	if err := s.deviceRepo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.logger.Info().
		Str("device_id", id.String()).
		Str("actor_id", actor.ID.String()).
		Msg("device deactivated")
	return nil
}

func (s *DeviceService) List(ctx context.Context, actor *domain.User, activeOnly bool) ([]*domain.Device, error) {
	if actor == nil || !actor.IsSuperAdmin {
		return nil, domain.ErrForbidden
	}
	return s.deviceRepo.List(ctx, activeOnly)
}

func (s *DeviceService) GetByUID(ctx context.Context, uid string) (*domain.Device, error) {
	return s.deviceRepo.GetByUID(ctx, uid)
}
