package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/metrics"
	"github.com/dom/tenant-portal/internal/repository"
	"github.com/dom/tenant-portal/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const downloadURLExpiry = 15 * time.Minute

type VideoService struct {
	repos    *repository.Repositories
	licenses *LicenseService
	objects  storage.ObjectStore
	logger   zerolog.Logger
}

func NewVideoService(repos *repository.Repositories, licenses *LicenseService, objects storage.ObjectStore, logger zerolog.Logger) *VideoService {
	return &VideoService{
		repos:    repos,
		licenses: licenses,
		objects:  objects,
		logger:   logger.With().Str("component", "videos").Logger(),
	}
}

type UploadInput struct {
	FileName string
	Size     int64
	MimeType string
	Body     io.Reader
}

// Upload stores the bytes, then records the video under the storage quota.
// The quota is checked again inside the insert transaction; if that or the
// insert fails, the stored object is removed.
func (s *VideoService) Upload(ctx context.Context, scope domain.Scope, input UploadInput) (*domain.Video, error) {
	input.FileName = path.Base(strings.TrimSpace(input.FileName))
	switch {
	case input.FileName == "" || input.FileName == "." || input.FileName == "/":
		return nil, fmt.Errorf("%w: file name is required", domain.ErrInvalidInput)
	case input.Size <= 0:
		return nil, fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	case !strings.HasPrefix(input.MimeType, "video/"):
		return nil, fmt.Errorf("%w: %q is not a video type", domain.ErrInvalidInput, input.MimeType)
	}

	if err := s.licenses.EnsureStorageQuota(ctx, scope.CompanyID, input.Size); err != nil {
		return nil, err
	}

	now := time.Now()
	video := &domain.Video{
		ID:         uuid.New(),
		CompanyID:  scope.CompanyID,
		UploadedBy: scope.UserID,
		FileName:   input.FileName,
		FileSize:   input.Size,
		MimeType:   input.MimeType,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	video.StorageKey = storage.VideoKey(video.CompanyID, video.ID)

	if err := s.objects.Upload(ctx, video.StorageKey, input.Body, input.Size, input.MimeType); err != nil {
		return nil, err
	}

	err := s.licenses.WithStorageQuota(ctx, scope.CompanyID, input.Size, func(tx *repository.Repositories) error {
		return tx.Video.Create(ctx, video)
	})
	if err != nil {
		// The request context may already be cancelled.
		if delErr := s.objects.Delete(context.WithoutCancel(ctx), video.StorageKey); delErr != nil {
			s.logger.Error().Err(delErr).Str("storage_key", video.StorageKey).Msg("failed to remove orphaned object")
		}
		return nil, err
	}

	metrics.VideoUploadBytes.Observe(float64(video.FileSize))
	s.logger.Info().
		Str("company_id", video.CompanyID.String()).
		Str("video_id", video.ID.String()).
		Int64("size", video.FileSize).
		Msg("video uploaded")

	return video, nil
}

func (s *VideoService) List(ctx context.Context, scope domain.Scope) ([]*domain.Video, error) {
	return s.repos.Video.ListActiveByCompanyID(ctx, scope.CompanyID)
}

// Get returns a video of the scoped company; other companies' videos are
// ErrForbidden.
func (s *VideoService) Get(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.Video, error) {
	video, err := s.repos.Video.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.Owns(video.CompanyID) {
		return nil, domain.ErrForbidden
	}
	return video, nil
}

// Deactivate hides the video and releases its bytes from the storage quota.
func (s *VideoService) Deactivate(ctx context.Context, scope domain.Scope, id uuid.UUID) error {
	if err := scope.Require(domain.RoleAdmin); err != nil {
		return err
	}
	video, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if !video.IsActive {
		return nil
	}
	if err := s.repos.Video.Deactivate(ctx, video.ID); err != nil {
		return err
	}

	s.logger.Info().
		Str("company_id", video.CompanyID.String()).
		Str("video_id", video.ID.String()).
		Msg("video deactivated")
	return nil
}

func (s *VideoService) DownloadURL(ctx context.Context, scope domain.Scope, id uuid.UUID) (string, error) {
	video, err := s.Get(ctx, scope, id)
	if err != nil {
		return "", err
	}
	if !video.IsActive {
		return "", domain.ErrNotFound
	}
	url, err := s.objects.PresignedURL(ctx, video.StorageKey, downloadURLExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign download url: %w", err)
	}
	return url, nil
}
