package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/metrics"
	"github.com/dom/tenant-portal/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	quotaUsers   = "users"
	quotaStorage = "storage"

	minPasswordLength = 8
)

type LicenseService struct {
	repos  *repository.Repositories
	logger zerolog.Logger
}

func NewLicenseService(repos *repository.Repositories, logger zerolog.Logger) *LicenseService {
	return &LicenseService{
		repos:  repos,
		logger: logger.With().Str("component", "license").Logger(),
	}
}

type IssueLicenseInput struct {
	CompanyID       *uuid.UUID
	MaxUsers        int
	MaxStorageBytes int64
	ExpiresAt       time.Time
}

type RegisterCompanyInput struct {
	Token         string
	CompanyName   string
	CompanySlug   string
	OwnerEmail    string
	OwnerPassword string
	OwnerName     string
}

type Registration struct {
	Company *domain.Company
	Owner   *domain.User
	License *domain.License
}

// IssueLicense creates an unused license. Only super-admins may issue licenses.
// A license issued for a company can only be activated by that company.
func (s *LicenseService) IssueLicense(ctx context.Context, actor *domain.User, input IssueLicenseInput) (*domain.License, error) {
	if actor == nil || !actor.IsSuperAdmin {
		return nil, domain.ErrForbidden
	}
	if input.MaxUsers < 1 {
		return nil, fmt.Errorf("%w: maxUsers must be at least 1", domain.ErrInvalidInput)
	}
	if input.MaxStorageBytes < 1 {
		return nil, fmt.Errorf("%w: maxStorageBytes must be at least 1", domain.ErrInvalidInput)
	}
	if !input.ExpiresAt.After(time.Now()) {
		return nil, fmt.Errorf("%w: expiresAt must be in the future", domain.ErrInvalidInput)
	}
	if input.CompanyID != nil {
		if _, err := s.repos.Company.GetByID(ctx, *input.CompanyID); err != nil {
			return nil, err
		}
	}

	token, err := generateLicenseToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	license := &domain.License{
		ID:              uuid.New(),
		Token:           token,
		CompanyID:       input.CompanyID,
		ExpiresAt:       input.ExpiresAt,
		MaxUsers:        input.MaxUsers,
		MaxStorageBytes: input.MaxStorageBytes,
		CreatedBy:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repos.License.Create(ctx, license); err != nil {
		return nil, err
	}

	metrics.LicenseEventsTotal.WithLabelValues("issued").Inc()
	s.logger.Info().
		Str("license_id", license.ID.String()).
		Str("created_by", actor.ID.String()).
		Int("max_users", license.MaxUsers).
		Int64("max_storage_bytes", license.MaxStorageBytes).
		Time("expires_at", license.ExpiresAt).
		Msg("license issued")

	return license, nil
}

// RedeemToken registers a new company with its owner and consumes the
// license token. Every write happens in one transaction; the license row is
// locked first so concurrent redemptions of one token serialize and all but
// the first fail with ErrAlreadyUsed.
func (s *LicenseService) RedeemToken(ctx context.Context, input RegisterCompanyInput) (*Registration, error) {
	input.Token = strings.TrimSpace(input.Token)
	input.CompanyName = strings.TrimSpace(input.CompanyName)
	input.OwnerEmail = domain.NormalizeEmail(input.OwnerEmail)
	input.OwnerName = strings.TrimSpace(input.OwnerName)

	slug := domain.Slugify(input.CompanySlug)
	if slug == "" {
		slug = domain.Slugify(input.CompanyName)
	}

	switch {
	case input.Token == "":
		return nil, fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	case input.CompanyName == "" || slug == "":
		return nil, fmt.Errorf("%w: company name is required", domain.ErrInvalidInput)
	case input.OwnerEmail == "":
		return nil, fmt.Errorf("%w: owner email is required", domain.ErrInvalidInput)
	case len(input.OwnerPassword) < minPasswordLength:
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	passwordHash, err := hashPassword(input.OwnerPassword)
	if err != nil {
		return nil, err
	}
	if input.OwnerName == "" {
		input.OwnerName = input.OwnerEmail
	}

	var reg Registration
	err = s.repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		license, err := tx.License.LockByToken(ctx, input.Token)
		if err != nil {
			return err
		}

		now := time.Now()
		if err := checkRedeemable(license, now); err != nil {
			return err
		}
		if license.CompanyID != nil {
			return fmt.Errorf("%w: license is reserved for an existing company", domain.ErrForbidden)
		}

		company := &domain.Company{
			ID:        uuid.New(),
			Name:      input.CompanyName,
			Slug:      slug,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Company.Create(ctx, company); err != nil {
			return err
		}

		owner := &domain.User{
			ID:           uuid.New(),
			Email:        input.OwnerEmail,
			PasswordHash: passwordHash,
			Name:         input.OwnerName,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.User.Create(ctx, owner); err != nil {
			return err
		}

		if err := tx.Membership.Create(ctx, &domain.Membership{
			ID:        uuid.New(),
			UserID:    owner.ID,
			CompanyID: company.ID,
			Role:      domain.RoleOwner,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		markRedeemed(license, company.ID, now)
		if err := tx.License.Update(ctx, license); err != nil {
			return err
		}

		reg = Registration{Company: company, Owner: owner, License: license}
		return nil
	})
	if err != nil {
		metrics.LicenseEventsTotal.WithLabelValues("rejected").Inc()
		s.logger.Warn().Err(err).Str("company_slug", slug).Msg("license redemption failed")
		return nil, err
	}

	metrics.LicenseEventsTotal.WithLabelValues("redeemed").Inc()
	s.logger.Info().
		Str("license_id", reg.License.ID.String()).
		Str("company_id", reg.Company.ID.String()).
		Str("owner_id", reg.Owner.ID.String()).
		Msg("license redeemed")

	return &reg, nil
}

// ActivateLicense consumes a replacement token for an existing company. The
// previous active license is deactivated in the same transaction so the
// company never has two active licenses.
func (s *LicenseService) ActivateLicense(ctx context.Context, scope domain.Scope, token string) (*domain.License, error) {
	if err := scope.Require(domain.RoleOwner); err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}

	var activated *domain.License
	var replaced int64
	err := s.repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Company.LockByID(ctx, scope.CompanyID); err != nil {
			return err
		}

		license, err := tx.License.LockByToken(ctx, token)
		if err != nil {
			return err
		}

		now := time.Now()
		if err := checkRedeemable(license, now); err != nil {
			return err
		}
		if license.CompanyID != nil && *license.CompanyID != scope.CompanyID {
			return fmt.Errorf("%w: license is reserved for another company", domain.ErrForbidden)
		}

		replaced, err = tx.License.DeactivateByCompanyID(ctx, scope.CompanyID)
		if err != nil {
			return err
		}

		markRedeemed(license, scope.CompanyID, now)
		if err := tx.License.Update(ctx, license); err != nil {
			return err
		}

		activated = license
		return nil
	})
	if err != nil {
		metrics.LicenseEventsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	metrics.LicenseEventsTotal.WithLabelValues("activated").Inc()
	s.logger.Info().
		Str("license_id", activated.ID.String()).
		Str("company_id", scope.CompanyID.String()).
		Int64("replaced", replaced).
		Msg("license activated")

	return activated, nil
}

// ActiveLicense returns the company's active, unexpired license.
func (s *LicenseService) ActiveLicense(ctx context.Context, companyID uuid.UUID) (*domain.License, error) {
	return s.repos.License.GetActiveByCompanyID(ctx, companyID, time.Now())
}

// GetForScope returns a license owned by the scoped company.
func (s *LicenseService) GetForScope(ctx context.Context, scope domain.Scope, id uuid.UUID) (*domain.License, error) {
	license, err := s.repos.License.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if license.CompanyID == nil || !scope.Owns(*license.CompanyID) {
		return nil, domain.ErrForbidden
	}
	return license, nil
}

func (s *LicenseService) ListLicenses(ctx context.Context, actor *domain.User, companyID *uuid.UUID) ([]*domain.License, error) {
	if actor == nil || !actor.IsSuperAdmin {
		return nil, domain.ErrForbidden
	}
	return s.repos.License.List(ctx, companyID)
}

// CheckUserQuota reports whether the company may gain another active member.
// Companies without an effective license are always denied.
func (s *LicenseService) CheckUserQuota(ctx context.Context, companyID uuid.UUID) (bool, error) {
	return allowed(ensureUserQuota(ctx, s.repos, companyID))
}

// CheckStorageQuota reports whether incomingBytes more of active video fit
// in the company's storage quota.
func (s *LicenseService) CheckStorageQuota(ctx context.Context, companyID uuid.UUID, incomingBytes int64) (bool, error) {
	return allowed(s.EnsureStorageQuota(ctx, companyID, incomingBytes))
}

// EnsureStorageQuota is CheckStorageQuota returning the denial reason as an error.
func (s *LicenseService) EnsureStorageQuota(ctx context.Context, companyID uuid.UUID, incomingBytes int64) error {
	if incomingBytes < 0 {
		return fmt.Errorf("%w: negative size", domain.ErrInvalidInput)
	}
	err := ensureStorageQuota(ctx, s.repos, companyID, incomingBytes)
	if errors.Is(err, domain.ErrQuotaExceeded) {
		s.deny(quotaStorage, companyID, err)
	}
	return err
}

// WithUserQuota locks the company, verifies a seat is free and runs fn in
// the same transaction, so concurrent additions cannot overshoot maxUsers.
func (s *LicenseService) WithUserQuota(ctx context.Context, companyID uuid.UUID, fn func(tx *repository.Repositories) error) error {
	return s.repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Company.LockByID(ctx, companyID); err != nil {
			return err
		}
		if err := ensureUserQuota(ctx, tx, companyID); err != nil {
			if errors.Is(err, domain.ErrQuotaExceeded) {
				s.deny(quotaUsers, companyID, err)
			}
			return err
		}
		return fn(tx)
	})
}

// WithStorageQuota locks the company, verifies incomingBytes fit and runs fn
// in the same transaction.
func (s *LicenseService) WithStorageQuota(ctx context.Context, companyID uuid.UUID, incomingBytes int64, fn func(tx *repository.Repositories) error) error {
	if incomingBytes < 0 {
		return fmt.Errorf("%w: negative size", domain.ErrInvalidInput)
	}
	return s.repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Company.LockByID(ctx, companyID); err != nil {
			return err
		}
		if err := ensureStorageQuota(ctx, tx, companyID, incomingBytes); err != nil {
			if errors.Is(err, domain.ErrQuotaExceeded) {
				s.deny(quotaStorage, companyID, err)
			}
			return err
		}
		return fn(tx)
	})
}

// Usage reports consumption against the active license. License and the
// maxima are zero when the company has no effective license.
func (s *LicenseService) Usage(ctx context.Context, companyID uuid.UUID) (*domain.QuotaUsage, error) {
	usage := &domain.QuotaUsage{}

	license, err := effectiveLicense(ctx, s.repos, companyID)
	switch {
	case err == nil:
		usage.License = license
		usage.MaxUsers = license.MaxUsers
		usage.MaxStorageBytes = license.MaxStorageBytes
	case !errors.Is(err, domain.ErrNoActiveLicense):
		return nil, err
	}

	if usage.ActiveUsers, err = s.repos.Membership.CountActiveUsers(ctx, companyID); err != nil {
		return nil, err
	}
	if usage.UsedBytes, err = s.repos.Video.SumActiveSizeByCompanyID(ctx, companyID); err != nil {
		return nil, err
	}
	return usage, nil
}

func (s *LicenseService) deny(quota string, companyID uuid.UUID, reason error) {
	metrics.QuotaDenialsTotal.WithLabelValues(quota).Inc()
	s.logger.Info().
		Str("quota", quota).
		Str("company_id", companyID.String()).
		Err(reason).
		Msg("quota denied")
}

func effectiveLicense(ctx context.Context, repos *repository.Repositories, companyID uuid.UUID) (*domain.License, error) {
	now := time.Now()
	license, err := repos.License.GetActiveByCompanyID(ctx, companyID, now)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoActiveLicense
	}
	if err != nil {
		return nil, err
	}
	if !license.IsEffective(now) {
		return nil, domain.ErrNoActiveLicense
	}
	return license, nil
}

func ensureUserQuota(ctx context.Context, repos *repository.Repositories, companyID uuid.UUID) error {
	license, err := effectiveLicense(ctx, repos, companyID)
	if err != nil {
		return err
	}
	count, err := repos.Membership.CountActiveUsers(ctx, companyID)
	if err != nil {
		return err
	}
	if count >= int64(license.MaxUsers) {
		return fmt.Errorf("%w: %d of %d users", domain.ErrQuotaExceeded, count, license.MaxUsers)
	}
	return nil
}

func ensureStorageQuota(ctx context.Context, repos *repository.Repositories, companyID uuid.UUID, incomingBytes int64) error {
	license, err := effectiveLicense(ctx, repos, companyID)
	if err != nil {
		return err
	}
	used, err := repos.Video.SumActiveSizeByCompanyID(ctx, companyID)
	if err != nil {
		return err
	}
	if used+incomingBytes > license.MaxStorageBytes {
		return fmt.Errorf("%w: %d + %d exceeds %d bytes", domain.ErrQuotaExceeded, used, incomingBytes, license.MaxStorageBytes)
	}
	return nil
}

// allowed turns a quota error into the boolean form, keeping real failures as errors.
func allowed(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrQuotaExceeded) {
		return false, nil
	}
	return false, err
}

func checkRedeemable(license *domain.License, now time.Time) error {
	if license.IsUsed {
		return domain.ErrAlreadyUsed
	}
	if license.IsExpired(now) {
		return domain.ErrExpired
	}
	return nil
}

func markRedeemed(license *domain.License, companyID uuid.UUID, now time.Time) {
	license.CompanyID = &companyID
	license.IsUsed = true
	license.UsedAt = &now
	license.IsActive = true
	license.UpdatedAt = now
}

func generateLicenseToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate license token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
