package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type MemberService struct {
	repos    *repository.Repositories
	licenses *LicenseService
	logger   zerolog.Logger
}

func NewMemberService(repos *repository.Repositories, licenses *LicenseService, logger zerolog.Logger) *MemberService {
	return &MemberService{
		repos:    repos,
		licenses: licenses,
		logger:   logger.With().Str("component", "members").Logger(),
	}
}

type AddMemberInput struct {
	Email string
	Name  string
	// Password is only used when the email does not belong to an existing user.
	Password string
	Role     domain.Role
}

// AddMember attaches a user to the scoped company, creating the account when
// the email is new. The seat check and the insert share a transaction.
func (s *MemberService) AddMember(ctx context.Context, scope domain.Scope, input AddMemberInput) (*domain.Membership, error) {
	if err := scope.Require(domain.RoleAdmin); err != nil {
		return nil, err
	}

	input.Email = domain.NormalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if input.Role == "" {
		input.Role = domain.RoleMember
	}
	if !input.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, input.Role)
	}
	if input.Role == domain.RoleOwner {
		if err := scope.Require(domain.RoleOwner); err != nil {
			return nil, err
		}
	}
	if input.Email == "" || !strings.Contains(input.Email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", domain.ErrInvalidInput)
	}

	var membership *domain.Membership
	err := s.licenses.WithUserQuota(ctx, scope.CompanyID, func(tx *repository.Repositories) error {
		user, err := tx.User.GetByEmail(ctx, input.Email)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			user, err = s.newUser(ctx, tx, input)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		}

		membership = &domain.Membership{
			ID:        uuid.New(),
			UserID:    user.ID,
			CompanyID: scope.CompanyID,
			Role:      input.Role,
			CreatedAt: time.Now(),
		}
		if err := tx.Membership.Create(ctx, membership); err != nil {
			return err
		}
		membership.User = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("company_id", scope.CompanyID.String()).
		Str("user_id", membership.UserID.String()).
		Str("role", membership.Role.String()).
		Msg("member added")

	return membership, nil
}

func (s *MemberService) ListMembers(ctx context.Context, scope domain.Scope) ([]*domain.Membership, error) {
	return s.repos.Membership.ListByCompanyID(ctx, scope.CompanyID)
}

// RemoveMember detaches a user from the scoped company. Only owners may
// remove owners, and the last owner cannot be removed.
func (s *MemberService) RemoveMember(ctx context.Context, scope domain.Scope, userID uuid.UUID) error {
	if err := scope.Require(domain.RoleAdmin); err != nil {
		return err
	}

	err := s.repos.Tx.WithinTransaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Company.LockByID(ctx, scope.CompanyID); err != nil {
			return err
		}

		membership, err := tx.Membership.Get(ctx, userID, scope.CompanyID)
		if err != nil {
			return err
		}

		if membership.Role == domain.RoleOwner {
			if err := scope.Require(domain.RoleOwner); err != nil {
				return err
			}
			owners, err := tx.Membership.CountByRole(ctx, scope.CompanyID, domain.RoleOwner)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return fmt.Errorf("%w: cannot remove the last owner", domain.ErrConflict)
			}
		}

		return tx.Membership.Delete(ctx, userID, scope.CompanyID)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("company_id", scope.CompanyID.String()).
		Str("user_id", userID.String()).
		Msg("member removed")
	return nil
}

func (s *MemberService) newUser(ctx context.Context, tx *repository.Repositories, input AddMemberInput) (*domain.User, error) {
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}
	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	name := input.Name
	if name == "" {
		name = input.Email
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        input.Email,
		PasswordHash: hash,
		Name:         name,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.User.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
