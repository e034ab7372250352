package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/metrics"
	"github.com/dom/tenant-portal/internal/repository"
	"github.com/dom/tenant-portal/internal/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

type AuthService struct {
	userRepo       repository.UserRepository
	companyRepo    repository.CompanyRepository
	membershipRepo repository.MembershipRepository
	sessions       *session.Store
	logger         zerolog.Logger
}

func NewAuthService(repos *repository.Repositories, sessions *session.Store, logger zerolog.Logger) *AuthService {
	return &AuthService{
		userRepo:       repos.User,
		companyRepo:    repos.Company,
		membershipRepo: repos.Membership,
		sessions:       sessions,
		logger:         logger.With().Str("component", "auth").Logger(),
	}
}

type LoginInput struct {
	Email    string
	Password string
	// PreviousSessionID is the session the client presented, if any. It is
	// discarded; login always issues a new id.
	PreviousSessionID string
}

type AuthResult struct {
	User    *domain.User
	Session *session.Session
}

type CreateUserInput struct {
	Email      string
	Password   string
	Name       string
	SuperAdmin bool
}

// Login verifies credentials and opens an Authenticated session. Unknown
// emails, wrong passwords and inactive accounts are indistinguishable.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	user, err := s.userRepo.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Spend the same bcrypt time as a real comparison.
			_ = bcrypt.CompareHashAndPassword(getDummyHash(), []byte(input.Password))
			metrics.LoginsTotal.WithLabelValues("invalid").Inc()
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil || !user.IsActive {
		metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidCredentials
	}

	result, err := s.startSession(ctx, user, input.PreviousSessionID)
	if err != nil {
		return nil, err
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return result, nil
}

// StartSession opens a session for a user that was authenticated by other
// means, such as company registration.
func (s *AuthService) StartSession(ctx context.Context, user *domain.User, previousSessionID string) (*AuthResult, error) {
	return s.startSession(ctx, user, previousSessionID)
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User, previousSessionID string) (*AuthResult, error) {
	if previousSessionID != "" {
		if err := s.sessions.Delete(ctx, previousSessionID); err != nil {
			s.logger.Warn().Err(err).Msg("failed to discard previous session")
		}
	}

	now := time.Now()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	sess := &session.Session{UserID: user.ID, CreatedAt: now}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("session started")
	return &AuthResult{User: user, Session: sess}, nil
}

// Resolve loads the session behind a cookie value together with its user.
// Sessions of deleted or deactivated users are destroyed.
func (s *AuthService) Resolve(ctx context.Context, sessionID string) (*session.Session, *domain.User, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.userRepo.GetByID(ctx, sess.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}
	if user == nil || !user.IsActive {
		_ = s.sessions.Delete(ctx, sessionID)
		return nil, nil, session.ErrNotFound
	}

	return sess, user, nil
}

// ListCompanies returns the companies the user may select. Super-admins see
// every company, with the superadmin role.
func (s *AuthService) ListCompanies(ctx context.Context, sess *session.Session) ([]domain.CompanyMembership, error) {
	user, err := s.sessionUser(ctx, sess)
	if err != nil {
		return nil, err
	}

	if user.IsSuperAdmin {
		companies, err := s.companyRepo.List(ctx)
		if err != nil {
			return nil, err
		}
		result := make([]domain.CompanyMembership, 0, len(companies))
		for _, c := range companies {
			result = append(result, domain.CompanyMembership{Company: c, Role: domain.RoleSuperAdmin})
		}
		return result, nil
	}

	memberships, err := s.membershipRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.CompanyMembership, 0, len(memberships))
	for _, m := range memberships {
		result = append(result, domain.CompanyMembership{Company: m.Company, Role: m.Role})
	}
	return result, nil
}

// SelectCompany binds the session to companyID with the user's role there.
// Without a membership the answer is ErrForbidden, whether or not the
// company exists.
func (s *AuthService) SelectCompany(ctx context.Context, sess *session.Session, companyID uuid.UUID) (*domain.CompanyMembership, error) {
	user, err := s.sessionUser(ctx, sess)
	if err != nil {
		return nil, err
	}

	var selected domain.CompanyMembership
	if user.IsSuperAdmin {
		company, err := s.companyRepo.GetByID(ctx, companyID)
		if err != nil {
			return nil, err
		}
		selected = domain.CompanyMembership{Company: company, Role: domain.RoleSuperAdmin}
	} else {
		membership, err := s.membershipRepo.Get(ctx, user.ID, companyID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn().
					Str("user_id", user.ID.String()).
					Str("company_id", companyID.String()).
					Msg("company selection denied")
				return nil, domain.ErrForbidden
			}
			return nil, err
		}
		selected = domain.CompanyMembership{Company: membership.Company, Role: membership.Role}
	}

	sess.SelectCompany(companyID, selected.Role)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	metrics.CompanySelectionsTotal.Inc()
	return &selected, nil
}

// RequireCompanyScope resolves the scope every company-owned operation runs
// in. The role is reloaded from the database on each call: a user whose
// membership (or super-admin flag) is gone loses the selection and gets
// ErrForbidden.
func (s *AuthService) RequireCompanyScope(ctx context.Context, sess *session.Session, user *domain.User) (domain.Scope, error) {
	if sess.State() != session.StateCompanySelected {
		return domain.Scope{}, domain.ErrNoCompanySelected
	}
	if user == nil || user.ID != sess.UserID {
		return domain.Scope{}, domain.ErrForbidden
	}
	companyID := *sess.CompanyID

	role, err := s.currentRole(ctx, user, companyID)
	if err != nil {
		if !errors.Is(err, domain.ErrForbidden) {
			return domain.Scope{}, err
		}
		s.logger.Warn().
			Str("user_id", user.ID.String()).
			Str("company_id", companyID.String()).
			Msg("company access revoked, dropping selection")
		sess.ClearCompany()
		if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
			return domain.Scope{}, saveErr
		}
		return domain.Scope{}, err
	}

	if role != sess.Role {
		sess.Role = role
		if err := s.sessions.Save(ctx, sess); err != nil {
			return domain.Scope{}, err
		}
	}

	return domain.Scope{
		UserID:    user.ID,
		CompanyID: companyID,
		Role:      role,
	}, nil
}

// currentRole is the role user holds in the company right now.
func (s *AuthService) currentRole(ctx context.Context, user *domain.User, companyID uuid.UUID) (domain.Role, error) {
	if user.IsSuperAdmin {
		if _, err := s.companyRepo.GetByID(ctx, companyID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return "", domain.ErrForbidden
			}
			return "", err
		}
		return domain.RoleSuperAdmin, nil
	}

	membership, err := s.membershipRepo.Get(ctx, user.ID, companyID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrForbidden
		}
		return "", err
	}
	return membership.Role, nil
}

// Logout destroys the session. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// CurrentUser loads the user behind an authenticated session.
func (s *AuthService) CurrentUser(ctx context.Context, sess *session.Session) (*domain.User, error) {
	return s.sessionUser(ctx, sess)
}

func (s *AuthService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", domain.ErrInvalidInput)
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = email
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		IsSuperAdmin: input.SuperAdmin,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return domain.ErrInvalidCredentials
	}
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = time.Now()
	return s.userRepo.Update(ctx, user)
}

func (s *AuthService) sessionUser(ctx context.Context, sess *session.Session) (*domain.User, error) {
	if sess.State() == session.StateAnonymous {
		return nil, domain.ErrForbidden
	}
	user, err := s.userRepo.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrForbidden
	}
	return user, nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func getDummyHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.DefaultCost)
	})
	return dummyHash
}
