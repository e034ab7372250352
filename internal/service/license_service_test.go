package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/service"
	"github.com/dom/tenant-portal/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = int64(1 << 20)

func ownerScope(owner *domain.User, company *domain.Company) domain.Scope {
	return domain.Scope{UserID: owner.ID, CompanyID: company.ID, Role: domain.RoleOwner}
}

func TestLicenseService_IssueLicense(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	future := time.Now().Add(24 * time.Hour)

	tests := []struct {
		name    string
		actor   func() *domain.User
		input   func() service.IssueLicenseInput
		wantErr error
	}{
		{
			name: "super-admin issues unassigned license",
			actor: func() *domain.User {
				u, _ := testutil.NewUserBuilder().SuperAdmin().Build(t, testDB.DB)
				return u
			},
			input: func() service.IssueLicenseInput {
				return service.IssueLicenseInput{MaxUsers: 5, MaxStorageBytes: 100 * mb, ExpiresAt: future}
			},
		},
		{
			name: "super-admin pre-assigns license to company",
			actor: func() *domain.User {
				u, _ := testutil.NewUserBuilder().SuperAdmin().Build(t, testDB.DB)
				return u
			},
			input: func() service.IssueLicenseInput {
				company := testutil.NewCompanyBuilder().Build(t, testDB.DB)
				return service.IssueLicenseInput{CompanyID: &company.ID, MaxUsers: 5, MaxStorageBytes: 100 * mb, ExpiresAt: future}
			},
		},
		{
			name: "regular user is forbidden",
			actor: func() *domain.User {
				u, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
				return u
			},
			input: func() service.IssueLicenseInput {
				return service.IssueLicenseInput{MaxUsers: 5, MaxStorageBytes: 100 * mb, ExpiresAt: future}
			},
			wantErr: domain.ErrForbidden,
		},
		{
			name: "zero seats rejected",
			actor: func() *domain.User {
				u, _ := testutil.NewUserBuilder().SuperAdmin().Build(t, testDB.DB)
				return u
			},
			input: func() service.IssueLicenseInput {
				return service.IssueLicenseInput{MaxUsers: 0, MaxStorageBytes: 100 * mb, ExpiresAt: future}
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "past expiry rejected",
			actor: func() *domain.User {
				u, _ := testutil.NewUserBuilder().SuperAdmin().Build(t, testDB.DB)
				return u
			},
			input: func() service.IssueLicenseInput {
				return service.IssueLicenseInput{MaxUsers: 5, MaxStorageBytes: 100 * mb, ExpiresAt: time.Now().Add(-time.Hour)}
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "unknown company",
			actor: func() *domain.User {
				u, _ := testutil.NewUserBuilder().SuperAdmin().Build(t, testDB.DB)
				return u
			},
			input: func() service.IssueLicenseInput {
				id := uuid.New()
				return service.IssueLicenseInput{CompanyID: &id, MaxUsers: 5, MaxStorageBytes: 100 * mb, ExpiresAt: future}
			},
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testDB.Truncate(t)

			actor := tt.actor()
			input := tt.input()

			license, err := services.License.IssueLicense(ctx, actor, input)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Len(t, license.Token, 64)
			assert.False(t, license.IsUsed)
			assert.False(t, license.IsActive)
			assert.Equal(t, actor.ID, license.CreatedBy)
			assert.Equal(t, input.CompanyID, license.CompanyID)
		})
	}
}

func TestLicenseService_RedeemToken(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	validInput := func(token string) service.RegisterCompanyInput {
		suffix := uuid.New().String()[:8]
		return service.RegisterCompanyInput{
			Token:         token,
			CompanyName:   "Acme " + suffix,
			OwnerEmail:    fmt.Sprintf("Owner_%s@Example.com", suffix),
			OwnerPassword: "password123",
			OwnerName:     "Owner",
		}
	}

	tests := []struct {
		name    string
		setup   func() service.RegisterCompanyInput
		wantErr error
	}{
		{
			name: "fresh token registers company",
			setup: func() service.RegisterCompanyInput {
				return validInput(testutil.NewLicenseBuilder().Build(t, testDB.DB).Token)
			},
		},
		{
			name: "unknown token",
			setup: func() service.RegisterCompanyInput {
				return validInput("does-not-exist")
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "used token",
			setup: func() service.RegisterCompanyInput {
				return validInput(testutil.NewLicenseBuilder().Used().Build(t, testDB.DB).Token)
			},
			wantErr: domain.ErrAlreadyUsed,
		},
		{
			name: "expired token",
			setup: func() service.RegisterCompanyInput {
				license := testutil.NewLicenseBuilder().WithExpiresAt(time.Now().Add(-time.Minute)).Build(t, testDB.DB)
				return validInput(license.Token)
			},
			wantErr: domain.ErrExpired,
		},
		{
			name: "token reserved for an existing company",
			setup: func() service.RegisterCompanyInput {
				company := testutil.NewCompanyBuilder().Build(t, testDB.DB)
				return validInput(testutil.NewLicenseBuilder().ForCompany(company).Build(t, testDB.DB).Token)
			},
			wantErr: domain.ErrForbidden,
		},
		{
			name: "owner email already registered",
			setup: func() service.RegisterCompanyInput {
				existing, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
				input := validInput(testutil.NewLicenseBuilder().Build(t, testDB.DB).Token)
				input.OwnerEmail = existing.Email
				return input
			},
			wantErr: domain.ErrConflict,
		},
		{
			name: "short password",
			setup: func() service.RegisterCompanyInput {
				input := validInput(testutil.NewLicenseBuilder().Build(t, testDB.DB).Token)
				input.OwnerPassword = "short"
				return input
			},
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testDB.Truncate(t)

			input := tt.setup()
			reg, err := services.License.RedeemToken(ctx, input)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				var companies int64
				testDB.DB.Model(&domain.Company{}).Count(&companies)
				if tt.wantErr != domain.ErrForbidden {
					assert.Zero(t, companies, "failed redemption must not leave a company behind")
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, domain.Slugify(input.CompanyName), reg.Company.Slug)
			assert.Equal(t, domain.NormalizeEmail(input.OwnerEmail), reg.Owner.Email)
			assert.True(t, reg.License.IsUsed)
			assert.True(t, reg.License.IsActive)
			require.NotNil(t, reg.License.UsedAt)
			require.NotNil(t, reg.License.CompanyID)
			assert.Equal(t, reg.Company.ID, *reg.License.CompanyID)

			membership, err := testutil.NewTestRepos(testDB).Membership.Get(ctx, reg.Owner.ID, reg.Company.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.RoleOwner, membership.Role)
		})
	}
}

func TestLicenseService_RedeemToken_DuplicateSlugRollsBack(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	testutil.NewCompanyBuilder().WithName("Acme Corp").Build(t, testDB.DB)
	license := testutil.NewLicenseBuilder().Build(t, testDB.DB)

	_, err := services.License.RedeemToken(ctx, service.RegisterCompanyInput{
		Token:         license.Token,
		CompanyName:   "Acme Corp",
		OwnerEmail:    "owner@acme.test",
		OwnerPassword: "password123",
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	repos := testutil.NewTestRepos(testDB)
	stored, err := repos.License.GetByToken(ctx, license.Token)
	require.NoError(t, err)
	assert.False(t, stored.IsUsed, "token must stay redeemable after a rolled back registration")

	_, err = repos.User.GetByEmail(ctx, "owner@acme.test")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLicenseService_RedeemToken_Concurrent(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	license := testutil.NewLicenseBuilder().Build(t, testDB.DB)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = services.License.RedeemToken(ctx, service.RegisterCompanyInput{
				Token:         license.Token,
				CompanyName:   fmt.Sprintf("Racer %d", i),
				OwnerEmail:    fmt.Sprintf("racer%d@example.com", i),
				OwnerPassword: "password123",
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrAlreadyUsed)
	}
	assert.Equal(t, 1, successes, "exactly one redemption may succeed")

	var companies int64
	require.NoError(t, testDB.DB.Model(&domain.Company{}).Count(&companies).Error)
	assert.Equal(t, int64(1), companies)
}

func TestLicenseService_ActivateLicense(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	t.Run("replacement leaves exactly one active license", func(t *testing.T) {
		testDB.Truncate(t)
		company, owner, _ := testutil.SeedCompany(t, testDB.DB, 5, 100*mb)
		replacement := testutil.NewLicenseBuilder().WithMaxUsers(50).Build(t, testDB.DB)

		activated, err := services.License.ActivateLicense(ctx, ownerScope(owner, company), replacement.Token)
		require.NoError(t, err)
		assert.True(t, activated.IsActive)
		assert.True(t, activated.IsUsed)

		var active int64
		require.NoError(t, testDB.DB.Model(&domain.License{}).
			Where("company_id = ? AND is_active = ?", company.ID, true).
			Count(&active).Error)
		assert.Equal(t, int64(1), active)

		current, err := services.License.ActiveLicense(ctx, company.ID)
		require.NoError(t, err)
		assert.Equal(t, replacement.ID, current.ID)
		assert.Equal(t, 50, current.MaxUsers)
	})

	t.Run("license pre-assigned to this company", func(t *testing.T) {
		testDB.Truncate(t)
		company, owner, _ := testutil.SeedCompany(t, testDB.DB, 5, 100*mb)
		reserved := testutil.NewLicenseBuilder().ForCompany(company).Build(t, testDB.DB)

		_, err := services.License.ActivateLicense(ctx, ownerScope(owner, company), reserved.Token)
		require.NoError(t, err)
	})

	t.Run("license pre-assigned to another company", func(t *testing.T) {
		testDB.Truncate(t)
		company, owner, _ := testutil.SeedCompany(t, testDB.DB, 5, 100*mb)
		other := testutil.NewCompanyBuilder().Build(t, testDB.DB)
		reserved := testutil.NewLicenseBuilder().ForCompany(other).Build(t, testDB.DB)

		_, err := services.License.ActivateLicense(ctx, ownerScope(owner, company), reserved.Token)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("admin cannot activate", func(t *testing.T) {
		testDB.Truncate(t)
		company, owner, _ := testutil.SeedCompany(t, testDB.DB, 5, 100*mb)
		replacement := testutil.NewLicenseBuilder().Build(t, testDB.DB)

		scope := ownerScope(owner, company)
		scope.Role = domain.RoleAdmin
		_, err := services.License.ActivateLicense(ctx, scope, replacement.Token)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("used token keeps the current license", func(t *testing.T) {
		testDB.Truncate(t)
		company, owner, _ := testutil.SeedCompany(t, testDB.DB, 5, 100*mb)
		before, err := services.License.ActiveLicense(ctx, company.ID)
		require.NoError(t, err)

		used := testutil.NewLicenseBuilder().Used().Build(t, testDB.DB)
		_, err = services.License.ActivateLicense(ctx, ownerScope(owner, company), used.Token)
		assert.ErrorIs(t, err, domain.ErrAlreadyUsed)

		after, err := services.License.ActiveLicense(ctx, company.ID)
		require.NoError(t, err)
		assert.Equal(t, before.ID, after.ID)
	})
}

func TestLicenseService_ListLicenses(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	admin, _ := testutil.NewUserBuilder().SuperAdmin().Build(t, testDB.DB)
	user, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	company := testutil.NewCompanyBuilder().Build(t, testDB.DB)
	mine := testutil.NewLicenseBuilder().ForCompany(company).Build(t, testDB.DB)
	other := testutil.NewLicenseBuilder().Build(t, testDB.DB)

	all, err := services.License.ListLicenses(ctx, admin, nil)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(all))
	for _, l := range all {
		ids = append(ids, l.ID)
	}
	assert.Contains(t, ids, mine.ID)
	assert.Contains(t, ids, other.ID)

	filtered, err := services.License.ListLicenses(ctx, admin, &company.ID)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, mine.ID, filtered[0].ID)

	_, err = services.License.ListLicenses(ctx, user, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestLicenseService_CheckUserQuota(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	t.Run("seats available until maxUsers", func(t *testing.T) {
		testDB.Truncate(t)
		company, _, _ := testutil.SeedCompany(t, testDB.DB, 2, 100*mb)

		ok, err := services.License.CheckUserQuota(ctx, company.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		member, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		testutil.AddMembership(t, testDB.DB, member, company, domain.RoleMember)

		ok, err = services.License.CheckUserQuota(ctx, company.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("inactive users do not hold seats", func(t *testing.T) {
		testDB.Truncate(t)
		company, _, _ := testutil.SeedCompany(t, testDB.DB, 2, 100*mb)
		inactive, _ := testutil.NewUserBuilder().Inactive().Build(t, testDB.DB)
		testutil.AddMembership(t, testDB.DB, inactive, company, domain.RoleMember)

		ok, err := services.License.CheckUserQuota(ctx, company.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no license fails closed", func(t *testing.T) {
		testDB.Truncate(t)
		company := testutil.NewCompanyBuilder().Build(t, testDB.DB)

		ok, err := services.License.CheckUserQuota(ctx, company.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("expired license fails closed", func(t *testing.T) {
		testDB.Truncate(t)
		company := testutil.NewCompanyBuilder().Build(t, testDB.DB)
		testutil.NewLicenseBuilder().ActiveFor(company).WithExpiresAt(time.Now().Add(-time.Hour)).Build(t, testDB.DB)

		ok, err := services.License.CheckUserQuota(ctx, company.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLicenseService_CheckStorageQuota(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	testDB.Truncate(t)
	company, owner, _ := testutil.SeedCompany(t, testDB.DB, 5, 500*mb)
	testutil.AddVideo(t, testDB.DB, company, owner, 300*mb)

	tests := []struct {
		name     string
		incoming int64
		want     bool
	}{
		{name: "fits", incoming: 100 * mb, want: true},
		{name: "fills exactly", incoming: 200 * mb, want: true},
		{name: "one byte over", incoming: 200*mb + 1, want: false},
		{name: "larger than the whole quota", incoming: 600 * mb, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := services.License.CheckStorageQuota(ctx, company.ID, tt.incoming)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	t.Run("ensure reports quota exceeded", func(t *testing.T) {
		err := services.License.EnsureStorageQuota(ctx, company.ID, 600*mb)
		assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	})
}

func TestLicenseService_Usage(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	testDB.Truncate(t)
	company, owner, _ := testutil.SeedCompany(t, testDB.DB, 10, 500*mb)
	testutil.AddVideo(t, testDB.DB, company, owner, 40*mb)
	testutil.AddVideo(t, testDB.DB, company, owner, 60*mb)

	usage, err := services.License.Usage(ctx, company.ID)
	require.NoError(t, err)
	require.NotNil(t, usage.License)
	assert.Equal(t, int64(1), usage.ActiveUsers)
	assert.Equal(t, 10, usage.MaxUsers)
	assert.Equal(t, 100*mb, usage.UsedBytes)
	assert.Equal(t, 500*mb, usage.MaxStorageBytes)

	unlicensed := testutil.NewCompanyBuilder().Build(t, testDB.DB)
	usage, err = services.License.Usage(ctx, unlicensed.ID)
	require.NoError(t, err)
	assert.Nil(t, usage.License)
	assert.Zero(t, usage.MaxUsers)

	lapsed := testutil.NewCompanyBuilder().Build(t, testDB.DB)
	testutil.NewLicenseBuilder().ActiveFor(lapsed).WithExpiresAt(time.Now().Add(-time.Minute)).Build(t, testDB.DB)
	usage, err = services.License.Usage(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Nil(t, usage.License, "expired licenses grant no quota")
	assert.Zero(t, usage.MaxStorageBytes)
}
