package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/service"
	"github.com/dom/tenant-portal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberService_AddMember(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		role    domain.Role
		input   func() service.AddMemberInput
		wantErr error
	}{
		{
			name: "admin adds new user",
			role: domain.RoleAdmin,
			input: func() service.AddMemberInput {
				return service.AddMemberInput{Email: "new@example.com", Password: "password123", Role: domain.RoleMember}
			},
		},
		{
			name: "admin attaches existing user",
			role: domain.RoleAdmin,
			input: func() service.AddMemberInput {
				existing, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
				return service.AddMemberInput{Email: existing.Email}
			},
		},
		{
			name: "member cannot add members",
			role: domain.RoleMember,
			input: func() service.AddMemberInput {
				return service.AddMemberInput{Email: "new@example.com", Password: "password123"}
			},
			wantErr: domain.ErrForbidden,
		},
		{
			name: "admin cannot grant owner",
			role: domain.RoleAdmin,
			input: func() service.AddMemberInput {
				return service.AddMemberInput{Email: "new@example.com", Password: "password123", Role: domain.RoleOwner}
			},
			wantErr: domain.ErrForbidden,
		},
		{
			name: "superadmin is not a storable role",
			role: domain.RoleOwner,
			input: func() service.AddMemberInput {
				return service.AddMemberInput{Email: "new@example.com", Password: "password123", Role: domain.RoleSuperAdmin}
			},
			wantErr: domain.ErrInvalidInput,
		},
		{
			name: "new user needs a password",
			role: domain.RoleOwner,
			input: func() service.AddMemberInput {
				return service.AddMemberInput{Email: "new@example.com"}
			},
			wantErr: domain.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testDB.Truncate(t)
			company, owner, _ := testutil.SeedCompany(t, testDB.DB, 10, 100*mb)
			scope := domain.Scope{UserID: owner.ID, CompanyID: company.ID, Role: tt.role}
			input := tt.input()

			membership, err := services.Member.AddMember(ctx, scope, input)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, company.ID, membership.CompanyID)
			assert.Equal(t, domain.NormalizeEmail(input.Email), membership.User.Email)

			members, err := services.Member.ListMembers(ctx, scope)
			require.NoError(t, err)
			assert.Len(t, members, 2)
		})
	}
}

func TestMemberService_AddMember_Duplicate(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	company, owner, _ := testutil.SeedCompany(t, testDB.DB, 10, 100*mb)
	scope := ownerScope(owner, company)

	_, err := services.Member.AddMember(ctx, scope, service.AddMemberInput{Email: owner.Email})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestMemberService_AddMember_RespectsUserQuotaUnderConcurrency(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	const maxUsers = 4
	company, owner, _ := testutil.SeedCompany(t, testDB.DB, maxUsers, 100*mb)
	scope := ownerScope(owner, company)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		existing, _ := testutil.NewUserBuilder().WithEmail(fmt.Sprintf("seat%d@example.com", i)).Build(t, testDB.DB)
		wg.Add(1)
		go func(i int, email string) {
			defer wg.Done()
			_, errs[i] = services.Member.AddMember(ctx, scope, service.AddMemberInput{Email: email})
		}(i, existing.Email)
	}
	wg.Wait()

	added := 0
	for _, err := range errs {
		if err == nil {
			added++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	}
	assert.Equal(t, maxUsers-1, added)

	usage, err := services.License.Usage(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(maxUsers), usage.ActiveUsers)
}

func TestMemberService_AddMember_NoLicense(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	company := testutil.NewCompanyBuilder().Build(t, testDB.DB)
	owner, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	testutil.AddMembership(t, testDB.DB, owner, company, domain.RoleOwner)

	_, err := services.Member.AddMember(ctx, ownerScope(owner, company), service.AddMemberInput{
		Email:    "new@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, domain.ErrNoActiveLicense)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestMemberService_RemoveMember(t *testing.T) {
	services, testDB, _ := testutil.NewTestServices(t)
	ctx := context.Background()

	t.Run("admin removes member", func(t *testing.T) {
		testDB.Truncate(t)
		company, _, _ := testutil.SeedCompany(t, testDB.DB, 10, 100*mb)
		admin, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		testutil.AddMembership(t, testDB.DB, admin, company, domain.RoleAdmin)
		member, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		testutil.AddMembership(t, testDB.DB, member, company, domain.RoleMember)

		scope := domain.Scope{UserID: admin.ID, CompanyID: company.ID, Role: domain.RoleAdmin}
		require.NoError(t, services.Member.RemoveMember(ctx, scope, member.ID))

		err := services.Member.RemoveMember(ctx, scope, member.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("admin cannot remove owner", func(t *testing.T) {
		testDB.Truncate(t)
		company, owner, _ := testutil.SeedCompany(t, testDB.DB, 10, 100*mb)
		admin, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		testutil.AddMembership(t, testDB.DB, admin, company, domain.RoleAdmin)

		scope := domain.Scope{UserID: admin.ID, CompanyID: company.ID, Role: domain.RoleAdmin}
		err := services.Member.RemoveMember(ctx, scope, owner.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("last owner stays", func(t *testing.T) {
		testDB.Truncate(t)
		company, owner, _ := testutil.SeedCompany(t, testDB.DB, 10, 100*mb)

		err := services.Member.RemoveMember(ctx, ownerScope(owner, company), owner.ID)
		assert.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("member cannot remove anyone", func(t *testing.T) {
		testDB.Truncate(t)
		company, owner, _ := testutil.SeedCompany(t, testDB.DB, 10, 100*mb)
		member, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
		testutil.AddMembership(t, testDB.DB, member, company, domain.RoleMember)

		scope := domain.Scope{UserID: member.ID, CompanyID: company.ID, Role: domain.RoleMember}
		err := services.Member.RemoveMember(ctx, scope, owner.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}
