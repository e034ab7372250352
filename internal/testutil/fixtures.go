package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	email      string
	name       string
	password   string
	superAdmin bool
	inactive   bool
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	suffix := uuid.New().String()[:8]
	return &UserBuilder{
		email:    fmt.Sprintf("user_%s@example.com", suffix),
		name:     fmt.Sprintf("Test User %s", suffix),
		password: "testpassword123",
	}
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

func (b *UserBuilder) WithName(name string) *UserBuilder {
	b.name = name
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

func (b *UserBuilder) SuperAdmin() *UserBuilder {
	b.superAdmin = true
	return b
}

func (b *UserBuilder) Inactive() *UserBuilder {
	b.inactive = true
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	// MinCost keeps suites fast; production hashes use DefaultCost.
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        domain.NormalizeEmail(b.email),
		PasswordHash: string(hashedPassword),
		Name:         b.name,
		IsSuperAdmin: b.superAdmin,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	// The column defaults to true, so an explicit false must be written separately.
	if b.inactive {
		if err := db.Model(user).Update("is_active", false).Error; err != nil {
			t.Fatalf("failed to deactivate user: %v", err)
		}
		user.IsActive = false
	}

	return user, b.password
}

// CompanyBuilder creates test companies
type CompanyBuilder struct {
	name string
	slug string
}

func NewCompanyBuilder() *CompanyBuilder {
	suffix := uuid.New().String()[:8]
	return &CompanyBuilder{
		name: fmt.Sprintf("Company %s", suffix),
		slug: fmt.Sprintf("company-%s", suffix),
	}
}

func (b *CompanyBuilder) WithName(name string) *CompanyBuilder {
	b.name = name
	b.slug = domain.Slugify(name)
	return b
}

func (b *CompanyBuilder) Build(t *testing.T, db *gorm.DB) *domain.Company {
	t.Helper()

	company := &domain.Company{
		ID:        uuid.New(),
		Name:      b.name,
		Slug:      b.slug,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(company).Error; err != nil {
		t.Fatalf("failed to create company: %v", err)
	}
	return company
}

// AddMembership attaches user to company with role
func AddMembership(t *testing.T, db *gorm.DB, user *domain.User, company *domain.Company, role domain.Role) *domain.Membership {
	t.Helper()

	membership := &domain.Membership{
		ID:        uuid.New(),
		UserID:    user.ID,
		CompanyID: company.ID,
		Role:      role,
		CreatedAt: time.Now(),
	}
	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("failed to create membership: %v", err)
	}
	return membership
}

// LicenseBuilder creates licenses directly in the database
type LicenseBuilder struct {
	company         *domain.Company
	creator         *domain.User
	maxUsers        int
	maxStorageBytes int64
	expiresAt       time.Time
	used            bool
	active          bool
}

// NewLicenseBuilder defaults to an unused, unassigned license valid for 30 days
func NewLicenseBuilder() *LicenseBuilder {
	return &LicenseBuilder{
		maxUsers:        5,
		maxStorageBytes: 1 << 30,
		expiresAt:       time.Now().Add(30 * 24 * time.Hour),
	}
}

// ForCompany pre-assigns the license without activating it
func (b *LicenseBuilder) ForCompany(company *domain.Company) *LicenseBuilder {
	b.company = company
	return b
}

// ActiveFor assigns the license to company as its used, active license
func (b *LicenseBuilder) ActiveFor(company *domain.Company) *LicenseBuilder {
	b.company = company
	b.used = true
	b.active = true
	return b
}

func (b *LicenseBuilder) WithCreator(user *domain.User) *LicenseBuilder {
	b.creator = user
	return b
}

func (b *LicenseBuilder) WithMaxUsers(n int) *LicenseBuilder {
	b.maxUsers = n
	return b
}

func (b *LicenseBuilder) WithMaxStorageBytes(n int64) *LicenseBuilder {
	b.maxStorageBytes = n
	return b
}

func (b *LicenseBuilder) WithExpiresAt(at time.Time) *LicenseBuilder {
	b.expiresAt = at
	return b
}

func (b *LicenseBuilder) Used() *LicenseBuilder {
	b.used = true
	return b
}

func (b *LicenseBuilder) Build(t *testing.T, db *gorm.DB) *domain.License {
	t.Helper()

	if b.creator == nil {
		b.creator, _ = NewUserBuilder().SuperAdmin().Build(t, db)
	}

	token := uuid.New().String() + uuid.New().String()
	license := &domain.License{
		ID:              uuid.New(),
		Token:           token[:64],
		ExpiresAt:       b.expiresAt,
		IsActive:        b.active,
		IsUsed:          b.used,
		MaxUsers:        b.maxUsers,
		MaxStorageBytes: b.maxStorageBytes,
		CreatedBy:       b.creator.ID,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if b.company != nil {
		license.CompanyID = &b.company.ID
	}
	if b.used {
		now := time.Now()
		license.UsedAt = &now
	}

	if err := db.Create(license).Error; err != nil {
		t.Fatalf("failed to create license: %v", err)
	}
	return license
}

// SeedCompany creates a company with an active license and an owner.
func SeedCompany(t *testing.T, db *gorm.DB, maxUsers int, maxStorageBytes int64) (*domain.Company, *domain.User, string) {
	t.Helper()

	company := NewCompanyBuilder().Build(t, db)
	owner, password := NewUserBuilder().Build(t, db)
	AddMembership(t, db, owner, company, domain.RoleOwner)
	NewLicenseBuilder().
		ActiveFor(company).
		WithMaxUsers(maxUsers).
		WithMaxStorageBytes(maxStorageBytes).
		Build(t, db)
	return company, owner, password
}

// PostJSON sends body as JSON with client and returns the response
func PostJSON(t *testing.T, client *http.Client, url string, body interface{}) *http.Response {
	t.Helper()
	return DoJSON(t, client, http.MethodPost, url, body)
}

// DoJSON sends an HTTP request with a JSON body
func DoJSON(t *testing.T, client *http.Client, method, url string, body interface{}) *http.Response {
	t.Helper()

	bodyReader := bytes.NewBuffer(nil)
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, url, err)
	}
	return resp
}

// Login signs the client in and fails the test on anything but 200
func Login(t *testing.T, ts *TestServer, client *http.Client, email, password string) {
	t.Helper()

	resp := PostJSON(t, client, ts.APIURL("/auth/login"), map[string]string{
		"email":    email,
		"password": password,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed with status %d", resp.StatusCode)
	}
}

// LoginAndSelect signs the client in and selects company
func LoginAndSelect(t *testing.T, ts *TestServer, client *http.Client, email, password string, company *domain.Company) {
	t.Helper()

	Login(t, ts, client, email, password)
	resp := PostJSON(t, client, ts.APIURL("/companies/select"), map[string]string{
		"companyId": company.ID.String(),
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("company selection failed with status %d", resp.StatusCode)
	}
}

// AddVideo records an active video row without storing any bytes
func AddVideo(t *testing.T, db *gorm.DB, company *domain.Company, uploader *domain.User, size int64) *domain.Video {
	t.Helper()

	id := uuid.New()
	video := &domain.Video{
		ID:         id,
		CompanyID:  company.ID,
		UploadedBy: uploader.ID,
		FileName:   fmt.Sprintf("video_%s.mp4", id.String()[:8]),
		FileSize:   size,
		MimeType:   "video/mp4",
		StorageKey: fmt.Sprintf("companies/%s/videos/%s", company.ID, id),
		IsActive:   true,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := db.Create(video).Error; err != nil {
		t.Fatalf("failed to create video: %v", err)
	}
	return video
}
