package postgres

import (
	"context"

	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewConnection(databaseURL string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates every table, including foreign keys and the
// partial unique index that allows one active license per company.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Company{},
		&domain.Membership{},
		&domain.License{},
		&domain.Device{},
		&domain.Video{},
	)
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		User:       NewUserRepository(db),
		Company:    NewCompanyRepository(db),
		Membership: NewMembershipRepository(db),
		License:    NewLicenseRepository(db),
		Device:     NewDeviceRepository(db),
		Video:      NewVideoRepository(db),
		Tx:         &transactor{db: db},
	}
}

type transactor struct {
	db *gorm.DB
}

func (t *transactor) WithinTransaction(ctx context.Context, fn func(repos *repository.Repositories) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
