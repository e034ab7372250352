package service

import (
	"github.com/dom/tenant-portal/internal/repository"
	"github.com/dom/tenant-portal/internal/session"
	"github.com/dom/tenant-portal/internal/storage"
	"github.com/rs/zerolog"
)

type Services struct {
	Auth    *AuthService
	License *LicenseService
	Member  *MemberService
	Video   *VideoService
	Device  *DeviceService
}

func NewServices(repos *repository.Repositories, sessions *session.Store, objects storage.ObjectStore, logger zerolog.Logger) *Services {
	licenses := NewLicenseService(repos, logger)
	return &Services{
		Auth:    NewAuthService(repos, sessions, logger),
		License: licenses,
		Member:  NewMemberService(repos, licenses, logger),
		Video:   NewVideoService(repos, licenses, objects, logger),
		Device:  NewDeviceService(repos.Device, logger),
	}
}
