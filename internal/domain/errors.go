package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every service. All of these are recoverable at
// the request boundary.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyUsed        = errors.New("license token already used")
	ErrExpired            = errors.New("license expired")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrNoCompanySelected  = errors.New("no company selected")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
)

// ErrNoActiveLicense denies quota checks for companies without a usable license.
var ErrNoActiveLicense = fmt.Errorf("%w: company has no active license", ErrQuotaExceeded)
