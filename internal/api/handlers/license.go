package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dom/tenant-portal/internal/api/respond"
	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/service"
	"github.com/google/uuid"
)

type LicenseHandler struct {
	licenseService *service.LicenseService
}

func NewLicenseHandler(licenseService *service.LicenseService) *LicenseHandler {
	return &LicenseHandler{licenseService: licenseService}
}

type ActivateLicenseRequest struct {
	Token string `json:"token"`
}

type IssueLicenseRequest struct {
	CompanyID       *string   `json:"companyId"`
	MaxUsers        int       `json:"maxUsers"`
	MaxStorageBytes int64     `json:"maxStorageBytes"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// Current returns the scoped company's quota usage and active license.
func (h *LicenseHandler) Current(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrError(w, r)
	if !ok {
		return
	}

	usage, err := h.licenseService.Usage(r.Context(), scope.CompanyID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, usage)
}

func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrError(w, r)
	if !ok {
		return
	}

	var req ActivateLicenseRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	license, err := h.licenseService.ActivateLicense(r.Context(), scope, req.Token)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, license)
}

func (h *LicenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrError(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	license, err := h.licenseService.GetForScope(r.Context(), scope, id)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, license)
}

func (h *LicenseHandler) Issue(w http.ResponseWriter, r *http.Request) {
	user, ok := userOrError(w, r)
	if !ok {
		return
	}

	var req IssueLicenseRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	input := service.IssueLicenseInput{
		MaxUsers:        req.MaxUsers,
		MaxStorageBytes: req.MaxStorageBytes,
		ExpiresAt:       req.ExpiresAt,
	}
	if req.CompanyID != nil && *req.CompanyID != "" {
		companyID, err := uuid.Parse(*req.CompanyID)
		if err != nil {
			respond.Error(w, r, fmt.Errorf("%w: invalid companyId", domain.ErrInvalidInput))
			return
		}
		input.CompanyID = &companyID
	}

	license, err := h.licenseService.IssueLicense(r.Context(), user, input)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, r, license)
}

// List accepts an optional ?companyId= filter.
func (h *LicenseHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := userOrError(w, r)
	if !ok {
		return
	}

	var filter *uuid.UUID
	if raw := r.URL.Query().Get("companyId"); raw != "" {
		companyID, err := uuid.Parse(raw)
		if err != nil {
			respond.Error(w, r, fmt.Errorf("%w: invalid companyId", domain.ErrInvalidInput))
			return
		}
		filter = &companyID
	}

	licenses, err := h.licenseService.ListLicenses(r.Context(), user, filter)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, licenses)
}
