package handlers

import (
	"fmt"
	"net/http"

	"github.com/dom/tenant-portal/internal/api/middleware"
	"github.com/dom/tenant-portal/internal/api/respond"
	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/service"
	"github.com/google/uuid"
)

type CompanyHandler struct {
	authService *service.AuthService
}

func NewCompanyHandler(authService *service.AuthService) *CompanyHandler {
	return &CompanyHandler{authService: authService}
}

type CompanyResponse struct {
	Company *domain.Company `json:"company"`
	Role    domain.Role     `json:"role"`
}

type SelectCompanyRequest struct {
	CompanyID string `json:"companyId"`
}

func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSession(r.Context())

	memberships, err := h.authService.ListCompanies(r.Context(), sess)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := make([]CompanyResponse, 0, len(memberships))
	for _, m := range memberships {
		resp = append(resp, CompanyResponse{Company: m.Company, Role: m.Role})
	}
	respond.JSON(w, r, resp)
}

func (h *CompanyHandler) Select(w http.ResponseWriter, r *http.Request) {
	sess, _ := middleware.GetSession(r.Context())

	var req SelectCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	companyID, err := uuid.Parse(req.CompanyID)
	if err != nil {
		respond.Error(w, r, fmt.Errorf("%w: invalid companyId", domain.ErrInvalidInput))
		return
	}

	selected, err := h.authService.SelectCompany(r.Context(), sess, companyID)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, r, CompanyResponse{Company: selected.Company, Role: selected.Role})
}
