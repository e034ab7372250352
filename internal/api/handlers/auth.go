package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dom/tenant-portal/internal/api/middleware"
	"github.com/dom/tenant-portal/internal/api/respond"
	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/service"
	"github.com/dom/tenant-portal/internal/session"
	"github.com/rs/zerolog/log"
)

type AuthHandler struct {
	authService    *service.AuthService
	licenseService *service.LicenseService
	cookie         CookieConfig
}

func NewAuthHandler(authService *service.AuthService, licenseService *service.LicenseService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{authService: authService, licenseService: licenseService, cookie: cookie}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterCompanyRequest struct {
	Token       string `json:"token"`
	CompanyName string `json:"companyName"`
	CompanySlug string `json:"companySlug"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type UserResponse struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	IsSuperAdmin bool       `json:"isSuperAdmin"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

type SessionResponse struct {
	User      UserResponse    `json:"user"`
	State     session.State   `json:"state"`
	CompanyID *string         `json:"companyId,omitempty"`
	Role      domain.Role     `json:"role,omitempty"`
	Company   *domain.Company `json:"company,omitempty"`
}

func newUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:           user.ID.String(),
		Email:        user.Email,
		Name:         user.Name,
		IsSuperAdmin: user.IsSuperAdmin,
		LastLoginAt:  user.LastLoginAt,
	}
}

func newSessionResponse(user *domain.User, sess *session.Session) SessionResponse {
	resp := SessionResponse{
		User:  newUserResponse(user),
		State: sess.State(),
		Role:  sess.Role,
	}
	if sess.CompanyID != nil {
		id := sess.CompanyID.String()
		resp.CompanyID = &id
	}
	return resp
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		respond.Error(w, r, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput))
		return
	}

	result, err := h.authService.Login(r.Context(), service.LoginInput{
		Email:             req.Email,
		Password:          req.Password,
		PreviousSessionID: h.presentedSessionID(r),
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	h.cookie.set(w, result.Session.ID)
	respond.JSON(w, r, newSessionResponse(result.User, result.Session))
}

// RegisterCompany redeems a license token for a new company and logs its
// owner in with that company already selected.
func (h *AuthHandler) RegisterCompany(w http.ResponseWriter, r *http.Request) {
	var req RegisterCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	reg, err := h.licenseService.RedeemToken(r.Context(), service.RegisterCompanyInput{
		Token:         req.Token,
		CompanyName:   req.CompanyName,
		CompanySlug:   req.CompanySlug,
		OwnerEmail:    req.Email,
		OwnerPassword: req.Password,
		OwnerName:     req.Name,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	result, err := h.authService.StartSession(r.Context(), reg.Owner, h.presentedSessionID(r))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	if _, err := h.authService.SelectCompany(r.Context(), result.Session, reg.Company.ID); err != nil {
		respond.Error(w, r, err)
		return
	}

	h.cookie.set(w, result.Session.ID)

	resp := newSessionResponse(result.User, result.Session)
	resp.Company = reg.Company
	respond.Created(w, r, resp)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userOrError(w, r)
	if !ok {
		return
	}
	sess, _ := middleware.GetSession(r.Context())
	respond.JSON(w, r, newSessionResponse(user, sess))
}

// Logout always clears the cookie, even when no session exists.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id := h.presentedSessionID(r); id != "" {
		if err := h.authService.Logout(r.Context(), id); err != nil {
			log.Error().Err(err).Msg("[AuthHandler.Logout] failed to delete session")
			respond.Error(w, r, err)
			return
		}
	}
	h.cookie.clear(w)
	respond.JSON(w, r, map[string]bool{"success": true})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := userOrError(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := h.authService.ChangePassword(r.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w, r)
}

func (h *AuthHandler) presentedSessionID(r *http.Request) string {
	cookie, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
