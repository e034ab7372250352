package handlers

import (
	"net/http"
	"time"

	"github.com/dom/tenant-portal/internal/api/respond"
	"github.com/dom/tenant-portal/internal/domain"
	"github.com/dom/tenant-portal/internal/service"
)

type MemberHandler struct {
	memberService *service.MemberService
}

func NewMemberHandler(memberService *service.MemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

type AddMemberRequest struct {
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

type MemberResponse struct {
	UserID    string      `json:"userId"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	IsActive  bool        `json:"isActive"`
	CreatedAt time.Time   `json:"createdAt"`
}

func newMemberResponse(m *domain.Membership) MemberResponse {
	resp := MemberResponse{
		UserID:    m.UserID.String(),
		Role:      m.Role,
		CreatedAt: m.CreatedAt,
	}
	if m.User != nil {
		resp.Email = m.User.Email
		resp.Name = m.User.Name
		resp.IsActive = m.User.IsActive
	}
	return resp
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrError(w, r)
	if !ok {
		return
	}

	memberships, err := h.memberService.ListMembers(r.Context(), scope)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	resp := make([]MemberResponse, 0, len(memberships))
	for _, m := range memberships {
		resp = append(resp, newMemberResponse(m))
	}
	respond.JSON(w, r, resp)
}

func (h *MemberHandler) Add(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrError(w, r)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	membership, err := h.memberService.AddMember(r.Context(), scope, service.AddMemberInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.Created(w, r, newMemberResponse(membership))
}

func (h *MemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrError(w, r)
	if !ok {
		return
	}
	userID, err := uuidParam(r, "userID")
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	if err := h.memberService.RemoveMember(r.Context(), scope, userID); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.NoContent(w, r)
}
