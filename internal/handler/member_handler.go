package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/civica/membership-backend/internal/middleware"
	"github.com/civica/membership-backend/internal/model"
	"github.com/civica/membership-backend/internal/response"
	"github.com/civica/membership-backend/internal/service"
	"github.com/civica/membership-backend/internal/validator"
)

// MemberHandler handles member directory management.
type MemberHandler struct {
	memberService *service.MemberService
	log           zerolog.Logger
}

// NewMemberHandler creates a new MemberHandler.
func NewMemberHandler(memberService *service.MemberService, log zerolog.Logger) *MemberHandler {
	return &MemberHandler{
		memberService: memberService,
		log:           log.With().Str("component", "member_handler").Logger(),
	}
}

// ListMembers godoc
// GET /api/v1/members
func (h *MemberHandler) ListMembers(c *gin.Context) {
	members, err := h.memberService.List(c.Request.Context())
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"members": members})
}

// GetMember godoc
// GET /api/v1/members/:id
func (h *MemberHandler) GetMember(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	member, err := h.memberService.GetByID(c.Request.Context(), id)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"member": member})
}

// CreateMember godoc
// POST /api/v1/members
// Granting the ADMIN account role additionally requires admins:write.
func (h *MemberHandler) CreateMember(c *gin.Context) {
	var req model.CreateMemberRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if !canGrant(c, req.Role) {
		response.Fail(c, http.StatusForbidden, response.ErrPermissionDenied)
		return
	}

	member, err := h.memberService.Create(c.Request.Context(), req)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"member": member})
}

// UpdateMember godoc
// PUT /api/v1/members/:id
func (h *MemberHandler) UpdateMember(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateMemberRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if !canGrant(c, req.Role) {
		response.Fail(c, http.StatusForbidden, response.ErrPermissionDenied)
		return
	}

	member, err := h.memberService.Update(c.Request.Context(), id, req)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"member": member})
}

// canGrant reports whether the caller may hand out role.
func canGrant(c *gin.Context, role model.MandateRole) bool {
	if role != model.RoleAdmin {
		return true
	}
	claims := middleware.GetClaims(c)
	return claims != nil && claims.HasPermission(model.PermissionAdminsWrite)
}
