package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/civica/membership-backend/internal/middleware"
	"github.com/civica/membership-backend/internal/model"
	"github.com/civica/membership-backend/internal/response"
	"github.com/civica/membership-backend/internal/service"
	"github.com/civica/membership-backend/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService   *service.AuthService
	memberService *service.MemberService
	log           zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService, memberService *service.MemberService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		memberService: memberService,
		log:           log.With().Str("component", "auth_handler").Logger(),
	}
}

// Login godoc
// POST /api/v1/auth/login
// Validates email + password, returns a JWT carrying the role's permissions.
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	member, err := h.memberService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
			return
		}
		failFromService(c, h.log, err)
		return
	}

	token, permissions, err := h.authService.GenerateToken(member)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}

	h.log.Info().Int("member_id", member.ID).Str("role", string(member.Role)).Msg("Member logged in")

	response.Success(c, http.StatusOK, model.LoginResponse{
		Token:       token,
		Member:      *member,
		Permissions: permissions,
	})
}

// Me godoc
// GET /api/v1/auth/me
// Returns the authenticated member and the permissions of their token.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	member, err := h.memberService.GetByID(c.Request.Context(), claims.MemberID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, model.MeResponse{
		Member:      *member,
		Permissions: claims.Permissions,
	})
}
