package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/api/dto"
	"github.com/spec-kit/issue-service/internal/auth"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/service"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// AuthHandler exposes account endpoints.
type AuthHandler struct {
	accounts *service.AccountService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.FullName) == "" || req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("fullName, email, password required", nil)
	}

	res, err := h.accounts.Register(c.UserContext(), req.Email, req.Password, req.FullName)
	if err != nil {
		return signUpFailure(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authResponse(res)})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	res, err := h.accounts.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return signInFailure(err)
	}
	return c.JSON(fiber.Map{"data": authResponse(res)})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.accounts.Logout(c.UserContext(), principal.Token); err != nil {
		return signInFailure(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// UpdateProfile handles PATCH /auth/profile.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.accounts.UpdateProfile(c.UserContext(), principal.UID(), req.FullName); err != nil {
		return signInFailure(err)
	}
	return c.JSON(fiber.Map{"data": dto.UserResponse{
		ID:       principal.UID(),
		Email:    principal.Identity.Email,
		FullName: strings.TrimSpace(req.FullName),
		Role:     principal.Role,
	}})
}

func authResponse(res *service.AccountResult) dto.AuthResponse {
	id := res.Session.Identity
	resp := dto.AuthResponse{
		Token:     res.Session.Token,
		TokenType: res.Session.TokenType,
		User: dto.UserResponse{
			ID:       id.UID,
			Email:    id.Email,
			FullName: id.DisplayName,
			Role:     res.Role,
		},
	}
	if !res.Session.ExpiresAt.IsZero() {
		exp := res.Session.ExpiresAt
		resp.ExpiresAt = &exp
	}
	if resp.User.Role == "" {
		resp.User.Role = domain.RoleEmployee
	}
	return resp
}
