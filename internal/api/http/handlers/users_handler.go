package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/api/dto"
	"github.com/spec-kit/issue-service/internal/auth"
	"github.com/spec-kit/issue-service/internal/domain"
	"github.com/spec-kit/issue-service/internal/service"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// UsersHandler exposes user management for admins.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// List handles GET /users. Profiles without an email are left out.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.users.GetAllUsers(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		if users[i].Email == "" {
			continue
		}
		items = append(items, userResponse(&users[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateRole handles PATCH /users/:id/role. Admins cannot change their
// own role or another admin's.
func (h *UsersHandler) UpdateRole(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	role, valid := domain.LookupRole(req.Role)
	if !valid {
		return apperrors.NewValidationError("unknown role", map[string]any{"role": req.Role})
	}

	ctx := c.UserContext()
	id := c.Params("id")
	if id == principal.UID() {
		return apperrors.NewForbidden("you cannot change your own role")
	}
	target, err := h.users.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if target == nil {
		return apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	if target.Role == domain.RoleAdmin {
		return apperrors.NewForbidden("admin roles cannot be changed here")
	}

	if err := h.users.UpdateUserRole(ctx, id, role); err != nil {
		return err
	}
	target.Role = role
	return c.JSON(fiber.Map{"data": userResponse(target)})
}

// Delete handles DELETE /users/:id. Only the profile is removed.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id := c.Params("id")
	if id == principal.UID() {
		return apperrors.NewForbidden("you cannot delete yourself")
	}
	if err := h.users.DeleteUser(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
