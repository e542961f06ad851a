package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-service/internal/api/dto"
	"github.com/spec-kit/issue-service/internal/auth"
	"github.com/spec-kit/issue-service/internal/push"
	apperrors "github.com/spec-kit/issue-service/pkg/util/errorutil"
)

// DevicesHandler accepts device push tokens. The session controller moves
// them onto the profile.
type DevicesHandler struct {
	registrar push.Registrar
}

// NewDevicesHandler constructs handler.
func NewDevicesHandler(registrar push.Registrar) *DevicesHandler {
	return &DevicesHandler{registrar: registrar}
}

// Register handles POST /devices/register.
func (h *DevicesHandler) Register(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.RegisterDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return apperrors.NewValidationError("token required", nil)
	}
	if err := h.registrar.Register(c.UserContext(), principal.UID(), token); err != nil {
		return err
	}
	return c.SendStatus(http.StatusAccepted)
}
