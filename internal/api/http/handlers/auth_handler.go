package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/oms-chat/internal/api/dto"
	"github.com/spec-kit/oms-chat/internal/service"
	apperrors "github.com/spec-kit/oms-chat/pkg/util/errorutil"
)

// AuthHandler exposes token issuance.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, exp, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, string(r))
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.UserSummary{ID: user.ID, Name: user.Name, Email: user.Email, Roles: roles},
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}
