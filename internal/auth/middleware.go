package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/oms-chat/internal/domain"
	"github.com/spec-kit/oms-chat/internal/repository"
	apperrors "github.com/spec-kit/oms-chat/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// AuthMiddleware guards the REST surface with the same bearer tokens the chat
// socket accepts. Unlike the socket, it reloads the user on every request so
// suspended accounts and role changes take effect immediately.
type AuthMiddleware struct {
	verifier *Verifier
	users    repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{verifier: NewVerifier(tokens), users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	claimed, err := m.verifier.Verify(c.UserContext(), header)
	if err != nil {
		return err
	}

	user, err := m.users.GetByID(c.UserContext(), claimed.ID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewUnauthorized("user not found")
	case err != nil:
		return apperrors.MapError(err)
	case user.Status != domain.UserStatusActive:
		return apperrors.NewUnauthorized("user inactive")
	}

	c.Locals(principalKey, &domain.Principal{ID: user.ID, Roles: user.Roles})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(*domain.Principal)
	return principal, ok && principal != nil
}
