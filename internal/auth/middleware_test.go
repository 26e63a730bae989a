package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/oms-chat/internal/domain"
	apperrors "github.com/spec-kit/oms-chat/pkg/util/errorutil"
)

type stubUsers map[string]*domain.User

func (s stubUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (s stubUsers) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, pgx.ErrNoRows
}

func newTestApp(t *testing.T, users stubUsers, handlers ...fiber.Handler) (*fiber.App, *TokenManager) {
	t.Helper()
	tm := NewTokenManager("secret", 5)
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.SendStatus(fe.Code)
			}
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	mw := NewAuthMiddleware(tm, users)
	chain := append([]fiber.Handler{mw.Handle}, handlers...)
	chain = append(chain, func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return c.SendStatus(http.StatusTeapot)
		}
		return c.SendString(p.ID)
	})
	app.Get("/me", chain...)
	return app, tm
}

func doGet(t *testing.T, app *fiber.App, header string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	return resp.StatusCode
}

func TestAuthMiddleware(t *testing.T) {
	users := stubUsers{
		"u1": {ID: "u1", Status: domain.UserStatusActive, Roles: []domain.Role{domain.RoleOps}},
		"u2": {ID: "u2", Status: domain.UserStatusSuspended},
	}
	app, tm := newTestApp(t, users)

	active, _, _ := tm.GenerateToken("u1", nil)
	suspended, _, _ := tm.GenerateToken("u2", nil)
	unknown, _, _ := tm.GenerateToken("ghost", nil)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + active, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + active, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"suspended user", "Bearer " + suspended, http.StatusUnauthorized},
		{"unknown user", "Bearer " + unknown, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := doGet(t, app, tt.header); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	users := stubUsers{
		"admin": {ID: "admin", Status: domain.UserStatusActive, Roles: []domain.Role{domain.RoleAdmin}},
		"ops":   {ID: "ops", Status: domain.UserStatusActive, Roles: []domain.Role{domain.RoleOps}},
	}
	app, tm := newTestApp(t, users, RequireRole(domain.RoleAdmin))

	adminToken, _, _ := tm.GenerateToken("admin", nil)
	opsToken, _, _ := tm.GenerateToken("ops", []domain.Role{domain.RoleAdmin})

	if got := doGet(t, app, "Bearer "+adminToken); got != http.StatusOK {
		t.Errorf("admin status = %d, want 200", got)
	}
	// Roles come from the user record, not from claims in the token.
	if got := doGet(t, app, "Bearer "+opsToken); got != http.StatusForbidden {
		t.Errorf("ops status = %d, want 403", got)
	}
}
