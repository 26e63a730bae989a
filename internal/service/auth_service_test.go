package service

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/oms-chat/internal/auth"
	"github.com/spec-kit/oms-chat/internal/domain"
	apperrors "github.com/spec-kit/oms-chat/pkg/util/errorutil"
)

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserRepo) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}
	hash := string(hashed)
	users := &fakeUserRepo{users: map[string]*domain.User{
		"u1": {ID: "u1", Email: "ops@example.com", PasswordHash: hash, Roles: []domain.Role{domain.RoleOps}, Status: domain.UserStatusActive},
		"u2": {ID: "u2", Email: "gone@example.com", PasswordHash: hash, Status: domain.UserStatusSuspended},
	}}
	return NewAuthServiceWithTokens(auth.NewTokenManager("test-secret", 15), users), users
}

func TestLoginIssuesRoleBearingToken(t *testing.T) {
	svc, _ := newAuthFixture(t)
	user, token, exp, err := svc.Login(context.Background(), " ops@example.com ", "s3cret!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID != "u1" || token == "" || exp.IsZero() {
		t.Fatalf("Login returned %v %q %v", user, token, exp)
	}

	claims, err := svc.Tokens().ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	p := claims.Principal()
	if p.ID != "u1" || !p.HasRole(domain.RoleOps) {
		t.Fatalf("principal = %+v", p)
	}
}

func TestLoginFailures(t *testing.T) {
	svc, _ := newAuthFixture(t)
	cases := []struct {
		name     string
		email    string
		password string
		code     string
	}{
		{"missing fields", "", "", apperrors.CodeValidation},
		{"unknown email", "nobody@example.com", "s3cret!", apperrors.CodeUnauthorized},
		{"wrong password", "ops@example.com", "guess", apperrors.CodeUnauthorized},
		{"suspended", "gone@example.com", "s3cret!", apperrors.CodeForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := svc.Login(context.Background(), tc.email, tc.password)
			if !apperrors.HasCode(err, tc.code) {
				t.Fatalf("err = %v, want %s", err, tc.code)
			}
		})
	}
}
