package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/spec-kit/oms-chat/internal/domain"
	apperrors "github.com/spec-kit/oms-chat/pkg/util/errorutil"
)

// Verifier turns a bearer credential into a principal. Failures are always
// UNAUTHORIZED domain errors.
type Verifier struct {
	tokens *TokenManager
}

// NewVerifier wraps a token manager.
func NewVerifier(tokens *TokenManager) *Verifier {
	return &Verifier{tokens: tokens}
}

// Verify validates the credential. A leading "Bearer " prefix is accepted.
func (v *Verifier) Verify(_ context.Context, credential string) (domain.Principal, error) {
	token := strings.TrimSpace(credential)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return domain.Principal{}, apperrors.NewUnauthorized("missing credential")
	}
	claims, err := v.tokens.ParseToken(token)
	if err != nil {
		return domain.Principal{}, apperrors.NewUnauthorized("invalid token")
	}
	return claims.Principal(), nil
}

// CredentialFromRequest extracts the bearer credential of a websocket
// handshake: the "token" query parameter, the "auth" query parameter, or the
// Authorization header, in that order.
func CredentialFromRequest(r *http.Request) string {
	q := r.URL.Query()
	if token := q.Get("token"); token != "" {
		return token
	}
	if token := q.Get("auth"); token != "" {
		return token
	}
	return r.Header.Get("Authorization")
}
