package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/feedbackflow/ai-analysis/internal/apperr"
	"go.uber.org/zap"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

type Middleware struct {
	verifier Verifier
	logger   *zap.Logger
}

func NewMiddleware(verifier Verifier, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{verifier: verifier, logger: logger}
}

func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			apperr.Write(w, apperr.Unauthenticated("Missing authorization header", nil))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			apperr.Write(w, apperr.Unauthenticated("Invalid authorization header format", nil))
			return
		}

		principal, err := m.verifier.Verify(r.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			m.logger.Info("token verification failed", zap.Error(err))
			apperr.Write(w, apperr.Unauthenticated("Invalid or expired token", err))
			return
		}

		ctx := context.WithValue(r.Context(), PrincipalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(*Principal)
	return p, ok
}

var ErrUnknownToken = errors.New("unknown token")

// StaticVerifier maps fixed tokens to principals. It stands in for the
// identity provider in tests and local runs.
type StaticVerifier map[string]*Principal

func (s StaticVerifier) Verify(_ context.Context, token string) (*Principal, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return nil, ErrUnknownToken
}
