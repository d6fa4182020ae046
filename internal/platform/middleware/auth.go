package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"kinregistry/pkg/domain"
	"kinregistry/pkg/requestcontext"
)

// CallerClaims is what the middleware needs from a validated bearer token.
type CallerClaims struct {
	Identity  domain.Identity
	TokenID   string
	ExpiresAt time.Time
}

// TokenValidator validates a raw bearer token string.
type TokenValidator interface {
	ValidateToken(tokenString string) (CallerClaims, error)
}

// RevocationChecker answers whether a token ID has been revoked. A nil checker
// disables the check.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RequireAuth extracts the caller identity from the Authorization header and
// stores it in the request context. Requests without a valid, unrevoked token
// never reach a handler.
func RequireAuth(validator TokenValidator, revoked RevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || raw == "" {
				unauthorized(w, "bearer token required")
				return
			}

			claims, err := validator.ValidateToken(raw)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				unauthorized(w, "invalid or expired token")
				return
			}

			if revoked != nil {
				isRevoked, err := revoked.IsRevoked(ctx, claims.TokenID)
				if err != nil {
					logger.ErrorContext(ctx, "revocation check failed",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusServiceUnavailable)
					_, _ = w.Write([]byte(`{"error":"unavailable","error_description":"authorization backend unavailable"}`))
					return
				}
				if isRevoked {
					unauthorized(w, "token has been revoked")
					return
				}
			}

			ctx = requestcontext.WithCaller(ctx, claims.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
