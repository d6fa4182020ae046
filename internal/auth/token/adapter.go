package token

import (
	"time"

	"kinregistry/internal/platform/middleware"
)

// MiddlewareAdapter exposes the token service through the shape the auth
// middleware consumes.
type MiddlewareAdapter struct {
	svc *Service
}

func NewMiddlewareAdapter(svc *Service) *MiddlewareAdapter {
	return &MiddlewareAdapter{svc: svc}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (middleware.CallerClaims, error) {
	claims, err := a.svc.Validate(tokenString)
	if err != nil {
		return middleware.CallerClaims{}, err
	}
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return middleware.CallerClaims{
		Identity:  claims.Identity(),
		TokenID:   claims.TokenID(),
		ExpiresAt: expiresAt,
	}, nil
}
