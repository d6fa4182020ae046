// Package revocation tracks revoked token IDs until their natural expiry, so
// a revoked bearer token stops working before it expires.
package revocation

//go:generate mockgen -source=revocation.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"time"
)

// Store is the token revocation list. Entries may be dropped once their TTL
// passes; a missing entry means "not revoked".
type Store interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
