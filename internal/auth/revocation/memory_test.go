package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MemoryTRLSuite struct {
	suite.Suite
	now   time.Time
	store *Memory
	ctx   context.Context
}

func (s *MemoryTRLSuite) SetupTest() {
	s.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.store = NewMemory(WithClock(func() time.Time { return s.now }))
	s.ctx = context.Background()
}

func TestMemoryTRLSuite(t *testing.T) {
	suite.Run(t, new(MemoryTRLSuite))
}

func (s *MemoryTRLSuite) TestRevokeAndCheck() {
	s.Run("unknown token is not revoked", func() {
		revoked, err := s.store.IsRevoked(s.ctx, "jti-unknown")
		s.Require().NoError(err)
		s.False(revoked)
	})

	s.Run("revoked token is revoked until TTL", func() {
		s.Require().NoError(s.store.Revoke(s.ctx, "jti-1", time.Hour))
		revoked, err := s.store.IsRevoked(s.ctx, "jti-1")
		s.Require().NoError(err)
		s.True(revoked)
	})

	s.Run("entry expires after TTL", func() {
		s.Require().NoError(s.store.Revoke(s.ctx, "jti-2", time.Minute))
		s.now = s.now.Add(2 * time.Minute)
		revoked, err := s.store.IsRevoked(s.ctx, "jti-2")
		s.Require().NoError(err)
		s.False(revoked)
	})

	s.Run("non-positive TTL is a no-op", func() {
		s.Require().NoError(s.store.Revoke(s.ctx, "jti-3", 0))
		revoked, err := s.store.IsRevoked(s.ctx, "jti-3")
		s.Require().NoError(err)
		s.False(revoked)
	})
}
