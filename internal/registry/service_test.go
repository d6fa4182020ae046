package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"kinregistry/internal/registry"
	memorystore "kinregistry/internal/registry/store/memory"
	"kinregistry/pkg/domain"
	dErrors "kinregistry/pkg/domain-errors"
)

const (
	admin = domain.Identity("root")
	alice = domain.Identity("alice")
	bob   = domain.Identity("bob")
	carol = domain.Identity("carol")
	dave  = domain.Identity("dave")
)

type RegistryServiceSuite struct {
	suite.Suite
	store   *memorystore.Store
	service *registry.Service
	ctx     context.Context
}

func TestRegistryServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistryServiceSuite))
}

func (s *RegistryServiceSuite) SetupTest() {
	s.store = memorystore.New(admin)
	s.service = registry.New(s.store)
	s.ctx = context.Background()
}

func (s *RegistryServiceSuite) register(ids ...domain.Identity) {
	for _, id := range ids {
		s.Require().NoError(s.service.Register(s.ctx, id, ""))
	}
}

// =============================================================================
// Registration
// =============================================================================

func (s *RegistryServiceSuite) TestRegister() {
	s.Run("creates profile, empty relations, and first audit entry", func() {
		s.Require().NoError(s.service.Register(s.ctx, alice, "born 1990"))

		profile, err := s.service.Profile(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal("born 1990", profile.Metadata)
		s.False(profile.Verified)
		s.Equal(uint64(1), profile.RegisteredAt)

		relations, err := s.service.Relations(s.ctx, alice)
		s.Require().NoError(err)
		s.Empty(relations.Parents)
		s.Empty(relations.Children)
		s.Empty(relations.Siblings)

		entry, err := s.service.AuditEntry(s.ctx, alice, 1)
		s.Require().NoError(err)
		s.Equal(registry.ActionRegistered, entry.Action)
		s.Equal(alice, entry.Performer)
		s.Equal(uint64(1), entry.Timestamp)
	})

	s.Run("second registration for the same identity is rejected", func() {
		err := s.service.Register(s.ctx, alice, "again")
		s.Require().ErrorIs(err, registry.ErrAlreadyRegistered)

		// Failed call leaves no trace: profile, audit, and height untouched.
		profile, err2 := s.service.Profile(s.ctx, alice)
		s.Require().NoError(err2)
		s.Equal("born 1990", profile.Metadata)

		count, err2 := s.service.AuditCount(s.ctx, alice)
		s.Require().NoError(err2)
		s.Equal(uint64(1), count)
	})

	s.Run("oversized metadata is rejected with no partial write", func() {
		long := make([]byte, registry.MaxMetadataLen+1)
		for i := range long {
			long[i] = 'x'
		}
		err := s.service.Register(s.ctx, bob, string(long))
		s.Require().ErrorIs(err, registry.ErrInvalidMetadata)

		registered, err := s.service.IsRegistered(s.ctx, bob)
		s.Require().NoError(err)
		s.False(registered)

		count, err := s.service.AuditCount(s.ctx, bob)
		s.Require().NoError(err)
		s.Zero(count)
	})

	s.Run("metadata at the bound is accepted", func() {
		exact := make([]byte, registry.MaxMetadataLen)
		for i := range exact {
			exact[i] = 'y'
		}
		s.Require().NoError(s.service.Register(s.ctx, bob, string(exact)))
	})
}

// An identity can own audit entries before it registers, because attestation
// requires no registration. The trail is append-only: registering continues
// the existing sequence rather than rewinding it.
func (s *RegistryServiceSuite) TestRegisterContinuesExistingAuditTrail() {
	kind := domain.RelationKind("parent")
	s.Require().NoError(s.service.VerifyRelation(s.ctx, alice, bob, kind, alice))
	s.Require().NoError(s.service.Register(s.ctx, alice, ""))

	count, err := s.service.AuditCount(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(uint64(2), count)

	first, err := s.service.AuditEntry(s.ctx, alice, 1)
	s.Require().NoError(err)
	s.Equal(registry.VerifiedAction(kind), first.Action)

	second, err := s.service.AuditEntry(s.ctx, alice, 2)
	s.Require().NoError(err)
	s.Equal(registry.ActionRegistered, second.Action)
	s.Equal(alice, second.Performer)
}

func (s *RegistryServiceSuite) TestUpdateMetadata() {
	s.register(alice)

	s.Run("overwrites metadata and audits", func() {
		s.Require().NoError(s.service.UpdateMetadata(s.ctx, alice, "moved to oslo"))

		profile, err := s.service.Profile(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal("moved to oslo", profile.Metadata)

		entry, err := s.service.AuditEntry(s.ctx, alice, 2)
		s.Require().NoError(err)
		s.Equal(registry.ActionUpdatedMetadata, entry.Action)
		s.Equal(alice, entry.Performer)
	})

	s.Run("empty metadata clears the field", func() {
		s.Require().NoError(s.service.UpdateMetadata(s.ctx, alice, ""))
		profile, err := s.service.Profile(s.ctx, alice)
		s.Require().NoError(err)
		s.Empty(profile.Metadata)
	})

	s.Run("unregistered caller is rejected", func() {
		err := s.service.UpdateMetadata(s.ctx, carol, "hello")
		s.Require().ErrorIs(err, registry.ErrUserNotFound)
	})
}

// =============================================================================
// Verification flag
// =============================================================================

func (s *RegistryServiceSuite) TestSetVerified() {
	s.register(alice)

	s.Run("non-admin caller is rejected", func() {
		err := s.service.SetVerified(s.ctx, alice, alice, true)
		s.Require().ErrorIs(err, registry.ErrNotAdmin)
	})

	s.Run("admin flips the flag and the trail records who", func() {
		s.Require().NoError(s.service.SetVerified(s.ctx, admin, alice, true))

		profile, err := s.service.Profile(s.ctx, alice)
		s.Require().NoError(err)
		s.True(profile.Verified)

		count, err := s.service.AuditCount(s.ctx, alice)
		s.Require().NoError(err)
		entry, err := s.service.AuditEntry(s.ctx, alice, count)
		s.Require().NoError(err)
		s.Equal(registry.ActionSetVerified, entry.Action)
		s.Equal(admin, entry.Performer)
	})

	s.Run("unknown target is rejected", func() {
		err := s.service.SetVerified(s.ctx, admin, carol, true)
		s.Require().ErrorIs(err, registry.ErrUserNotFound)
	})

	s.Run("works while paused", func() {
		s.Require().NoError(s.service.Pause(s.ctx, admin))
		s.Require().NoError(s.service.SetVerified(s.ctx, admin, alice, false))
		s.Require().NoError(s.service.Unpause(s.ctx, admin))

		profile, err := s.service.Profile(s.ctx, alice)
		s.Require().NoError(err)
		s.False(profile.Verified)
	})
}

// =============================================================================
// Relation graph
// =============================================================================

func (s *RegistryServiceSuite) TestAddParent() {
	s.register(alice, bob)

	s.Run("links both sides when the parent is registered", func() {
		s.Require().NoError(s.service.AddParent(s.ctx, alice, bob))

		aliceRel, err := s.service.Relations(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal([]domain.Identity{bob}, aliceRel.Parents)

		bobRel, err := s.service.Relations(s.ctx, bob)
		s.Require().NoError(err)
		s.Equal([]domain.Identity{alice}, bobRel.Children)

		count, err := s.service.AuditCount(s.ctx, alice)
		s.Require().NoError(err)
		entry, err := s.service.AuditEntry(s.ctx, alice, count)
		s.Require().NoError(err)
		s.Equal(registry.ActionAddedParent, entry.Action)
		s.Equal(bob, entry.Performer)
	})

	s.Run("unregistered parent gets no reciprocal record", func() {
		s.Require().NoError(s.service.AddParent(s.ctx, alice, carol))

		aliceRel, err := s.service.Relations(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal([]domain.Identity{bob, carol}, aliceRel.Parents)

		_, err = s.service.Relations(s.ctx, carol)
		s.Require().ErrorIs(err, registry.ErrUserNotFound)
	})

	s.Run("third parent exceeds the bound", func() {
		err := s.service.AddParent(s.ctx, alice, dave)
		s.Require().ErrorIs(err, registry.ErrMaxRelations)
	})

	s.Run("unregistered caller is rejected", func() {
		err := s.service.AddParent(s.ctx, dave, alice)
		s.Require().ErrorIs(err, registry.ErrNotAuthorized)
	})

	s.Run("self-parenting is rejected", func() {
		err := s.service.AddParent(s.ctx, bob, bob)
		s.Require().ErrorIs(err, registry.ErrInvalidRelation)
	})
}

func (s *RegistryServiceSuite) TestAddChildReciprocalBound() {
	// carol already has two parents; adding her as a child must abort entirely
	// when her parent list cannot take the caller.
	s.register(alice, bob, carol, dave)
	s.Require().NoError(s.service.AddParent(s.ctx, carol, alice))
	s.Require().NoError(s.service.AddParent(s.ctx, carol, bob))

	before, err := s.service.Relations(s.ctx, dave)
	s.Require().NoError(err)
	s.Empty(before.Children)
	heightBefore, err := s.service.Height(s.ctx)
	s.Require().NoError(err)

	err = s.service.AddChild(s.ctx, dave, carol)
	s.Require().ErrorIs(err, registry.ErrMaxRelations)

	// The caller-side append rolled back with the rest of the call.
	after, err := s.service.Relations(s.ctx, dave)
	s.Require().NoError(err)
	s.Empty(after.Children)

	carolRel, err := s.service.Relations(s.ctx, carol)
	s.Require().NoError(err)
	s.Equal([]domain.Identity{alice, bob}, carolRel.Parents)

	heightAfter, err := s.service.Height(s.ctx)
	s.Require().NoError(err)
	s.Equal(heightBefore, heightAfter)

	count, err := s.service.AuditCount(s.ctx, dave)
	s.Require().NoError(err)
	s.Equal(uint64(1), count) // registration only
}

func (s *RegistryServiceSuite) TestAddSibling() {
	s.register(alice, bob)

	s.Run("repeat add duplicates the caller side but not the counterpart", func() {
		s.Require().NoError(s.service.AddSibling(s.ctx, alice, bob))
		s.Require().NoError(s.service.AddSibling(s.ctx, alice, bob))

		aliceRel, err := s.service.Relations(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal([]domain.Identity{bob, bob}, aliceRel.Siblings)

		bobRel, err := s.service.Relations(s.ctx, bob)
		s.Require().NoError(err)
		s.Equal([]domain.Identity{alice}, bobRel.Siblings)
	})

	s.Run("bound counts duplicates", func() {
		for i := 2; i < registry.MaxSiblings; i++ {
			s.Require().NoError(s.service.AddSibling(s.ctx, alice, bob))
		}
		err := s.service.AddSibling(s.ctx, alice, bob)
		s.Require().ErrorIs(err, registry.ErrMaxRelations)
	})

	s.Run("bound check precedes the self check", func() {
		err := s.service.AddSibling(s.ctx, alice, alice)
		s.Require().ErrorIs(err, registry.ErrMaxRelations)
	})
}

func (s *RegistryServiceSuite) TestAddChild() {
	s.register(alice, bob, carol)

	s.Require().NoError(s.service.AddChild(s.ctx, alice, bob))

	aliceRel, err := s.service.Relations(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal([]domain.Identity{bob}, aliceRel.Children)

	bobRel, err := s.service.Relations(s.ctx, bob)
	s.Require().NoError(err)
	s.Equal([]domain.Identity{alice}, bobRel.Parents)

	// Reciprocal add is idempotent even when the forward edge was created from
	// the other side first.
	s.Require().NoError(s.service.AddParent(s.ctx, bob, alice))
	bobRel, err = s.service.Relations(s.ctx, bob)
	s.Require().NoError(err)
	s.Equal([]domain.Identity{alice, alice}, bobRel.Parents)

	aliceRel, err = s.service.Relations(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal([]domain.Identity{bob}, aliceRel.Children)
}

// =============================================================================
// Attestations
// =============================================================================

func (s *RegistryServiceSuite) TestVerifyRelation() {
	kind, err := domain.ParseRelationKind("parent")
	s.Require().NoError(err)

	s.Run("self-attestation succeeds without registration", func() {
		s.Require().NoError(s.service.VerifyRelation(s.ctx, alice, bob, kind, alice))

		att, err := s.service.Attestation(s.ctx, alice, bob, kind)
		s.Require().NoError(err)
		s.Equal(alice, att.AttestedBy)
		s.NotZero(att.AttestedAt)

		entry, err := s.service.AuditEntry(s.ctx, alice, 1)
		s.Require().NoError(err)
		s.Equal("verified-parent", entry.Action)
		s.Equal(bob, entry.Performer)
	})

	s.Run("re-attestation overwrites in place", func() {
		first, err := s.service.Attestation(s.ctx, alice, bob, kind)
		s.Require().NoError(err)

		s.Require().NoError(s.service.VerifyRelation(s.ctx, alice, bob, kind, alice))
		second, err := s.service.Attestation(s.ctx, alice, bob, kind)
		s.Require().NoError(err)
		s.Greater(second.AttestedAt, first.AttestedAt)

		count, err := s.service.AuditCount(s.ctx, alice)
		s.Require().NoError(err)
		s.Equal(uint64(2), count)
	})

	s.Run("attesting on behalf of someone else is rejected", func() {
		err := s.service.VerifyRelation(s.ctx, alice, bob, kind, bob)
		s.Require().ErrorIs(err, registry.ErrNotAuthorized)
	})

	s.Run("unknown attestation reads as not found", func() {
		other, err := domain.ParseRelationKind("sibling")
		s.Require().NoError(err)
		_, err = s.service.Attestation(s.ctx, alice, bob, other)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Pause gate and admin handover
// =============================================================================

func (s *RegistryServiceSuite) TestPauseGate() {
	s.register(alice, bob)
	kind, err := domain.ParseRelationKind("cousin")
	s.Require().NoError(err)

	s.Run("non-admin cannot pause", func() {
		s.Require().ErrorIs(s.service.Pause(s.ctx, alice), registry.ErrNotAdmin)
	})

	s.Require().NoError(s.service.Pause(s.ctx, admin))

	s.Run("all domain mutation is rejected while paused", func() {
		s.Require().ErrorIs(s.service.Register(s.ctx, carol, ""), registry.ErrPaused)
		s.Require().ErrorIs(s.service.UpdateMetadata(s.ctx, alice, "x"), registry.ErrPaused)
		s.Require().ErrorIs(s.service.AddParent(s.ctx, alice, bob), registry.ErrPaused)
		s.Require().ErrorIs(s.service.VerifyRelation(s.ctx, alice, bob, kind, alice), registry.ErrPaused)
	})

	s.Run("pause precedes every other check", func() {
		// dave is unregistered and the relation is self-referential; the pause
		// answer still wins.
		s.Require().ErrorIs(s.service.AddParent(s.ctx, dave, dave), registry.ErrPaused)
	})

	s.Run("reads stay open while paused", func() {
		_, err := s.service.Profile(s.ctx, alice)
		s.Require().NoError(err)
		paused, err := s.service.Paused(s.ctx)
		s.Require().NoError(err)
		s.True(paused)
	})

	s.Run("pause and unpause leave no audit entries", func() {
		count, err := s.service.AuditCount(s.ctx, admin)
		s.Require().NoError(err)
		s.Zero(count)
	})

	s.Require().NoError(s.service.Unpause(s.ctx, admin))

	s.Run("mutation resumes after unpause", func() {
		s.Require().NoError(s.service.Register(s.ctx, carol, ""))
	})
}

func (s *RegistryServiceSuite) TestSetAdmin() {
	s.Run("non-admin cannot hand over", func() {
		s.Require().ErrorIs(s.service.SetAdmin(s.ctx, alice, bob), registry.ErrNotAdmin)
	})

	s.Run("empty successor is rejected", func() {
		err := s.service.SetAdmin(s.ctx, admin, "")
		s.Require().True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("handover transfers the role atomically", func() {
		s.Require().NoError(s.service.SetAdmin(s.ctx, admin, alice))

		current, err := s.service.Admin(s.ctx)
		s.Require().NoError(err)
		s.Equal(alice, current)

		// The old admin lost the role in the same call that granted it.
		s.Require().ErrorIs(s.service.Pause(s.ctx, admin), registry.ErrNotAdmin)
		s.Require().NoError(s.service.Pause(s.ctx, alice))
		s.Require().NoError(s.service.Unpause(s.ctx, alice))
	})

	s.Run("admin handover works while paused", func() {
		s.Require().NoError(s.service.Pause(s.ctx, alice))
		s.Require().NoError(s.service.SetAdmin(s.ctx, alice, bob))
		s.Require().NoError(s.service.Unpause(s.ctx, bob))
	})
}

// =============================================================================
// Audit trail and logical clock
// =============================================================================

func (s *RegistryServiceSuite) TestAuditTrailIsGapless() {
	s.register(alice, bob)
	s.Require().NoError(s.service.UpdateMetadata(s.ctx, alice, "one"))
	s.Require().NoError(s.service.AddSibling(s.ctx, alice, bob))
	s.Require().NoError(s.service.SetVerified(s.ctx, admin, alice, true))

	count, err := s.service.AuditCount(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(uint64(4), count)

	var lastTimestamp uint64
	for seq := uint64(1); seq <= count; seq++ {
		entry, err := s.service.AuditEntry(s.ctx, alice, seq)
		s.Require().NoError(err)
		s.GreaterOrEqual(entry.Timestamp, lastTimestamp)
		lastTimestamp = entry.Timestamp
	}

	_, err = s.service.AuditEntry(s.ctx, alice, count+1)
	s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = s.service.AuditEntry(s.ctx, alice, 0)
	s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RegistryServiceSuite) TestHeightAdvancesPerCommittedCall() {
	start, err := s.service.Height(s.ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Register(s.ctx, alice, ""))
	s.Require().NoError(s.service.Register(s.ctx, bob, ""))

	afterTwo, err := s.service.Height(s.ctx)
	s.Require().NoError(err)
	s.Equal(start+2, afterTwo)

	// Rejected calls do not advance the clock.
	s.Require().ErrorIs(s.service.Register(s.ctx, alice, ""), registry.ErrAlreadyRegistered)
	afterReject, err := s.service.Height(s.ctx)
	s.Require().NoError(err)
	s.Equal(afterTwo, afterReject)

	// Two entries written in different calls carry different timestamps.
	first, err := s.service.AuditEntry(s.ctx, alice, 1)
	s.Require().NoError(err)
	second, err := s.service.AuditEntry(s.ctx, bob, 1)
	s.Require().NoError(err)
	s.Equal(first.Timestamp+1, second.Timestamp)
}
