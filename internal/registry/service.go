package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"kinregistry/internal/platform/metrics"
	"kinregistry/pkg/domain"
	dErrors "kinregistry/pkg/domain-errors"
	"kinregistry/pkg/platform/sentinel"
	"kinregistry/pkg/requestcontext"
)

// Service hosts the registry operations. Every mutating operation runs inside
// the store's transactional boundary: pause gate first, then the domain
// mutation, then the audit append, committed as one unit. A call that fails at
// any step leaves no observable change anywhere.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service over the given store.
func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// -----------------------------------------------------------------------------
// Identity profiles
// -----------------------------------------------------------------------------

// Register creates the caller's profile and empty relation record.
func (s *Service) Register(ctx context.Context, caller domain.Identity, metadata string) error {
	err := s.store.RunInTx(ctx, func(st State) error {
		if err := notPaused(st); err != nil {
			return err
		}
		if _, err := st.Profile(caller); err == nil {
			return ErrAlreadyRegistered
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
		}
		if len(metadata) > MaxMetadataLen {
			return ErrInvalidMetadata
		}
		profile := Profile{RegisteredAt: st.Height(), Metadata: metadata}
		if err := st.PutProfile(caller, profile); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store profile")
		}
		if err := st.PutRelations(caller, Relations{}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store relations")
		}
		return s.appendAudit(st, caller, AuditEntry{
			Action:    ActionRegistered,
			Timestamp: st.Height(),
			Performer: caller,
		})
	})
	if err != nil {
		return s.rejected(err)
	}
	s.logOp(ctx, "registered identity", "identity", caller)
	if s.metrics != nil {
		s.metrics.Registrations.Inc()
		s.metrics.AuditAppends.Inc()
	}
	return nil
}

// UpdateMetadata overwrites the caller's profile metadata.
func (s *Service) UpdateMetadata(ctx context.Context, caller domain.Identity, metadata string) error {
	err := s.store.RunInTx(ctx, func(st State) error {
		if err := notPaused(st); err != nil {
			return err
		}
		profile, err := st.Profile(caller)
		if errors.Is(err, sentinel.ErrNotFound) {
			return ErrUserNotFound
		} else if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
		}
		if len(metadata) > MaxMetadataLen {
			return ErrInvalidMetadata
		}
		profile.Metadata = metadata
		if err := st.PutProfile(caller, profile); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store profile")
		}
		return s.appendAudit(st, caller, AuditEntry{
			Action:    ActionUpdatedMetadata,
			Timestamp: st.Height(),
			Performer: caller,
		})
	})
	if err != nil {
		return s.rejected(err)
	}
	s.logOp(ctx, "updated metadata", "identity", caller)
	if s.metrics != nil {
		s.metrics.AuditAppends.Inc()
	}
	return nil
}

// SetVerified flips the target's verification flag. Admin-only; the admin
// identity check is the sole gate, the pause flag is not consulted.
func (s *Service) SetVerified(ctx context.Context, caller, target domain.Identity, verified bool) error {
	err := s.store.RunInTx(ctx, func(st State) error {
		if err := requireAdmin(st, caller); err != nil {
			return err
		}
		profile, err := st.Profile(target)
		if errors.Is(err, sentinel.ErrNotFound) {
			return ErrUserNotFound
		} else if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
		}
		profile.Verified = verified
		if err := st.PutProfile(target, profile); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store profile")
		}
		return s.appendAudit(st, target, AuditEntry{
			Action:    ActionSetVerified,
			Timestamp: st.Height(),
			Performer: caller,
		})
	})
	if err != nil {
		return s.rejected(err)
	}
	s.logOp(ctx, "set verification flag", "identity", target, "verified", verified)
	s.adminAction("set-verified")
	if s.metrics != nil {
		s.metrics.AuditAppends.Inc()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Relation graph
// -----------------------------------------------------------------------------

// AddParent links a parent onto the caller's record (bounded by MaxParents) and
// reciprocally adds the caller to the parent's children when registered.
func (s *Service) AddParent(ctx context.Context, caller, parent domain.Identity) error {
	return s.addRelation(ctx, caller, parent, parentRelation)
}

// AddChild links a child onto the caller's record (bounded by MaxChildren) and
// reciprocally adds the caller to the child's parents when registered.
func (s *Service) AddChild(ctx context.Context, caller, child domain.Identity) error {
	return s.addRelation(ctx, caller, child, childRelation)
}

// AddSibling links a sibling onto the caller's record (bounded by MaxSiblings)
// and reciprocally adds the caller to the sibling's siblings when registered.
func (s *Service) AddSibling(ctx context.Context, caller, sibling domain.Identity) error {
	return s.addRelation(ctx, caller, sibling, siblingRelation)
}

// relationClass parameterizes the three structurally identical graph ops: the
// caller-side list with its bound, the counterpart-side list with its bound,
// and the audit label.
type relationClass int

const (
	parentRelation relationClass = iota
	childRelation
	siblingRelation
)

func (c relationClass) action() string {
	switch c {
	case parentRelation:
		return ActionAddedParent
	case childRelation:
		return ActionAddedChild
	default:
		return ActionAddedSibling
	}
}

func (c relationClass) ownList(r *Relations) *[]domain.Identity {
	switch c {
	case parentRelation:
		return &r.Parents
	case childRelation:
		return &r.Children
	default:
		return &r.Siblings
	}
}

func (c relationClass) ownBound() int {
	if c == parentRelation {
		return MaxParents
	}
	return MaxChildren
}

// inverseList is the counterpart-side list: children for an added parent,
// parents for an added child, siblings for an added sibling.
func (c relationClass) inverseList(r *Relations) *[]domain.Identity {
	switch c {
	case parentRelation:
		return &r.Children
	case childRelation:
		return &r.Parents
	default:
		return &r.Siblings
	}
}

func (c relationClass) inverseBound() int {
	if c == childRelation {
		return MaxParents
	}
	return MaxChildren
}

func (c relationClass) kind() string {
	switch c {
	case parentRelation:
		return "parent"
	case childRelation:
		return "child"
	default:
		return "sibling"
	}
}

func (s *Service) addRelation(ctx context.Context, caller, target domain.Identity, class relationClass) error {
	err := s.store.RunInTx(ctx, func(st State) error {
		if err := notPaused(st); err != nil {
			return err
		}
		rel, err := st.Relations(caller)
		if errors.Is(err, sentinel.ErrNotFound) {
			return ErrNotAuthorized
		} else if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load relations")
		}
		own := class.ownList(&rel)
		if len(*own) >= class.ownBound() {
			return ErrMaxRelations
		}
		if caller == target {
			return ErrInvalidRelation
		}
		// Only the counterpart side below is idempotent. The caller-side list
		// accumulates duplicates if the same target is added twice; the
		// ledger contract this registry descends from behaves that way, so
		// parity wins over hygiene here.
		*own = append(*own, target)
		if err := st.PutRelations(caller, rel); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store relations")
		}

		targetRel, err := st.Relations(target)
		switch {
		case err == nil:
			inverse := class.inverseList(&targetRel)
			if !contains(*inverse, caller) {
				if len(*inverse) >= class.inverseBound() {
					return ErrMaxRelations
				}
				*inverse = append(*inverse, caller)
				if err := st.PutRelations(target, targetRel); err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store relations")
				}
			}
		case errors.Is(err, sentinel.ErrNotFound):
			// Unregistered counterpart: no reciprocal side to maintain.
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load relations")
		}

		return s.appendAudit(st, caller, AuditEntry{
			Action:    class.action(),
			Timestamp: st.Height(),
			Performer: target,
		})
	})
	if err != nil {
		return s.rejected(err)
	}
	s.logOp(ctx, "added relation", "identity", caller, "relative", target, "kind", class.kind())
	if s.metrics != nil {
		s.metrics.RelationsAdded.WithLabelValues(class.kind()).Inc()
		s.metrics.AuditAppends.Inc()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Attestations
// -----------------------------------------------------------------------------

// VerifyRelation records a self-issued attestation that the named relation to
// relative holds. Only self-attestation exists: callers cannot attest on
// behalf of anyone else. Registration is not required.
func (s *Service) VerifyRelation(ctx context.Context, caller, relative domain.Identity, kind domain.RelationKind, verifier domain.Identity) error {
	err := s.store.RunInTx(ctx, func(st State) error {
		if err := notPaused(st); err != nil {
			return err
		}
		if caller != verifier {
			return ErrNotAuthorized
		}
		key := AttestationKey{Identity: caller, Relative: relative, Kind: kind}
		attestation := Attestation{AttestedBy: verifier, AttestedAt: st.Height()}
		if err := st.PutAttestation(key, attestation); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store attestation")
		}
		return s.appendAudit(st, caller, AuditEntry{
			Action:    VerifiedAction(kind),
			Timestamp: st.Height(),
			Performer: relative,
		})
	})
	if err != nil {
		return s.rejected(err)
	}
	s.logOp(ctx, "recorded attestation", "identity", caller, "relative", relative, "kind", kind)
	if s.metrics != nil {
		s.metrics.Attestations.Inc()
		s.metrics.AuditAppends.Inc()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Admin control plane
// -----------------------------------------------------------------------------

// Pause blocks all domain mutation until Unpause. Admin-only, works while
// paused, emits no audit entry.
func (s *Service) Pause(ctx context.Context, caller domain.Identity) error {
	return s.setPaused(ctx, caller, true)
}

// Unpause lifts the pause flag. Admin-only, emits no audit entry.
func (s *Service) Unpause(ctx context.Context, caller domain.Identity) error {
	return s.setPaused(ctx, caller, false)
}

func (s *Service) setPaused(ctx context.Context, caller domain.Identity, paused bool) error {
	err := s.store.RunInTx(ctx, func(st State) error {
		if err := requireAdmin(st, caller); err != nil {
			return err
		}
		if err := st.SetPaused(paused); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store pause flag")
		}
		return nil
	})
	if err != nil {
		return s.rejected(err)
	}
	s.logOp(ctx, "set pause flag", "paused", paused)
	if paused {
		s.adminAction("pause")
	} else {
		s.adminAction("unpause")
	}
	return nil
}

// SetAdmin hands the admin role to a new identity. Admin-only, works while
// paused, emits no audit entry.
func (s *Service) SetAdmin(ctx context.Context, caller, newAdmin domain.Identity) error {
	if newAdmin.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "admin identity must not be empty")
	}
	err := s.store.RunInTx(ctx, func(st State) error {
		if err := requireAdmin(st, caller); err != nil {
			return err
		}
		if err := st.SetAdmin(newAdmin); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store admin identity")
		}
		return nil
	})
	if err != nil {
		return s.rejected(err)
	}
	s.logOp(ctx, "changed admin", "admin", newAdmin)
	s.adminAction("set-admin")
	return nil
}

// -----------------------------------------------------------------------------
// Read accessors. These observe committed state only and map absence onto
// CodeNotFound; they are the surface external collaborators consume.
// -----------------------------------------------------------------------------

// Profile returns the identity's registered profile.
func (s *Service) Profile(ctx context.Context, id domain.Identity) (Profile, error) {
	profile, err := s.store.Profile(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Profile{}, ErrUserNotFound
	} else if err != nil {
		return Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return profile, nil
}

// IsRegistered reports whether a profile exists for the identity.
func (s *Service) IsRegistered(ctx context.Context, id domain.Identity) (bool, error) {
	_, err := s.store.Profile(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return true, nil
}

// Relations returns the identity's three relation lists.
func (s *Service) Relations(ctx context.Context, id domain.Identity) (Relations, error) {
	relations, err := s.store.Relations(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Relations{}, ErrUserNotFound
	} else if err != nil {
		return Relations{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load relations")
	}
	return relations, nil
}

// Attestation returns the recorded attestation for (id, relative, kind).
func (s *Service) Attestation(ctx context.Context, id, relative domain.Identity, kind domain.RelationKind) (Attestation, error) {
	attestation, err := s.store.Attestation(ctx, AttestationKey{Identity: id, Relative: relative, Kind: kind})
	if errors.Is(err, sentinel.ErrNotFound) {
		return Attestation{}, dErrors.New(dErrors.CodeNotFound, "attestation not found")
	} else if err != nil {
		return Attestation{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attestation")
	}
	return attestation, nil
}

// AuditEntry returns one entry of the identity's trail by sequence number.
func (s *Service) AuditEntry(ctx context.Context, id domain.Identity, seq uint64) (AuditEntry, error) {
	entry, err := s.store.AuditEntry(ctx, id, seq)
	if errors.Is(err, sentinel.ErrNotFound) {
		return AuditEntry{}, dErrors.New(dErrors.CodeNotFound, "audit entry not found")
	} else if err != nil {
		return AuditEntry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit entry")
	}
	return entry, nil
}

// AuditCount returns the number of entries in the identity's trail; zero for
// identities that were never written to.
func (s *Service) AuditCount(ctx context.Context, id domain.Identity) (uint64, error) {
	count, err := s.store.AuditCount(ctx, id)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit counter")
	}
	return count, nil
}

// Paused reports the pause flag.
func (s *Service) Paused(ctx context.Context) (bool, error) {
	paused, err := s.store.Paused(ctx)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pause flag")
	}
	return paused, nil
}

// Admin returns the current admin identity.
func (s *Service) Admin(ctx context.Context) (domain.Identity, error) {
	admin, err := s.store.Admin(ctx)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to read admin identity")
	}
	return admin, nil
}

// Height returns the committed logical height.
func (s *Service) Height(ctx context.Context) (uint64, error) {
	height, err := s.store.Height(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read height")
	}
	return height, nil
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func notPaused(st State) error {
	paused, err := st.Paused()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read pause flag")
	}
	if paused {
		return ErrPaused
	}
	return nil
}

func requireAdmin(st State, caller domain.Identity) error {
	admin, err := st.Admin()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read admin identity")
	}
	if caller != admin {
		return ErrNotAdmin
	}
	return nil
}

func (s *Service) appendAudit(st State, id domain.Identity, entry AuditEntry) error {
	if _, err := st.AppendAudit(id, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit entry")
	}
	return nil
}

// rejected counts pause rejections before handing the error back unchanged.
func (s *Service) rejected(err error) error {
	if errors.Is(err, ErrPaused) && s.metrics != nil {
		s.metrics.PausedRejections.Inc()
	}
	return err
}

func (s *Service) logOp(ctx context.Context, msg string, args ...any) {
	args = append(args, "request_id", requestcontext.RequestID(ctx))
	s.logger.InfoContext(ctx, msg, args...)
}

func (s *Service) adminAction(action string) {
	if s.metrics != nil {
		s.metrics.AdminActions.WithLabelValues(action).Inc()
	}
}
