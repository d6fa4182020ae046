package registry

import (
	"context"

	"kinregistry/pkg/domain"
)

// State is the whole keyed-map universe as seen by one mutating call. RunInTx
// hands each call exclusive access to a draft of it; nothing a call writes is
// visible to anyone until the callback returns nil and the draft commits.
//
// Lookup methods return sentinel.ErrNotFound for absent records; the service
// translates that into domain errors.
type State interface {
	// Height is the logical clock value the current call commits at. It
	// advances by exactly one per committed mutating call and stands in for
	// the hosting ledger's block height.
	Height() uint64

	Admin() (domain.Identity, error)
	SetAdmin(admin domain.Identity) error
	Paused() (bool, error)
	SetPaused(paused bool) error

	Profile(id domain.Identity) (Profile, error)
	PutProfile(id domain.Identity, profile Profile) error

	Relations(id domain.Identity) (Relations, error)
	PutRelations(id domain.Identity, relations Relations) error

	Attestation(key AttestationKey) (Attestation, error)
	PutAttestation(key AttestationKey, attestation Attestation) error

	// AppendAudit assigns the identity's next sequence number (starting at 1),
	// stores the entry there and returns the assigned sequence.
	AppendAudit(id domain.Identity, entry AuditEntry) (uint64, error)
	AuditCount(id domain.Identity) (uint64, error)
	AuditEntry(id domain.Identity, seq uint64) (AuditEntry, error)
}

// Tx provides the transactional boundary every mutating call runs inside.
// Implementations must serialize calls (single-writer) and discard every write
// of a callback that returns an error, reproducing the hosting ledger's
// all-or-nothing call semantics.
type Tx interface {
	RunInTx(ctx context.Context, fn func(s State) error) error
}

// Store is interface-driven to keep the domain logic testable and to allow
// swapping in-memory and SQL persistence without rewiring business code. The
// read path runs outside transactions and observes only committed state.
type Store interface {
	Tx

	Height(ctx context.Context) (uint64, error)
	Admin(ctx context.Context) (domain.Identity, error)
	Paused(ctx context.Context) (bool, error)
	Profile(ctx context.Context, id domain.Identity) (Profile, error)
	Relations(ctx context.Context, id domain.Identity) (Relations, error)
	Attestation(ctx context.Context, key AttestationKey) (Attestation, error)
	AuditCount(ctx context.Context, id domain.Identity) (uint64, error)
	AuditEntry(ctx context.Context, id domain.Identity, seq uint64) (AuditEntry, error)
}
