package registry

import (
	"kinregistry/pkg/domain"
)

// Bounds fixed by the ledger-origin contract. These are part of the public
// behavior, not tunables.
const (
	MaxParents     = 2
	MaxChildren    = 10
	MaxSiblings    = 10
	MaxMetadataLen = 500
)

// Profile is an identity's registered record.
//
// Invariants:
//   - Metadata is at most MaxMetadataLen bytes
//   - RegisteredAt is the logical height of the registering call, immutable
//   - A Profile exists iff a Relations record exists for the same identity
type Profile struct {
	RegisteredAt uint64 `json:"registered_at"`
	Metadata     string `json:"metadata"`
	Verified     bool   `json:"verified"`
}

// Relations holds an identity's three ordered relation lists. The zero value is
// a valid empty record.
//
// Invariants (after every call, successful or failed):
//   - len(Parents) <= MaxParents
//   - len(Children) <= MaxChildren
//   - len(Siblings) <= MaxSiblings
//   - an identity never appears in its own lists
type Relations struct {
	Parents  []domain.Identity `json:"parents"`
	Children []domain.Identity `json:"children"`
	Siblings []domain.Identity `json:"siblings"`
}

// Clone returns a deep copy so drafts never alias committed slices.
func (r Relations) Clone() Relations {
	return Relations{
		Parents:  append([]domain.Identity(nil), r.Parents...),
		Children: append([]domain.Identity(nil), r.Children...),
		Siblings: append([]domain.Identity(nil), r.Siblings...),
	}
}

// AttestationKey identifies one attested relationship fact.
type AttestationKey struct {
	Identity domain.Identity
	Relative domain.Identity
	Kind     domain.RelationKind
}

// Attestation records who stated that the keyed relation holds, and when.
// Repeated attestations for the same key overwrite (last write wins).
type Attestation struct {
	AttestedBy domain.Identity `json:"attested_by"`
	AttestedAt uint64          `json:"attested_at"`
}

// AuditEntry is one element of an identity's append-only trail. Sequence
// numbers start at 1 and are strictly gapless per identity.
type AuditEntry struct {
	Action    string          `json:"action"`
	Timestamp uint64          `json:"timestamp"` // logical height of the call
	Performer domain.Identity `json:"performer"`
}

// Audit action labels. The relation and attestation entries record the
// *target* identity as performer; that convention comes from the original
// contract and is preserved as-is.
const (
	ActionRegistered      = "registered"
	ActionUpdatedMetadata = "updated-metadata"
	ActionSetVerified     = "set-verified"
	ActionAddedParent     = "added-parent"
	ActionAddedChild      = "added-child"
	ActionAddedSibling    = "added-sibling"
)

// VerifiedAction builds the audit label for an attestation of the given kind.
func VerifiedAction(kind domain.RelationKind) string {
	return "verified-" + string(kind)
}

func contains(list []domain.Identity, id domain.Identity) bool {
	for _, entry := range list {
		if entry == id {
			return true
		}
	}
	return false
}
