package domain

import dErrors "kinregistry/pkg/domain-errors"

// RelationKind labels an attestation, e.g. "parent", "sibling", "guardian".
// The ledger origin stored it in a fixed 10-byte slot, so the bound is in bytes.
type RelationKind string

// MaxRelationKindLen mirrors the original fixed-width storage slot.
const MaxRelationKindLen = 10

func (k RelationKind) String() string { return string(k) }

// ParseRelationKind validates a relation kind arriving from the transport layer.
// Oversized (or empty) kinds fail the same way oversized metadata does.
func ParseRelationKind(s string) (RelationKind, error) {
	if s == "" || len(s) > MaxRelationKindLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "relation kind must be 1-10 bytes")
	}
	return RelationKind(s), nil
}
