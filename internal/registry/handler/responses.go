package handler

import (
	"kinregistry/internal/registry"
	"kinregistry/pkg/domain"
)

// StatusResponse is the generic acknowledgement body for mutations.
type StatusResponse struct {
	Status string `json:"status"`
}

// ProfileResponse is the HTTP response body for GET /registry/users/{identity}.
type ProfileResponse struct {
	Identity     string `json:"identity"`
	RegisteredAt uint64 `json:"registered_at"`
	Metadata     string `json:"metadata"`
	Verified     bool   `json:"verified"`
}

// FromProfile converts a domain profile to its response form.
func FromProfile(identity domain.Identity, p registry.Profile) ProfileResponse {
	return ProfileResponse{
		Identity:     identity.String(),
		RegisteredAt: p.RegisteredAt,
		Metadata:     p.Metadata,
		Verified:     p.Verified,
	}
}

// RelationsResponse is the HTTP response body for GET /registry/users/{identity}/relations.
type RelationsResponse struct {
	Identity string   `json:"identity"`
	Parents  []string `json:"parents"`
	Children []string `json:"children"`
	Siblings []string `json:"siblings"`
}

// FromRelations converts domain relations to their response form. Lists are
// never null in the JSON, even when empty.
func FromRelations(identity domain.Identity, r registry.Relations) RelationsResponse {
	return RelationsResponse{
		Identity: identity.String(),
		Parents:  identityList(r.Parents),
		Children: identityList(r.Children),
		Siblings: identityList(r.Siblings),
	}
}

func identityList(ids []domain.Identity) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// AttestationResponse is the HTTP response body for attestation reads.
type AttestationResponse struct {
	Identity   string `json:"identity"`
	Relative   string `json:"relative"`
	Kind       string `json:"kind"`
	AttestedBy string `json:"attested_by"`
	AttestedAt uint64 `json:"attested_at"`
}

// FromAttestation converts a domain attestation to its response form.
func FromAttestation(identity, relative domain.Identity, kind domain.RelationKind, a registry.Attestation) AttestationResponse {
	return AttestationResponse{
		Identity:   identity.String(),
		Relative:   relative.String(),
		Kind:       kind.String(),
		AttestedBy: a.AttestedBy.String(),
		AttestedAt: a.AttestedAt,
	}
}

// AuditEntryResponse is one entry of an identity's audit trail.
type AuditEntryResponse struct {
	Seq       uint64 `json:"seq"`
	Action    string `json:"action"`
	Timestamp uint64 `json:"timestamp"`
	Performer string `json:"performer"`
}

// FromAuditEntry converts a domain audit entry to its response form.
func FromAuditEntry(seq uint64, e registry.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		Seq:       seq,
		Action:    e.Action,
		Timestamp: e.Timestamp,
		Performer: e.Performer.String(),
	}
}

// AuditTrailResponse is the full trail for GET /registry/users/{identity}/audit.
type AuditTrailResponse struct {
	Identity string               `json:"identity"`
	Count    uint64               `json:"count"`
	Entries  []AuditEntryResponse `json:"entries"`
}
