package handler

import (
	"strconv"
	"strings"

	"kinregistry/pkg/domain"
	dErrors "kinregistry/pkg/domain-errors"
)

// RegisterRequest is the HTTP request body for POST /registry/users.
type RegisterRequest struct {
	Metadata string `json:"metadata"`
}

// Validate accepts any metadata; the service bounds it after the pause and
// registration checks so failures surface in contract order.
func (r *RegisterRequest) Validate() error {
	return nil
}

// UpdateMetadataRequest is the HTTP request body for PUT /registry/users/me/metadata.
type UpdateMetadataRequest struct {
	Metadata string `json:"metadata"`
}

func (r *UpdateMetadataRequest) Validate() error {
	return nil
}

// AddRelationRequest is the HTTP request body for the three relation endpoints.
type AddRelationRequest struct {
	Relative string `json:"relative"`

	parsedRelative domain.Identity
}

func (r *AddRelationRequest) Validate() error {
	r.Relative = strings.TrimSpace(r.Relative)
	if r.Relative == "" {
		return dErrors.New(dErrors.CodeValidation, "relative is required")
	}
	relative, err := domain.ParseIdentity(r.Relative)
	if err != nil {
		return err
	}
	r.parsedRelative = relative
	return nil
}

// ParsedRelative returns the validated relative identity.
func (r *AddRelationRequest) ParsedRelative() domain.Identity {
	return r.parsedRelative
}

// VerifyRelationRequest is the HTTP request body for POST /registry/attestations.
type VerifyRelationRequest struct {
	Relative string `json:"relative"`
	Kind     string `json:"kind"`
	Verifier string `json:"verifier"`

	parsedRelative domain.Identity
	parsedKind     domain.RelationKind
	parsedVerifier domain.Identity
}

func (r *VerifyRelationRequest) Validate() error {
	r.Relative = strings.TrimSpace(r.Relative)
	if r.Relative == "" {
		return dErrors.New(dErrors.CodeValidation, "relative is required")
	}
	relative, err := domain.ParseIdentity(r.Relative)
	if err != nil {
		return err
	}
	r.parsedRelative = relative

	kind, err := domain.ParseRelationKind(r.Kind)
	if err != nil {
		return err
	}
	r.parsedKind = kind

	r.Verifier = strings.TrimSpace(r.Verifier)
	if r.Verifier == "" {
		return dErrors.New(dErrors.CodeValidation, "verifier is required")
	}
	verifier, err := domain.ParseIdentity(r.Verifier)
	if err != nil {
		return err
	}
	r.parsedVerifier = verifier
	return nil
}

// ParsedRelative returns the validated relative identity.
func (r *VerifyRelationRequest) ParsedRelative() domain.Identity {
	return r.parsedRelative
}

// ParsedKind returns the validated relation kind.
func (r *VerifyRelationRequest) ParsedKind() domain.RelationKind {
	return r.parsedKind
}

// ParsedVerifier returns the validated verifier identity.
func (r *VerifyRelationRequest) ParsedVerifier() domain.Identity {
	return r.parsedVerifier
}

// SetVerifiedRequest is the HTTP request body for PUT /admin/users/{identity}/verified.
type SetVerifiedRequest struct {
	Verified bool `json:"verified"`
}

func (r *SetVerifiedRequest) Validate() error {
	return nil
}

// SetAdminRequest is the HTTP request body for PUT /admin/admin.
type SetAdminRequest struct {
	Admin string `json:"admin"`

	parsedAdmin domain.Identity
}

func (r *SetAdminRequest) Validate() error {
	r.Admin = strings.TrimSpace(r.Admin)
	if r.Admin == "" {
		return dErrors.New(dErrors.CodeValidation, "admin is required")
	}
	admin, err := domain.ParseIdentity(r.Admin)
	if err != nil {
		return err
	}
	r.parsedAdmin = admin
	return nil
}

// ParsedAdmin returns the validated admin identity.
func (r *SetAdminRequest) ParsedAdmin() domain.Identity {
	return r.parsedAdmin
}

func parseSeq(raw string) (uint64, error) {
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || seq == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "seq must be a positive integer")
	}
	return seq, nil
}
