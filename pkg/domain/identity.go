package domain

import dErrors "kinregistry/pkg/domain-errors"

// Identity is the opaque principal value every record is keyed by. It carries no
// structure beyond equality and ordering; callers receive it from the auth layer
// and cannot mint one for somebody else.
type Identity string

// MaxIdentityLen bounds the wire representation so map keys stay cheap.
const MaxIdentityLen = 128

func (i Identity) IsZero() bool { return i == "" }

func (i Identity) String() string { return string(i) }

// ParseIdentity validates an identity arriving from the transport layer.
func ParseIdentity(s string) (Identity, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "identity must not be empty")
	}
	if len(s) > MaxIdentityLen {
		return "", dErrors.New(dErrors.CodeValidation, "identity exceeds maximum length")
	}
	return Identity(s), nil
}
