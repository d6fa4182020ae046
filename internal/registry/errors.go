package registry

import dErrors "kinregistry/pkg/domain-errors"

// The error taxonomy of the original contract, expressed as coded domain
// errors. Every mutating operation returns exactly one of these (or a wrapped
// CodeInternal for infrastructure failures) with zero state change.
var (
	ErrPaused            = dErrors.New(dErrors.CodeUnavailable, "registry is paused")
	ErrAlreadyRegistered = dErrors.New(dErrors.CodeConflict, "identity already registered")
	ErrInvalidRelation   = dErrors.New(dErrors.CodeValidation, "identity cannot relate to itself")
	ErrUserNotFound      = dErrors.New(dErrors.CodeNotFound, "user not found")
	ErrNotAuthorized     = dErrors.New(dErrors.CodeForbidden, "caller is not authorized")
	ErrMaxRelations      = dErrors.New(dErrors.CodeLimitExceeded, "maximum relations exceeded")
	ErrInvalidMetadata   = dErrors.New(dErrors.CodeInvalidInput, "metadata exceeds maximum length")
	ErrNotAdmin          = dErrors.New(dErrors.CodeForbidden, "caller is not the admin")
)
