package handler

import (
	"strings"

	"kinregistry/pkg/domain"
	dErrors "kinregistry/pkg/domain-errors"
)

// TokenRequest is the HTTP request body for POST /auth/token.
type TokenRequest struct {
	APIKey   string `json:"api_key"`
	Identity string `json:"identity"`

	parsedIdentity domain.Identity
}

func (r *TokenRequest) Validate() error {
	if r.APIKey == "" {
		return dErrors.New(dErrors.CodeValidation, "api_key is required")
	}
	r.Identity = strings.TrimSpace(r.Identity)
	if r.Identity == "" {
		return dErrors.New(dErrors.CodeValidation, "identity is required")
	}
	identity, err := domain.ParseIdentity(r.Identity)
	if err != nil {
		return err
	}
	r.parsedIdentity = identity
	return nil
}

// ParsedIdentity returns the validated identity the token is minted for.
func (r *TokenRequest) ParsedIdentity() domain.Identity {
	return r.parsedIdentity
}

// TokenResponse is the HTTP response body for POST /auth/token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// RevokeResponse is the HTTP response body for POST /auth/revoke.
type RevokeResponse struct {
	Revoked bool `json:"revoked"`
}
