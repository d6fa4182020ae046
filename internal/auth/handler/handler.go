// Package handler exposes the token bootstrap surface: exchanging the shared
// API key for a bearer token, and revoking a token early.
package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"kinregistry/internal/auth/revocation"
	"kinregistry/internal/auth/token"
	dErrors "kinregistry/pkg/domain-errors"
	"kinregistry/pkg/platform/httputil"
	"kinregistry/pkg/requestcontext"
	"kinregistry/pkg/secrets"
)

// Handler wires the auth endpoints to the token service and revocation list.
type Handler struct {
	tokens     *token.Service
	revocation revocation.Store
	apiKeyHash string
	tokenTTL   time.Duration
	logger     *slog.Logger
}

// New constructs the auth handler. An empty apiKeyHash disables the token
// endpoint entirely rather than accepting any key.
func New(tokens *token.Service, revocationStore revocation.Store, apiKeyHash string, tokenTTL time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		tokens:     tokens,
		revocation: revocationStore,
		apiKeyHash: apiKeyHash,
		tokenTTL:   tokenTTL,
		logger:     logger,
	}
}

// Register mounts the auth endpoints. These sit outside the authenticated
// router group: /auth/token is how callers get a token in the first place, and
// /auth/revoke authenticates by the very token it revokes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/token", h.HandleToken)
	r.Post("/auth/revoke", h.HandleRevoke)
}

// HandleToken handles POST /auth/token.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[TokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if h.apiKeyHash == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token issuance is not configured"))
		return
	}
	if err := secrets.Verify(req.APIKey, h.apiKeyHash); err != nil {
		h.logger.WarnContext(ctx, "token request with bad api key",
			"request_id", requestID,
			"identity", req.Identity,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid api key"))
		return
	}

	signed, err := h.tokens.Mint(req.ParsedIdentity(), h.tokenTTL)
	if err != nil {
		h.logger.ErrorContext(ctx, "token minting failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint token"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokenTTL.Seconds()),
	})
}

// HandleRevoke handles POST /auth/revoke. The presented bearer token is the
// one revoked; the revocation entry lives exactly as long as the token would
// have.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "bearer token required"))
		return
	}
	claims, err := h.tokens.Validate(raw)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ttl := time.Duration(0)
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := h.revocation.Revoke(ctx, claims.TokenID(), ttl); err != nil {
		h.logger.ErrorContext(ctx, "token revocation failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "revocation backend unavailable"))
		return
	}

	h.logger.InfoContext(ctx, "token revoked",
		"request_id", requestID,
		"identity", claims.Identity(),
	)
	httputil.WriteJSON(w, http.StatusOK, RevokeResponse{Revoked: true})
}
