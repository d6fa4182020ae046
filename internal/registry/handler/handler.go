package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kinregistry/internal/registry"
	"kinregistry/pkg/domain"
	dErrors "kinregistry/pkg/domain-errors"
	"kinregistry/pkg/platform/httputil"
	"kinregistry/pkg/requestcontext"
)

// Service defines the registry operations the HTTP layer depends on.
type Service interface {
	Register(ctx context.Context, caller domain.Identity, metadata string) error
	UpdateMetadata(ctx context.Context, caller domain.Identity, metadata string) error
	SetVerified(ctx context.Context, caller, target domain.Identity, verified bool) error
	AddParent(ctx context.Context, caller, parent domain.Identity) error
	AddChild(ctx context.Context, caller, child domain.Identity) error
	AddSibling(ctx context.Context, caller, sibling domain.Identity) error
	VerifyRelation(ctx context.Context, caller, relative domain.Identity, kind domain.RelationKind, verifier domain.Identity) error
	Pause(ctx context.Context, caller domain.Identity) error
	Unpause(ctx context.Context, caller domain.Identity) error
	SetAdmin(ctx context.Context, caller, newAdmin domain.Identity) error

	Profile(ctx context.Context, id domain.Identity) (registry.Profile, error)
	Relations(ctx context.Context, id domain.Identity) (registry.Relations, error)
	Attestation(ctx context.Context, id, relative domain.Identity, kind domain.RelationKind) (registry.Attestation, error)
	AuditEntry(ctx context.Context, id domain.Identity, seq uint64) (registry.AuditEntry, error)
	AuditCount(ctx context.Context, id domain.Identity) (uint64, error)
}

// Handler wires registry endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a registry handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the authenticated registry and admin endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registry/users", h.HandleRegister)
	r.Put("/registry/users/me/metadata", h.HandleUpdateMetadata)
	r.Post("/registry/relations/parents", h.HandleAddParent)
	r.Post("/registry/relations/children", h.HandleAddChild)
	r.Post("/registry/relations/siblings", h.HandleAddSibling)
	r.Post("/registry/attestations", h.HandleVerifyRelation)

	r.Get("/registry/users/{identity}", h.HandleGetProfile)
	r.Get("/registry/users/{identity}/relations", h.HandleGetRelations)
	r.Get("/registry/users/{identity}/audit", h.HandleGetAuditTrail)
	r.Get("/registry/users/{identity}/audit/{seq}", h.HandleGetAuditEntry)
	r.Get("/registry/attestations/{identity}/{relative}/{kind}", h.HandleGetAttestation)

	r.Put("/admin/users/{identity}/verified", h.HandleSetVerified)
	r.Post("/admin/pause", h.HandlePause)
	r.Post("/admin/unpause", h.HandleUnpause)
	r.Put("/admin/admin", h.HandleSetAdmin)
}

// caller pulls the authenticated identity out of the context; the auth
// middleware guarantees it is set on every route mounted here.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	caller := requestcontext.Caller(r.Context())
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return caller, true
}

// HandleRegister handles POST /registry/users.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.Register(ctx, caller, req.Metadata); err != nil {
		h.logger.WarnContext(ctx, "registration rejected",
			"request_id", requestID,
			"identity", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, StatusResponse{Status: "registered"})
}

// HandleUpdateMetadata handles PUT /registry/users/me/metadata.
func (h *Handler) HandleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateMetadataRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.UpdateMetadata(ctx, caller, req.Metadata); err != nil {
		h.logger.WarnContext(ctx, "metadata update rejected",
			"request_id", requestID,
			"identity", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Status: "updated"})
}

// HandleAddParent handles POST /registry/relations/parents.
func (h *Handler) HandleAddParent(w http.ResponseWriter, r *http.Request) {
	h.handleAddRelation(w, r, "parent", h.service.AddParent)
}

// HandleAddChild handles POST /registry/relations/children.
func (h *Handler) HandleAddChild(w http.ResponseWriter, r *http.Request) {
	h.handleAddRelation(w, r, "child", h.service.AddChild)
}

// HandleAddSibling handles POST /registry/relations/siblings.
func (h *Handler) HandleAddSibling(w http.ResponseWriter, r *http.Request) {
	h.handleAddRelation(w, r, "sibling", h.service.AddSibling)
}

func (h *Handler) handleAddRelation(w http.ResponseWriter, r *http.Request, kind string, add func(context.Context, domain.Identity, domain.Identity) error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AddRelationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := add(ctx, caller, req.ParsedRelative()); err != nil {
		h.logger.WarnContext(ctx, "relation rejected",
			"request_id", requestID,
			"identity", caller,
			"relative", req.Relative,
			"kind", kind,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, StatusResponse{Status: "added"})
}

// HandleVerifyRelation handles POST /registry/attestations.
func (h *Handler) HandleVerifyRelation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[VerifyRelationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.VerifyRelation(ctx, caller, req.ParsedRelative(), req.ParsedKind(), req.ParsedVerifier()); err != nil {
		h.logger.WarnContext(ctx, "attestation rejected",
			"request_id", requestID,
			"identity", caller,
			"relative", req.Relative,
			"kind", req.Kind,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, StatusResponse{Status: "attested"})
}

// HandleGetProfile handles GET /registry/users/{identity}.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	profile, err := h.service.Profile(ctx, identity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProfile(identity, profile))
}

// HandleGetRelations handles GET /registry/users/{identity}/relations.
func (h *Handler) HandleGetRelations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	relations, err := h.service.Relations(ctx, identity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRelations(identity, relations))
}

// HandleGetAuditTrail handles GET /registry/users/{identity}/audit. The trail
// is returned whole; bounded list sizes keep it small.
func (h *Handler) HandleGetAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	count, err := h.service.AuditCount(ctx, identity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries := make([]AuditEntryResponse, 0, count)
	for seq := uint64(1); seq <= count; seq++ {
		entry, err := h.service.AuditEntry(ctx, identity, seq)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		entries = append(entries, FromAuditEntry(seq, entry))
	}
	httputil.WriteJSON(w, http.StatusOK, AuditTrailResponse{
		Identity: identity.String(),
		Count:    count,
		Entries:  entries,
	})
}

// HandleGetAuditEntry handles GET /registry/users/{identity}/audit/{seq}.
func (h *Handler) HandleGetAuditEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	seq, err := parseSeq(chi.URLParam(r, "seq"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entry, err := h.service.AuditEntry(ctx, identity, seq)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAuditEntry(seq, entry))
}

// HandleGetAttestation handles GET /registry/attestations/{identity}/{relative}/{kind}.
func (h *Handler) HandleGetAttestation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	relative, err := domain.ParseIdentity(chi.URLParam(r, "relative"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	kind, err := domain.ParseRelationKind(chi.URLParam(r, "kind"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	attestation, err := h.service.Attestation(ctx, identity, relative, kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAttestation(identity, relative, kind, attestation))
}

// HandleSetVerified handles PUT /admin/users/{identity}/verified. Whether the
// caller may do this is the domain's call, not the transport's.
func (h *Handler) HandleSetVerified(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	target, err := domain.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetVerifiedRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.SetVerified(ctx, caller, target, req.Verified); err != nil {
		h.logger.WarnContext(ctx, "set-verified rejected",
			"request_id", requestID,
			"identity", target,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Status: "updated"})
}

// HandlePause handles POST /admin/pause.
func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.handlePauseFlag(w, r, h.service.Pause, "paused")
}

// HandleUnpause handles POST /admin/unpause.
func (h *Handler) HandleUnpause(w http.ResponseWriter, r *http.Request) {
	h.handlePauseFlag(w, r, h.service.Unpause, "unpaused")
}

func (h *Handler) handlePauseFlag(w http.ResponseWriter, r *http.Request, op func(context.Context, domain.Identity) error, status string) {
	ctx := r.Context()
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := op(ctx, caller); err != nil {
		h.logger.WarnContext(ctx, "pause toggle rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Status: status})
}

// HandleSetAdmin handles PUT /admin/admin.
func (h *Handler) HandleSetAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetAdminRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.SetAdmin(ctx, caller, req.ParsedAdmin()); err != nil {
		h.logger.WarnContext(ctx, "admin handover rejected",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{Status: "updated"})
}
