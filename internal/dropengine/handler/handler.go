package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"catalog/internal/dropengine"
	"catalog/pkg/domain"
	dErrors "catalog/pkg/domain-errors"
	"catalog/pkg/platform/httputil"
)

// Service defines the interface for issuance engine operations.
type Service interface {
	Mint(ctx context.Context, actor domain.Address, req dropengine.MintRequest) ([]domain.TokenID, error)
	PermissionedMint(ctx context.Context, actor domain.Address, collectionID uuid.UUID, seqID domain.SequenceID, to domain.Address) (domain.TokenID, error)
	ClearMintAuthority(ctx context.Context, actor domain.Address, collectionID uuid.UUID, seqID domain.SequenceID) error
	GetDrop(ctx context.Context, collectionID uuid.UUID, seqID domain.SequenceID) (*dropengine.Drop, error)
	CurrentPrice(ctx context.Context, collectionID uuid.UUID, seqID domain.SequenceID) (domain.Amount, error)
	PrimarySaleFeeBps() uint16
	SetPrimarySaleFeeBps(ctx context.Context, actor domain.Address, bps uint16) error
	TransferOwnership(ctx context.Context, actor, newOwner domain.Address) error
	TransferFeesToOwner(ctx context.Context) error
}

// Handler wires issuance engine endpoints to the engine service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts engine endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/engine/mint", h.HandleMint)
	r.Post("/engine/permissioned-mint", h.HandlePermissionedMint)
	r.Get("/engine/collections/{id}/sequences/{seq}/drop", h.HandleGetDrop)
	r.Get("/engine/collections/{id}/sequences/{seq}/price", h.HandleCurrentPrice)
	r.Delete("/engine/collections/{id}/sequences/{seq}/authority", h.HandleClearAuthority)
	r.Get("/engine/fees", h.HandleGetFee)
	r.Put("/engine/fees", h.HandleSetFee)
	r.Post("/engine/fees/sweep", h.HandleSweepFees)
	r.Put("/engine/owner", h.HandleTransferOwnership)
}

type mintRequest struct {
	Collection string `json:"collection_id"`
	Sequence   uint16 `json:"sequence"`
	Quantity   uint64 `json:"quantity"`
	Payment    uint64 `json:"payment"`
}

// HandleMint handles POST /engine/mint requests.
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[mintRequest](w, r, h.logger)
	if !ok {
		return
	}
	id, ok := parseCollection(w, req.Collection)
	if !ok {
		return
	}

	tokens, err := h.service.Mint(r.Context(), actor, dropengine.MintRequest{
		Collection: id,
		Sequence:   domain.SequenceID(req.Sequence),
		Quantity:   req.Quantity,
		Payment:    domain.Amount(req.Payment),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string][]domain.TokenID{"tokens": tokens})
}

type permissionedMintRequest struct {
	Collection string `json:"collection_id"`
	Sequence   uint16 `json:"sequence"`
	To         string `json:"to"`
}

// HandlePermissionedMint handles POST /engine/permissioned-mint requests.
// Only the sequence's mint authority may call it.
func (h *Handler) HandlePermissionedMint(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[permissionedMintRequest](w, r, h.logger)
	if !ok {
		return
	}
	id, ok := parseCollection(w, req.Collection)
	if !ok {
		return
	}

	token, err := h.service.PermissionedMint(r.Context(), actor, id,
		domain.SequenceID(req.Sequence), domain.Address(req.To))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]domain.TokenID{"token": token})
}

type dropResponse struct {
	Drop         *dropengine.Drop `json:"drop"`
	CurrentPrice domain.Amount    `json:"current_price"`
}

// HandleGetDrop handles GET /engine/collections/{id}/sequences/{seq}/drop
// requests, returning the pricing record and the price as of now.
func (h *Handler) HandleGetDrop(w http.ResponseWriter, r *http.Request) {
	id, ok := collectionID(w, r)
	if !ok {
		return
	}
	seqID, ok := sequenceID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	drop, err := h.service.GetDrop(ctx, id, seqID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	price, err := h.service.CurrentPrice(ctx, id, seqID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dropResponse{Drop: drop, CurrentPrice: price})
}

// HandleCurrentPrice handles GET
// /engine/collections/{id}/sequences/{seq}/price requests, returning the
// unit price as of now.
func (h *Handler) HandleCurrentPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := collectionID(w, r)
	if !ok {
		return
	}
	seqID, ok := sequenceID(w, r)
	if !ok {
		return
	}

	price, err := h.service.CurrentPrice(r.Context(), id, seqID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]domain.Amount{"current_price": price})
}

// HandleClearAuthority handles DELETE
// /engine/collections/{id}/sequences/{seq}/authority requests.
func (h *Handler) HandleClearAuthority(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := collectionID(w, r)
	if !ok {
		return
	}
	seqID, ok := sequenceID(w, r)
	if !ok {
		return
	}

	if err := h.service.ClearMintAuthority(r.Context(), actor, id, seqID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetFee handles GET /engine/fees requests.
func (h *Handler) HandleGetFee(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]uint16{"primary_sale_fee_bps": h.service.PrimarySaleFeeBps()})
}

type setFeeRequest struct {
	Bps uint16 `json:"primary_sale_fee_bps"`
}

// HandleSetFee handles PUT /engine/fees requests. Owner only.
func (h *Handler) HandleSetFee(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[setFeeRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.SetPrimarySaleFeeBps(r.Context(), actor, req.Bps); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSweepFees handles POST /engine/fees/sweep requests. Anyone may
// trigger the sweep; the funds only ever move to the engine owner.
func (h *Handler) HandleSweepFees(w http.ResponseWriter, r *http.Request) {
	if err := h.service.TransferFeesToOwner(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferOwnershipRequest struct {
	Owner string `json:"owner"`
}

// HandleTransferOwnership handles PUT /engine/owner requests.
func (h *Handler) HandleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[transferOwnershipRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.TransferOwnership(r.Context(), actor, domain.Address(req.Owner)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseCollection(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid collection id"))
		return uuid.Nil, false
	}
	return id, true
}

func collectionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return parseCollection(w, chi.URLParam(r, "id"))
}

func sequenceID(w http.ResponseWriter, r *http.Request) (domain.SequenceID, bool) {
	id, err := domain.ParseSequenceID(chi.URLParam(r, "seq"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return id, true
}
