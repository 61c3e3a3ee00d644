package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"catalog/internal/collection"
	"catalog/pkg/domain"
	dErrors "catalog/pkg/domain-errors"
	"catalog/pkg/platform/httputil"
)

// Service defines the interface for collection operations.
type Service interface {
	CreateCollection(ctx context.Context, actor domain.Address, params collection.CreateParams) (uuid.UUID, error)
	SetOwner(ctx context.Context, actor domain.Address, id uuid.UUID, newOwner domain.Address) error
	ConfigureSequence(ctx context.Context, actor domain.Address, id uuid.UUID, cfg collection.SequenceConfig, engineData []byte) (domain.SequenceID, error)
	Get(ctx context.Context, id uuid.UUID) (*collection.Collection, error)
	GetSequence(ctx context.Context, id uuid.UUID, seqID domain.SequenceID) (*collection.Sequence, error)
	OwnerOf(ctx context.Context, id uuid.UUID, token domain.TokenID) (domain.Address, error)
	BalanceOf(ctx context.Context, id uuid.UUID, addr domain.Address) (uint64, error)
	TotalSupply(ctx context.Context, id uuid.UUID) (uint64, error)
	GetTokenData(ctx context.Context, id uuid.UUID, token domain.TokenID) (*collection.TokenData, error)
	TokenURI(ctx context.Context, id uuid.UUID, token domain.TokenID) (string, error)
	RoyaltyInfo(ctx context.Context, id uuid.UUID, token domain.TokenID, salePrice domain.Amount) (domain.Address, domain.Amount, error)
}

// Handler wires collection endpoints to the collection service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts collection endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/collections", h.HandleCreate)
	r.Get("/collections/{id}", h.HandleGet)
	r.Put("/collections/{id}/owner", h.HandleSetOwner)
	r.Post("/collections/{id}/sequences", h.HandleConfigureSequence)
	r.Get("/collections/{id}/sequences/{seq}", h.HandleGetSequence)
	r.Get("/collections/{id}/supply", h.HandleTotalSupply)
	r.Get("/collections/{id}/balances/{address}", h.HandleBalance)
	r.Get("/collections/{id}/tokens/{token}", h.HandleToken)
	r.Get("/collections/{id}/tokens/{token}/royalty", h.HandleRoyalty)
}

type createRequest struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	ContractURI string `json:"contract_uri,omitempty"`
	Metadata    string `json:"metadata,omitempty"`
	Owner       string `json:"owner,omitempty"`
	ControlNode uint64 `json:"control_node"`
}

// HandleCreate handles POST /collections requests. The owner defaults to the
// caller when omitted.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[createRequest](w, r, h.logger)
	if !ok {
		return
	}

	owner := domain.Address(req.Owner)
	if owner.IsZero() {
		owner = actor
	}
	id, err := h.service.CreateCollection(r.Context(), actor, collection.CreateParams{
		Name:        req.Name,
		Symbol:      req.Symbol,
		ContractURI: req.ContractURI,
		Metadata:    req.Metadata,
		Owner:       owner,
		ControlNode: domain.NodeID(req.ControlNode),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]uuid.UUID{"collection_id": id})
}

// HandleGet handles GET /collections/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := collectionID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

type setOwnerRequest struct {
	Owner string `json:"owner"`
}

// HandleSetOwner handles PUT /collections/{id}/owner requests.
func (h *Handler) HandleSetOwner(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := collectionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[setOwnerRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.SetOwner(r.Context(), actor, id, domain.Address(req.Owner)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type configureSequenceRequest struct {
	DropNode     uint64          `json:"drop_node"`
	Engine       string          `json:"engine"`
	SealedBefore int64           `json:"sealed_before_timestamp,omitempty"`
	SealedAfter  int64           `json:"sealed_after_timestamp,omitempty"`
	MaxSupply    uint64          `json:"max_supply,omitempty"`
	Minted       uint64          `json:"minted,omitempty"`
	EngineData   json.RawMessage `json:"engine_data,omitempty"`
}

// HandleConfigureSequence handles POST /collections/{id}/sequences requests.
// The engine_data payload passes through opaque to the named engine.
func (h *Handler) HandleConfigureSequence(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := collectionID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[configureSequenceRequest](w, r, h.logger)
	if !ok {
		return
	}

	seqID, err := h.service.ConfigureSequence(r.Context(), actor, id, collection.SequenceConfig{
		DropNode:     domain.NodeID(req.DropNode),
		Engine:       domain.Address(req.Engine),
		SealedBefore: req.SealedBefore,
		SealedAfter:  req.SealedAfter,
		MaxSupply:    req.MaxSupply,
		Minted:       req.Minted,
	}, req.EngineData)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]domain.SequenceID{"sequence_id": seqID})
}

// HandleGetSequence handles GET /collections/{id}/sequences/{seq} requests.
func (h *Handler) HandleGetSequence(w http.ResponseWriter, r *http.Request) {
	id, ok := collectionID(w, r)
	if !ok {
		return
	}
	seqID, ok := sequenceID(w, r)
	if !ok {
		return
	}

	seq, err := h.service.GetSequence(r.Context(), id, seqID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, seq)
}

// HandleTotalSupply handles GET /collections/{id}/supply requests.
func (h *Handler) HandleTotalSupply(w http.ResponseWriter, r *http.Request) {
	id, ok := collectionID(w, r)
	if !ok {
		return
	}
	supply, err := h.service.TotalSupply(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"total_supply": supply})
}

// HandleBalance handles GET /collections/{id}/balances/{address} requests.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := collectionID(w, r)
	if !ok {
		return
	}
	addr := domain.Address(chi.URLParam(r, "address"))

	balance, err := h.service.BalanceOf(r.Context(), id, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{"balance": balance})
}

type tokenResponse struct {
	Token    domain.TokenID    `json:"token"`
	Owner    domain.Address    `json:"owner"`
	Sequence domain.SequenceID `json:"sequence"`
	Edition  uint64            `json:"edition"`
	MintedAt int64             `json:"minted_at"`
	URI      string            `json:"uri"`
}

// HandleToken handles GET /collections/{id}/tokens/{token} requests.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	id, ok := collectionID(w, r)
	if !ok {
		return
	}
	token, ok := tokenID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	data, err := h.service.GetTokenData(ctx, id, token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	owner, err := h.service.OwnerOf(ctx, id, token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	uri, err := h.service.TokenURI(ctx, id, token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{
		Token:    token,
		Owner:    owner,
		Sequence: data.Sequence,
		Edition:  data.Edition,
		MintedAt: data.MintedAt.Unix(),
		URI:      uri,
	})
}

type royaltyResponse struct {
	Recipient domain.Address `json:"recipient"`
	Amount    domain.Amount  `json:"amount"`
}

// HandleRoyalty handles GET /collections/{id}/tokens/{token}/royalty
// requests. Expects a sale_price query parameter.
func (h *Handler) HandleRoyalty(w http.ResponseWriter, r *http.Request) {
	id, ok := collectionID(w, r)
	if !ok {
		return
	}
	token, ok := tokenID(w, r)
	if !ok {
		return
	}
	salePrice, err := domain.ParseAmount(r.URL.Query().Get("sale_price"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	recipient, amount, err := h.service.RoyaltyInfo(r.Context(), id, token, salePrice)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, royaltyResponse{Recipient: recipient, Amount: amount})
}

func collectionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid collection id"))
		return uuid.Nil, false
	}
	return id, true
}

func sequenceID(w http.ResponseWriter, r *http.Request) (domain.SequenceID, bool) {
	id, err := domain.ParseSequenceID(chi.URLParam(r, "seq"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return id, true
}

func tokenID(w http.ResponseWriter, r *http.Request) (domain.TokenID, bool) {
	id, err := domain.ParseTokenID(chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return id, true
}
