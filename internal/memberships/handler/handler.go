package handler

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"catalog/internal/memberships"
	"catalog/pkg/domain"
	dErrors "catalog/pkg/domain-errors"
	"catalog/pkg/platform/httputil"
)

// Service defines the interface for membership roster operations.
type Service interface {
	CreateMemberships(ctx context.Context, actor domain.Address, params memberships.CreateParams) (uuid.UUID, error)
	SetOwner(ctx context.Context, actor, newOwner domain.Address, id uuid.UUID) error
	SetMembershipListRoot(ctx context.Context, actor domain.Address, id uuid.UUID, root []byte, size uint64) error
	SetMetadataResolver(ctx context.Context, actor domain.Address, id uuid.UUID, name string) error
	BatchMintAndBurn(ctx context.Context, actor domain.Address, id uuid.UUID, mints []memberships.Mint, burns []domain.TokenID) error
	UpdateMemberships(ctx context.Context, actor domain.Address, id uuid.UUID, root []byte, size uint64, mints []memberships.Mint, burns []domain.TokenID) error
	MintMemberships(ctx context.Context, actor domain.Address, id uuid.UUID, mints []memberships.ProofMint) error
	BurnMembership(ctx context.Context, actor domain.Address, id uuid.UUID, token domain.TokenID) error
	AdminTransferFrom(ctx context.Context, actor domain.Address, id uuid.UUID, from, to domain.Address, token domain.TokenID) error
	Get(ctx context.Context, id uuid.UUID) (*memberships.Memberships, error)
	BalanceOf(ctx context.Context, id uuid.UUID, addr domain.Address) (uint64, error)
	OwnerOf(ctx context.Context, id uuid.UUID, token domain.TokenID) (domain.Address, error)
	TotalSupply(ctx context.Context, id uuid.UUID) (uint64, error)
	TotalMinted(ctx context.Context, id uuid.UUID) (uint64, error)
	GetTokenData(ctx context.Context, id uuid.UUID, token domain.TokenID) (*memberships.TokenData, error)
	TokenURI(ctx context.Context, id uuid.UUID, token domain.TokenID) (string, error)
	ContractURI(ctx context.Context, id uuid.UUID) (string, error)
}

// Handler wires membership roster endpoints to the memberships service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts roster endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/memberships", h.HandleCreate)
	r.Get("/memberships/{id}", h.HandleGet)
	r.Put("/memberships/{id}/owner", h.HandleSetOwner)
	r.Put("/memberships/{id}/list-root", h.HandleSetListRoot)
	r.Put("/memberships/{id}/resolver", h.HandleSetResolver)
	r.Post("/memberships/{id}/batch", h.HandleBatchMintAndBurn)
	r.Post("/memberships/{id}/update", h.HandleUpdate)
	r.Post("/memberships/{id}/claim", h.HandleClaim)
	r.Delete("/memberships/{id}/tokens/{token}", h.HandleBurn)
	r.Post("/memberships/{id}/tokens/{token}/admin-transfer", h.HandleAdminTransfer)
	r.Get("/memberships/{id}/tokens/{token}", h.HandleToken)
	r.Get("/memberships/{id}/balances/{address}", h.HandleBalance)
	r.Get("/memberships/{id}/supply", h.HandleSupply)
}

type createRequest struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	BaseURI     string `json:"base_uri,omitempty"`
	Owner       string `json:"owner,omitempty"`
	ControlNode uint64 `json:"control_node"`
}

// HandleCreate handles POST /memberships requests. The owner defaults to
// the caller when omitted.
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
	id, err := h.service.CreateMemberships(r.Context(), actor, memberships.CreateParams{
		Name:        req.Name,
		Symbol:      req.Symbol,
		BaseURI:     req.BaseURI,
		Owner:       owner,
		ControlNode: domain.NodeID(req.ControlNode),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]uuid.UUID{"memberships_id": id})
}

// HandleGet handles GET /memberships/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := rosterID(w, r)
	if !ok {
		return
	}
	m, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, m)
}

type setOwnerRequest struct {
	Owner string `json:"owner"`
}

// HandleSetOwner handles PUT /memberships/{id}/owner requests.
func (h *Handler) HandleSetOwner(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := rosterID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[setOwnerRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.SetOwner(r.Context(), actor, domain.Address(req.Owner), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type listRootRequest struct {
	Root string `json:"root"`
	Size uint64 `json:"size"`
}

// HandleSetListRoot handles PUT /memberships/{id}/list-root requests. The
// root is hex encoded.
func (h *Handler) HandleSetListRoot(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := rosterID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[listRootRequest](w, r, h.logger)
	if !ok {
		return
	}
	root, ok := decodeRoot(w, req.Root)
	if !ok {
		return
	}

	if err := h.service.SetMembershipListRoot(r.Context(), actor, id, root, req.Size); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setResolverRequest struct {
	Resolver string `json:"resolver"`
}

// HandleSetResolver handles PUT /memberships/{id}/resolver requests.
func (h *Handler) HandleSetResolver(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := rosterID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[setResolverRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.SetMetadataResolver(r.Context(), actor, id, req.Resolver); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type mintEntry struct {
	To       string `json:"to"`
	Sequence uint16 `json:"sequence,omitempty"`
}

type batchRequest struct {
	Mints []mintEntry `json:"mints,omitempty"`
	Burns []uint64    `json:"burns,omitempty"`
}

// HandleBatchMintAndBurn handles POST /memberships/{id}/batch requests.
func (h *Handler) HandleBatchMintAndBurn(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := rosterID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[batchRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.BatchMintAndBurn(r.Context(), actor, id, toMints(req.Mints), toTokenIDs(req.Burns)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateRequest struct {
	Root  string      `json:"root"`
	Size  uint64      `json:"size"`
	Mints []mintEntry `json:"mints,omitempty"`
	Burns []uint64    `json:"burns,omitempty"`
}

// HandleUpdate handles POST /memberships/{id}/update requests: root swap
// plus batch edit.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := rosterID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[updateRequest](w, r, h.logger)
	if !ok {
		return
	}
	root, ok := decodeRoot(w, req.Root)
	if !ok {
		return
	}

	if err := h.service.UpdateMemberships(r.Context(), actor, id, root, req.Size, toMints(req.Mints), toTokenIDs(req.Burns)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type claimEntry struct {
	To       string   `json:"to"`
	Sequence uint16   `json:"sequence,omitempty"`
	Index    uint64   `json:"index"`
	Proof    []string `json:"proof"`
}

type claimRequest struct {
	Mints []claimEntry `json:"mints"`
}

// HandleClaim handles POST /memberships/{id}/claim requests. Proof hashes
// are hex encoded, ordered leaf to root.
func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := rosterID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[claimRequest](w, r, h.logger)
	if !ok {
		return
	}

	mints := make([]memberships.ProofMint, 0, len(req.Mints))
	for _, entry := range req.Mints {
		proof := make([][]byte, 0, len(entry.Proof))
		for _, hash := range entry.Proof {
			decoded, ok := decodeRoot(w, hash)
			if !ok {
				return
			}
			proof = append(proof, decoded)
		}
		mints = append(mints, memberships.ProofMint{
			To:       domain.Address(entry.To),
			Sequence: domain.SequenceID(entry.Sequence),
			Index:    entry.Index,
			Proof:    proof,
		})
	}

	if err := h.service.MintMemberships(r.Context(), actor, id, mints); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// HandleBurn handles DELETE /memberships/{id}/tokens/{token} requests.
func (h *Handler) HandleBurn(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := rosterID(w, r)
	if !ok {
		return
	}
	token, ok := tokenID(w, r)
	if !ok {
		return
	}

	if err := h.service.BurnMembership(r.Context(), actor, id, token); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adminTransferRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// HandleAdminTransfer handles POST
// /memberships/{id}/tokens/{token}/admin-transfer requests.
func (h *Handler) HandleAdminTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := rosterID(w, r)
	if !ok {
		return
	}
	token, ok := tokenID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[adminTransferRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.AdminTransferFrom(r.Context(), actor, id,
		domain.Address(req.From), domain.Address(req.To), token); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tokenResponse struct {
	Token    domain.TokenID    `json:"token"`
	Owner    domain.Address    `json:"owner"`
	Sequence domain.SequenceID `json:"sequence"`
	MintedAt int64             `json:"minted_at"`
	URI      string            `json:"uri"`
}

// HandleToken handles GET /memberships/{id}/tokens/{token} requests.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	id, ok := rosterID(w, r)
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
		MintedAt: data.MintedAt.Unix(),
		URI:      uri,
	})
}

// HandleBalance handles GET /memberships/{id}/balances/{address} requests.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := rosterID(w, r)
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

// HandleSupply handles GET /memberships/{id}/supply requests.
func (h *Handler) HandleSupply(w http.ResponseWriter, r *http.Request) {
	id, ok := rosterID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	supply, err := h.service.TotalSupply(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	minted, err := h.service.TotalMinted(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]uint64{
		"total_supply": supply,
		"total_minted": minted,
	})
}

func toMints(entries []mintEntry) []memberships.Mint {
	mints := make([]memberships.Mint, 0, len(entries))
	for _, e := range entries {
		mints = append(mints, memberships.Mint{
			To:       domain.Address(e.To),
			Sequence: domain.SequenceID(e.Sequence),
		})
	}
	return mints
}

func toTokenIDs(raw []uint64) []domain.TokenID {
	tokens := make([]domain.TokenID, 0, len(raw))
	for _, t := range raw {
		tokens = append(tokens, domain.TokenID(t))
	}
	return tokens
}

func decodeRoot(w http.ResponseWriter, raw string) ([]byte, bool) {
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid hex hash"))
		return nil, false
	}
	return decoded, true
}

func rosterID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid memberships id"))
		return uuid.Nil, false
	}
	return id, true
}

func tokenID(w http.ResponseWriter, r *http.Request) (domain.TokenID, bool) {
	token, err := domain.ParseTokenID(chi.URLParam(r, "token"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return token, true
}
