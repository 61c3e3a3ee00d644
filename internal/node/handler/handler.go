package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"catalog/internal/node"
	"catalog/pkg/domain"
	"catalog/pkg/platform/httputil"
)

// Service defines the interface for node graph operations.
type Service interface {
	CreateNode(ctx context.Context, actor domain.Address, req node.CreateRequest) (domain.NodeID, error)
	Get(ctx context.Context, id domain.NodeID) (*node.Node, error)
	StartOwnerTransfer(ctx context.Context, actor domain.Address, id domain.NodeID, to domain.AccountID) error
	CompleteOwnerTransfer(ctx context.Context, actor domain.Address, id domain.NodeID) error
	RemoveOwner(ctx context.Context, actor domain.Address, id domain.NodeID) error
	SetGroupNode(ctx context.Context, actor domain.Address, id, newGroup domain.NodeID) error
	SetParentNode(ctx context.Context, actor domain.Address, id, newParent domain.NodeID) error
	SetController(ctx context.Context, actor domain.Address, id domain.NodeID, controller domain.Address, enabled bool) error
	IsAuthorizedAddressForNode(ctx context.Context, id domain.NodeID, addr domain.Address) (bool, error)
	Broadcast(ctx context.Context, actor domain.Address, id domain.NodeID, topic, message string) error
}

// Handler wires node graph endpoints to the node service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts node endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/nodes", h.HandleCreate)
	r.Get("/nodes/{id}", h.HandleGet)
	r.Post("/nodes/{id}/transfer", h.HandleStartTransfer)
	r.Post("/nodes/{id}/transfer/complete", h.HandleCompleteTransfer)
	r.Delete("/nodes/{id}/owner", h.HandleRemoveOwner)
	r.Put("/nodes/{id}/group", h.HandleSetGroup)
	r.Put("/nodes/{id}/parent", h.HandleSetParent)
	r.Put("/nodes/{id}/controllers", h.HandleSetController)
	r.Get("/nodes/{id}/authorized/{address}", h.HandleIsAuthorized)
	r.Post("/nodes/{id}/broadcast", h.HandleBroadcast)
}

type createRequest struct {
	Type        uint8    `json:"node_type"`
	Owner       uint64   `json:"owner"`
	Parent      uint64   `json:"parent"`
	Group       uint64   `json:"group_node"`
	Controllers []string `json:"controllers,omitempty"`
	Metadata    string   `json:"metadata,omitempty"`
}

// HandleCreate handles POST /nodes requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[createRequest](w, r, h.logger)
	if !ok {
		return
	}

	controllers := make([]domain.Address, 0, len(req.Controllers))
	for _, c := range req.Controllers {
		controllers = append(controllers, domain.Address(c))
	}
	id, err := h.service.CreateNode(ctx, actor, node.CreateRequest{
		Type:        domain.NodeType(req.Type),
		Owner:       domain.AccountID(req.Owner),
		Parent:      domain.NodeID(req.Parent),
		Group:       domain.NodeID(req.Group),
		Controllers: controllers,
		Metadata:    req.Metadata,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]domain.NodeID{"node_id": id})
}

// HandleGet handles GET /nodes/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	n, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

type startTransferRequest struct {
	To uint64 `json:"to_account"`
}

// HandleStartTransfer handles POST /nodes/{id}/transfer requests. A zero
// to_account cancels an in-flight transfer.
func (h *Handler) HandleStartTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[startTransferRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.StartOwnerTransfer(r.Context(), actor, id, domain.AccountID(req.To)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCompleteTransfer handles POST /nodes/{id}/transfer/complete requests.
func (h *Handler) HandleCompleteTransfer(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	if err := h.service.CompleteOwnerTransfer(r.Context(), actor, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveOwner handles DELETE /nodes/{id}/owner requests.
func (h *Handler) HandleRemoveOwner(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveOwner(r.Context(), actor, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setNodeRefRequest struct {
	Node uint64 `json:"node"`
}

// HandleSetGroup handles PUT /nodes/{id}/group requests.
func (h *Handler) HandleSetGroup(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[setNodeRefRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.SetGroupNode(r.Context(), actor, id, domain.NodeID(req.Node)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetParent handles PUT /nodes/{id}/parent requests.
func (h *Handler) HandleSetParent(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[setNodeRefRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.SetParentNode(r.Context(), actor, id, domain.NodeID(req.Node)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setControllerRequest struct {
	Controller string `json:"controller"`
	Enabled    bool   `json:"enabled"`
}

// HandleSetController handles PUT /nodes/{id}/controllers requests.
func (h *Handler) HandleSetController(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[setControllerRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.SetController(r.Context(), actor, id, domain.Address(req.Controller), req.Enabled); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleIsAuthorized handles GET /nodes/{id}/authorized/{address} requests.
func (h *Handler) HandleIsAuthorized(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	addr := domain.Address(chi.URLParam(r, "address"))

	authorized, err := h.service.IsAuthorizedAddressForNode(r.Context(), id, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"authorized": authorized})
}

type broadcastRequest struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

// HandleBroadcast handles POST /nodes/{id}/broadcast requests.
func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[broadcastRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Broadcast(r.Context(), actor, id, req.Topic, req.Message); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func nodeID(w http.ResponseWriter, r *http.Request) (domain.NodeID, bool) {
	id, err := domain.ParseNodeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return id, true
}
