package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"catalog/pkg/domain"
	"catalog/pkg/platform/httputil"
	"catalog/pkg/requestcontext"
)

// Service defines the interface for account operations.
type Service interface {
	Register(ctx context.Context, actor, subject domain.Address, metadata string) (domain.AccountID, error)
	Resolve(ctx context.Context, addr domain.Address) (domain.AccountID, error)
	Transfer(ctx context.Context, actor, newAddr domain.Address) (domain.AccountID, error)
	SetIssuer(ctx context.Context, actor, issuer domain.Address, enabled bool) error
	Broadcast(ctx context.Context, actor domain.Address, topic, message string) error
}

// Handler wires account endpoints to the account service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts account endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/accounts", h.HandleRegister)
	r.Get("/accounts/{address}", h.HandleResolve)
	r.Post("/accounts/transfer", h.HandleTransfer)
	r.Put("/accounts/issuers", h.HandleSetIssuer)
	r.Post("/accounts/broadcast", h.HandleBroadcast)
}

type registerRequest struct {
	Subject  string `json:"subject"`
	Metadata string `json:"metadata,omitempty"`
}

type accountResponse struct {
	AccountID domain.AccountID `json:"account_id"`
	Address   string           `json:"address"`
}

// HandleRegister handles POST /accounts requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[registerRequest](w, r, h.logger)
	if !ok {
		return
	}

	subject := domain.Address(req.Subject)
	if subject.IsZero() {
		subject = actor
	}
	id, err := h.service.Register(ctx, actor, subject, req.Metadata)
	if err != nil {
		h.logger.WarnContext(ctx, "account registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"subject", subject,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, accountResponse{AccountID: id, Address: subject.String()})
}

// HandleResolve handles GET /accounts/{address} requests. Unregistered
// addresses resolve to account id zero rather than failing.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr := domain.Address(chi.URLParam(r, "address"))

	id, err := h.service.Resolve(ctx, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, accountResponse{AccountID: id, Address: addr.String()})
}

type transferRequest struct {
	NewAddress string `json:"new_address"`
}

// HandleTransfer handles POST /accounts/transfer requests.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[transferRequest](w, r, h.logger)
	if !ok {
		return
	}

	id, err := h.service.Transfer(ctx, actor, domain.Address(req.NewAddress))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, accountResponse{AccountID: id, Address: req.NewAddress})
}

type setIssuerRequest struct {
	Issuer  string `json:"issuer"`
	Enabled bool   `json:"enabled"`
}

// HandleSetIssuer handles PUT /accounts/issuers requests.
func (h *Handler) HandleSetIssuer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[setIssuerRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.SetIssuer(ctx, actor, domain.Address(req.Issuer), req.Enabled); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type broadcastRequest struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

// HandleBroadcast handles POST /accounts/broadcast requests.
func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := httputil.RequireActor(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[broadcastRequest](w, r, h.logger)
	if !ok {
		return
	}

	if err := h.service.Broadcast(ctx, actor, req.Topic, req.Message); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

