// Package httptransport assembles the public HTTP surface. It stays thin:
// feature handlers register their own routes, and this package only stacks
// the shared middleware and operational endpoints around them.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"catalog/internal/platform/middleware"
)

// Registrar is anything that mounts routes on the router. Every feature
// handler satisfies it.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter wires the shared middleware stack, the operational endpoints,
// and every feature handler.
func NewRouter(validator middleware.TokenValidator, logger *slog.Logger, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Authenticate(validator, logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}
