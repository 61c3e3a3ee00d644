// Package middleware carries the HTTP middlewares shared by all routes:
// request correlation IDs and bearer-token authentication.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"catalog/pkg/domain"
	dErrors "catalog/pkg/domain-errors"
	"catalog/pkg/platform/httputil"
	"catalog/pkg/requestcontext"
)

const requestIDHeader = "X-Request-Id"

// RequestID injects a correlation ID into the request context and echoes it
// in the response. An incoming header is honored so IDs survive proxies.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenValidator validates a bearer token and returns the caller address.
type TokenValidator interface {
	ValidateToken(tokenString string) (domain.Address, error)
}

// Authenticate resolves the caller address from a bearer token into the
// request context. Requests without a token pass through unauthenticated;
// handlers that need an actor reject them via httputil.RequireActor, so read
// endpoints stay public.
func Authenticate(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			addr, err := validator.ValidateToken(token)
			if err != nil {
				if logger != nil {
					logger.WarnContext(r.Context(), "rejected bearer token",
						"error", err,
						"request_id", requestcontext.RequestID(r.Context()),
					)
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}
			ctx := requestcontext.WithActor(r.Context(), addr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
