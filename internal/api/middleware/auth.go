package middleware

import (
	"context"
	"net/http"

	"github.com/daap14/iaap/internal/api/response"
	"github.com/daap14/iaap/internal/auth"
)

const identityKey contextKey = "identity"

// Auth is middleware that checks the X-API-Key header against the admin key.
// Missing or invalid keys return 401.
func Auth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			rawKey := r.Header.Get("X-API-Key")
			if rawKey == "" {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key is required", requestID)
				return
			}

			identity, err := authService.Authenticate(rawKey)
			if err != nil {
				Logger(r.Context()).Warn("admin authentication failed", "path", r.URL.Path)
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the authenticated Identity from the request context.
func GetIdentity(ctx context.Context) *auth.Identity {
	if id, ok := ctx.Value(identityKey).(*auth.Identity); ok {
		return id
	}
	return nil
}
