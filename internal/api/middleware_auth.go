package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/arbor-coach/arbor/server/internal/api/respond"
	"github.com/arbor-coach/arbor/server/internal/auth"
)

type authCtxKey struct{}

// authMiddleware resolves the request's API key to an AuthContext and stores
// it on the request context. Requests without a valid key are rejected.
func authMiddleware(authorizer auth.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := auth.ExtractAPIKey(r)
			if err != nil {
				respond.WriteError(w, http.StatusUnauthorized, "missing API key")
				return
			}
			ac, err := authorizer.Authorize(r.Context(), key)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidAPIKey) || errors.Is(err, auth.ErrMissingAPIKey) {
					respond.WriteError(w, http.StatusUnauthorized, "invalid API key")
					return
				}
				respond.WriteInternalError(w, "authorization failed")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authCtxKey{}, ac)))
		})
	}
}

// authFrom returns the AuthContext placed by authMiddleware, or nil.
func authFrom(ctx context.Context) *auth.AuthContext {
	ac, _ := ctx.Value(authCtxKey{}).(*auth.AuthContext)
	return ac
}
