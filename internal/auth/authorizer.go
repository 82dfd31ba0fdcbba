package auth

import (
	"context"
)

// AuthContext identifies the authenticated principal for one request. It is
// immutable and passed explicitly into every core call that needs an
// identity; there is no ambient per-request state.
type AuthContext struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	TimeZone    string `json:"timeZone"`
}

// Valid reports whether the context carries an authenticated user.
func (a *AuthContext) Valid() bool {
	return a != nil && a.UserID != ""
}

// Authorizer validates API keys and resolves them to an AuthContext.
// Token verification itself is an external capability; implementations
// here only adapt its result into the core's explicit context object.
type Authorizer interface {
	Authorize(ctx context.Context, apiKey string) (*AuthContext, error)
}
