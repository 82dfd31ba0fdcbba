package auth

import (
	"context"
)

const (
	// LocalDevAPIKey is the hardcoded API key for local development only
	LocalDevAPIKey = "sk_local_arbor_dev_key"
)

// MockAuthorizer provides a simple authorizer for local development.
// It only recognizes the hardcoded LocalDevAPIKey and resolves it to a
// fixed development user.
type MockAuthorizer struct{}

// NewMockAuthorizer creates a new MockAuthorizer for local development
func NewMockAuthorizer() *MockAuthorizer {
	return &MockAuthorizer{}
}

// Authorize validates the hardcoded API key and resolves the dev identity.
func (m *MockAuthorizer) Authorize(ctx context.Context, apiKey string) (*AuthContext, error) {
	if apiKey != LocalDevAPIKey {
		return nil, ErrInvalidAPIKey
	}

	return &AuthContext{
		UserID:      "arbor-dev",
		DisplayName: "Local Development User",
		TimeZone:    "UTC",
	}, nil
}
