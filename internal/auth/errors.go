package auth

import "errors"

var (
	// ErrMissingAPIKey is returned when no credentials accompany the request.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidAPIKey is returned when credentials do not resolve to a user.
	ErrInvalidAPIKey = errors.New("invalid API key")
)
