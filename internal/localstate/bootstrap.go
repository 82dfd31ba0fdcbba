package localstate

import (
	"context"
	"errors"

	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
)

const (
	devUserID      = "arbor-dev"
	devUserEmail   = "dev@localhost"
	devDisplayName = "Local Development User"
)

// EnsureDevUser creates the fixed development user the mock authorizer
// resolves to. No-op if the user already exists.
func EnsureDevUser(ctx context.Context, st store.Store) error {
	if _, err := st.Users().Get(ctx, devUserID); err == nil {
		return nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return err
	}

	name := devDisplayName
	_, err := st.Users().Create(ctx, &model.User{
		UserID:      devUserID,
		Email:       devUserEmail,
		DisplayName: &name,
		TimeZone:    "UTC",
	})
	if errors.Is(err, model.ErrConflict) {
		return nil
	}
	return err
}
