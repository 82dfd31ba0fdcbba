package localstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arbor-coach/arbor/server/internal/store/sqlite"
)

func TestEnsureDevUser_Idempotent(t *testing.T) {
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, EnsureDevUser(ctx, st))
	require.NoError(t, EnsureDevUser(ctx, st))

	u, err := st.Users().Get(ctx, devUserID)
	require.NoError(t, err)
	require.Equal(t, devUserEmail, u.Email)
}
