package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-coach/arbor/server/internal/llm"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
	"github.com/arbor-coach/arbor/server/internal/store/sqlite"
)

func newConversationWithMessages(t *testing.T, s store.Store, n int) *model.Conversation {
	t.Helper()
	ctx := context.Background()
	_, err := s.Users().Create(ctx, &model.User{
		UserID: "u-sum", Email: "u-sum@example.test", TimeZone: "UTC",
	})
	require.NoError(t, err)
	conv, err := s.Conversations().GetOrCreate(ctx, "u-sum", model.ScopeGlobal, nil)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		_, err := s.Messages().Append(ctx, &model.Message{
			ConversationID: conv.ConversationID,
			Role:           role,
			Content:        fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}
	return conv
}

func newSummarizerStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewWithDB(db)
}

func TestMaybeSummarizeBelowTriggerIsNoop(t *testing.T) {
	s := newSummarizerStore(t)
	conv := newConversationWithMessages(t, s, 5)
	provider := llm.NewScriptedProvider()

	sum := NewSummarizer(s, provider, 5, 2, zerolog.Nop())
	did, err := sum.MaybeSummarize(context.Background(), conv.ConversationID)
	require.NoError(t, err)
	assert.False(t, did)
	assert.Empty(t, provider.Requests)
}

func TestMaybeSummarizeCompactsPrefixAndRetainsTail(t *testing.T) {
	s := newSummarizerStore(t)
	conv := newConversationWithMessages(t, s, 8)
	provider := llm.NewScriptedProvider(llm.TextResponse("they planned a training week"))

	sum := NewSummarizer(s, provider, 5, 2, zerolog.Nop())
	ctx := context.Background()

	did, err := sum.MaybeSummarize(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.True(t, did)

	got, err := s.Conversations().GetByID(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
	require.NotNil(t, got.Summary)
	assert.Equal(t, "they planned a training week", *got.Summary)
	require.NotNil(t, got.CompactedThrough)

	// The most recent messages survive verbatim.
	msgs, err := s.Messages().List(ctx, model.ListMessagesRequest{ConversationID: conv.ConversationID})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "message 6", msgs[0].Content)
	assert.Equal(t, "message 7", msgs[1].Content)

	// The prompt carried the full prefix and only the prefix.
	require.Len(t, provider.Requests, 1)
	prompt := provider.Requests[0].Messages[0].Content[0].Text
	assert.Contains(t, prompt, "message 0")
	assert.Contains(t, prompt, "message 5")
	assert.NotContains(t, prompt, "message 6")
}

func TestMaybeSummarizeIsIdempotent(t *testing.T) {
	s := newSummarizerStore(t)
	conv := newConversationWithMessages(t, s, 8)
	provider := llm.NewScriptedProvider(llm.TextResponse("summary one"))

	sum := NewSummarizer(s, provider, 5, 2, zerolog.Nop())
	ctx := context.Background()

	did, err := sum.MaybeSummarize(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.True(t, did)

	// Nothing left above the trigger; a second pass must not call the model.
	did, err = sum.MaybeSummarize(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.False(t, did)
	assert.Len(t, provider.Requests, 1)
}

func TestMaybeSummarizeFoldsPriorSummary(t *testing.T) {
	s := newSummarizerStore(t)
	conv := newConversationWithMessages(t, s, 8)
	provider := llm.NewScriptedProvider(
		llm.TextResponse("first summary"),
		llm.TextResponse("combined summary"),
	)

	sum := NewSummarizer(s, provider, 5, 2, zerolog.Nop())
	ctx := context.Background()

	_, err := sum.MaybeSummarize(ctx, conv.ConversationID)
	require.NoError(t, err)

	// Grow the conversation past the trigger again.
	for i := 8; i < 16; i++ {
		_, err := s.Messages().Append(ctx, &model.Message{
			ConversationID: conv.ConversationID,
			Role:           model.RoleUser,
			Content:        fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	did, err := sum.MaybeSummarize(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.True(t, did)

	require.Len(t, provider.Requests, 2)
	assert.Contains(t, provider.Requests[1].Messages[0].Content[0].Text, "first summary")

	got, err := s.Conversations().GetByID(ctx, conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "combined summary", *got.Summary)
}
