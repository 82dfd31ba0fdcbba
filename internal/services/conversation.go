package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/auth"
	"github.com/arbor-coach/arbor/server/internal/engine"
	"github.com/arbor-coach/arbor/server/internal/llm"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
)

// ChatReply is the outcome of one user turn.
type ChatReply struct {
	ConversationID string           `json:"conversationId"`
	Text           string           `json:"text"`
	PendingCalls   []model.ToolCall `json:"pendingCalls,omitempty"`
}

// ConversationService runs user turns end to end: it serializes access per
// conversation, drives the orchestrator, persists both sides of the
// exchange, marks surfaced observations, and compacts long conversations.
type ConversationService struct {
	store      store.Store
	orch       *engine.Orchestrator
	summarizer *engine.Summarizer
	log        zerolog.Logger
	convLocks  *keyedMutex
}

func NewConversationService(s store.Store, orch *engine.Orchestrator, summarizer *engine.Summarizer, log zerolog.Logger) *ConversationService {
	return &ConversationService{
		store:      s,
		orch:       orch,
		summarizer: summarizer,
		log:        log,
		convLocks:  newKeyedMutex(),
	}
}

// HandleUserMessage processes one user turn in the conversation selected by
// (scope, projectID), creating the conversation on first use. Turns on the
// same conversation never interleave.
func (s *ConversationService) HandleUserMessage(ctx context.Context, ac *auth.AuthContext, scope model.ConversationScope, projectID *string, text string) (*ChatReply, error) {
	if text == "" {
		return nil, model.ErrValidation
	}

	conv, err := s.store.Conversations().GetOrCreate(ctx, ac.UserID, scope, projectID)
	if err != nil {
		return nil, err
	}

	unlock := s.convLocks.Lock(conv.ConversationID)
	defer unlock()

	history, err := s.store.Messages().List(ctx, model.ListMessagesRequest{ConversationID: conv.ConversationID})
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Messages().Append(ctx, &model.Message{
		ConversationID: conv.ConversationID,
		Role:           model.RoleUser,
		Content:        text,
	}); err != nil {
		return nil, err
	}

	initial := make([]llm.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		initial = append(initial, llm.TextMessage(string(m.Role), m.Content))
	}
	initial = append(initial, llm.TextMessage(string(model.RoleUser), text))

	result, snap, err := s.orch.Run(ctx, ac, conv, initial)
	if err != nil {
		return nil, err
	}

	assistant := &model.Message{
		ConversationID: conv.ConversationID,
		Role:           model.RoleAssistant,
		Content:        result.FinalText,
	}
	if len(result.PendingInteractive) > 0 {
		assistant.Metadata = map[string]interface{}{"pendingCalls": result.PendingInteractive}
	}
	if _, err := s.store.Messages().Append(ctx, assistant); err != nil {
		return nil, err
	}

	s.markSurfaced(ctx, ac.UserID, snap)

	if err := s.store.Users().TouchLastActive(ctx, ac.UserID, time.Now().UTC()); err != nil {
		s.log.Warn().Str("user_id", ac.UserID).Err(err).Msg("failed to touch last-active")
	}

	// Compaction failure degrades recall, never the reply.
	if _, err := s.summarizer.MaybeSummarize(ctx, conv.ConversationID); err != nil {
		s.log.Warn().Str("conversation_id", conv.ConversationID).Err(err).Msg("summarization pass failed")
	}

	return &ChatReply{
		ConversationID: conv.ConversationID,
		Text:           result.FinalText,
		PendingCalls:   result.PendingInteractive,
	}, nil
}

func (s *ConversationService) markSurfaced(ctx context.Context, userID string, snap *engine.Snapshot) {
	if snap == nil {
		return
	}
	now := time.Now().UTC()
	for _, id := range snap.ObservationIDs() {
		if err := s.store.Observations().MarkSurfaced(ctx, userID, id, now); err != nil {
			s.log.Warn().Str("user_id", userID).Str("observation_id", id).Err(err).
				Msg("failed to mark observation surfaced")
		}
	}
}

// ListMessages returns the live (uncompacted) messages of a conversation.
func (s *ConversationService) ListMessages(ctx context.Context, ac *auth.AuthContext, conversationID string) ([]*model.Message, error) {
	conv, err := s.store.Conversations().GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != ac.UserID {
		return nil, model.ErrNotFound
	}
	return s.store.Messages().List(ctx, model.ListMessagesRequest{ConversationID: conversationID})
}
