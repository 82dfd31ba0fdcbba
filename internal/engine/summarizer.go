package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/llm"
	"github.com/arbor-coach/arbor/server/internal/metrics"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
)

const summarizerSystemPrompt = `You maintain the running summary of a long coaching conversation.
Fold the transcript below into the prior summary. Keep commitments, decisions,
recurring topics, and open questions. Drop greetings and filler. Reply with the
updated summary only.`

// Summarizer compacts the oldest messages of a conversation into a running
// summary once the message count passes a trigger, always retaining the most
// recent messages verbatim.
type Summarizer struct {
	store    store.Store
	provider llm.Provider
	log      zerolog.Logger
	trigger  int
	retain   int
}

func NewSummarizer(s store.Store, provider llm.Provider, trigger, retain int, log zerolog.Logger) *Summarizer {
	return &Summarizer{store: s, provider: provider, trigger: trigger, retain: retain, log: log}
}

// MaybeSummarize runs one compaction pass. It reports whether a prefix was
// folded into the summary. Rerunning immediately after a compaction is a
// no-op: the pruned conversation sits below the trigger again.
func (s *Summarizer) MaybeSummarize(ctx context.Context, conversationID string) (bool, error) {
	conv, err := s.store.Conversations().GetByID(ctx, conversationID)
	if err != nil {
		return false, fmt.Errorf("load conversation: %w", err)
	}
	if conv.MessageCount <= s.trigger {
		return false, nil
	}

	msgs, err := s.store.Messages().List(ctx, model.ListMessagesRequest{ConversationID: conversationID})
	if err != nil {
		return false, fmt.Errorf("load messages: %w", err)
	}
	if len(msgs) <= s.retain {
		return false, nil
	}
	prefix := msgs[:len(msgs)-s.retain]

	prior := ""
	if conv.Summary != nil {
		prior = *conv.Summary
	}

	summary, err := s.fold(ctx, prior, prefix)
	if err != nil {
		return false, fmt.Errorf("summarize prefix: %w", err)
	}

	watermark := prefix[len(prefix)-1].MessageID
	if err := s.store.Conversations().UpdateSummary(ctx, conversationID, summary, watermark, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("store summary: %w", err)
	}
	pruned, err := s.store.Messages().DeleteThrough(ctx, conversationID, watermark)
	if err != nil {
		return false, fmt.Errorf("prune summarized prefix: %w", err)
	}

	metrics.SummaryCompactions.Inc()
	s.log.Info().
		Str("conversation_id", conversationID).
		Int("pruned", pruned).
		Int("retained", len(msgs)-len(prefix)).
		Msg("conversation prefix compacted")
	return true, nil
}

func (s *Summarizer) fold(ctx context.Context, prior string, prefix []*model.Message) (string, error) {
	var b strings.Builder
	if prior != "" {
		b.WriteString("Prior summary:\n")
		b.WriteString(prior)
		b.WriteString("\n\n")
	}
	b.WriteString("Transcript to fold in:\n")
	for _, m := range prefix {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	resp, err := s.provider.Chat(ctx, &llm.ChatRequest{
		System:   summarizerSystemPrompt,
		Messages: []llm.ChatMessage{llm.TextMessage("user", b.String())},
	})
	if err != nil {
		return "", err
	}
	summary := strings.TrimSpace(resp.Text())
	if summary == "" {
		return "", fmt.Errorf("model returned an empty summary")
	}
	return summary, nil
}
