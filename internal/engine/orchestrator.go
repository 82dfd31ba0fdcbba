package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/auth"
	"github.com/arbor-coach/arbor/server/internal/llm"
	"github.com/arbor-coach/arbor/server/internal/metrics"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/tools"
)

const coachSystemPrompt = `You are Arbor, a personal coach. You help the user
manage tasks, notes, and projects, and you gently surface patterns in their
behavior. Use the query tools to look things up before answering. When you
need the user's input or approval, use the interactive tools and wait.`

// RunResult is the outcome of one orchestrator run.
type RunResult struct {
	// FinalText is the model's terminal reply. Empty when the run paused on
	// interactive tool calls.
	FinalText string
	// PendingInteractive holds interactive tool calls awaiting user input.
	// When non-empty, no server-side tools were executed for that turn.
	PendingInteractive []model.ToolCall
	// AssistantContent is the raw content of the last assistant reply,
	// preserved so the caller can persist it verbatim.
	AssistantContent []llm.ContentBlock
	// Transcript is the full message list after the run, including tool
	// exchanges folded in along the way.
	Transcript []llm.ChatMessage
	// Iterations counts model calls made during the run.
	Iterations int
}

// Orchestrator drives the bounded model/tool conversation loop for one turn
// of user input.
type Orchestrator struct {
	provider  llm.Provider
	registry  *tools.Registry
	executor  *tools.Executor
	assembler *Assembler
	maxIter   int
	log       zerolog.Logger
}

func NewOrchestrator(provider llm.Provider, registry *tools.Registry, executor *tools.Executor, assembler *Assembler, maxIterations int, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		provider:  provider,
		registry:  registry,
		executor:  executor,
		assembler: assembler,
		maxIter:   maxIterations,
		log:       log,
	}
}

// Run executes the tool loop until the model ends its turn, an interactive
// tool call pauses the run, the iteration ceiling is hit, or an error occurs.
// The snapshot assembled for the turn is returned alongside the result so the
// caller can mark surfaced observations.
func (o *Orchestrator) Run(ctx context.Context, ac *auth.AuthContext, conv *model.Conversation, initial []llm.ChatMessage) (*RunResult, *Snapshot, error) {
	snap := o.assembler.Assemble(ctx, ac.UserID, conv)
	system := coachSystemPrompt
	if ws := snap.Render(); ws != "" {
		system += "\n\n# Current workspace\n\n" + ws
	}

	msgs := make([]llm.ChatMessage, len(initial))
	copy(msgs, initial)

	result := &RunResult{}
	for {
		if result.Iterations >= o.maxIter {
			o.log.Warn().
				Str("user_id", ac.UserID).
				Int("iterations", result.Iterations).
				Msg("tool loop hit iteration ceiling")
			return nil, snap, ErrTooManyToolCalls
		}

		start := time.Now()
		resp, err := o.provider.Chat(ctx, &llm.ChatRequest{
			System:   system,
			Messages: msgs,
			Tools:    o.registry.Defs(),
		})
		metrics.ModelCallDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ModelCalls.WithLabelValues("error").Inc()
			return nil, snap, fmt.Errorf("model call: %w", err)
		}
		metrics.ModelCalls.WithLabelValues("ok").Inc()
		result.Iterations++

		switch resp.StopReason {
		case llm.StopEndTurn:
			result.FinalText = resp.Text()
			result.AssistantContent = resp.Content
			result.Transcript = msgs
			return result, snap, nil

		case llm.StopToolUse:
			calls := toModelCalls(resp.ToolUses())
			if len(calls) == 0 {
				return nil, snap, &ProtocolError{Reason: "tool_use stop with no tool_use blocks"}
			}

			if pending := o.interactiveCalls(calls); len(pending) > 0 {
				result.FinalText = resp.Text()
				result.PendingInteractive = pending
				result.AssistantContent = resp.Content
				result.Transcript = msgs
				return result, snap, nil
			}

			results, err := o.executeAll(ctx, ac, calls)
			if err != nil {
				return nil, snap, err
			}

			msgs = append(msgs,
				llm.ChatMessage{Role: "assistant", Content: resp.Content},
				toolResultMessage(results),
			)

		default:
			return nil, snap, &ProtocolError{
				Reason: fmt.Sprintf("unexpected stop reason %q", resp.RawStopReason),
			}
		}
	}
}

// interactiveCalls returns the interactive subset of calls, or nil when all
// calls are server-side.
func (o *Orchestrator) interactiveCalls(calls []model.ToolCall) []model.ToolCall {
	var pending []model.ToolCall
	for _, c := range calls {
		if o.registry.IsInteractive(c.Name) {
			pending = append(pending, c)
		}
	}
	return pending
}

// executeAll fans the calls out in parallel and waits for every one. Each
// handler failure is isolated in its own result; only catalog violations
// abort the batch.
func (o *Orchestrator) executeAll(ctx context.Context, ac *auth.AuthContext, calls []model.ToolCall) ([]model.ToolResult, error) {
	results := make([]model.ToolResult, len(calls))
	errs := make([]error, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call model.ToolCall) {
			defer wg.Done()
			results[i], errs[i] = o.executor.Execute(ctx, ac, call)
		}(i, call)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func toModelCalls(blocks []llm.ContentBlock) []model.ToolCall {
	out := make([]model.ToolCall, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, model.ToolCall{ID: b.ID, Name: b.Name, Input: b.Input})
	}
	return out
}

func toolResultMessage(results []model.ToolResult) llm.ChatMessage {
	blocks := make([]llm.ContentBlock, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, llm.ContentBlock{
			Type:      llm.BlockToolResult,
			ToolUseID: r.CallID,
			Content:   r.Content,
			IsError:   r.IsError,
		})
	}
	return llm.ChatMessage{Role: "user", Content: blocks}
}
