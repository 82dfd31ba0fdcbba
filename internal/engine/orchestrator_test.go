package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-coach/arbor/server/internal/auth"
	"github.com/arbor-coach/arbor/server/internal/llm"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
	"github.com/arbor-coach/arbor/server/internal/store/sqlite"
	"github.com/arbor-coach/arbor/server/internal/tools"
)

// spyStore wraps a real store and counts task list calls, so tests can
// assert that tools did or did not execute.
type spyStore struct {
	store.Store
	tasks *spyTasks
}

func (s *spyStore) Tasks() store.Tasks { return s.tasks }

type spyTasks struct {
	store.Tasks
	listCalls atomic.Int32
}

func (t *spyTasks) List(ctx context.Context, userID string, limit int) ([]*model.Task, error) {
	t.listCalls.Add(1)
	return t.Tasks.List(ctx, userID, limit)
}

func newEngineFixture(t *testing.T, provider llm.Provider, maxIter int) (*Orchestrator, *spyStore, *auth.AuthContext) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	inner := sqlite.NewWithDB(db)
	s := &spyStore{Store: inner, tasks: &spyTasks{Tasks: inner.Tasks()}}

	_, err = s.Users().Create(context.Background(), &model.User{
		UserID: "u-loop", Email: "u-loop@example.test", TimeZone: "UTC",
	})
	require.NoError(t, err)

	reg := tools.NewRegistry(s)
	exec := tools.NewExecutor(reg, zerolog.Nop())
	asm := NewAssembler(s, zerolog.Nop())
	orch := NewOrchestrator(provider, reg, exec, asm, maxIter, zerolog.Nop())
	return orch, s, &auth.AuthContext{UserID: "u-loop"}
}

func userTurn(text string) []llm.ChatMessage {
	return []llm.ChatMessage{llm.TextMessage("user", text)}
}

func TestRunTerminatesOnEndTurn(t *testing.T) {
	provider := llm.NewScriptedProvider(llm.TextResponse("you have nothing due today"))
	orch, _, ac := newEngineFixture(t, provider, 5)

	res, _, err := orch.Run(context.Background(), ac, nil, userTurn("anything due?"))
	require.NoError(t, err)
	assert.Equal(t, "you have nothing due today", res.FinalText)
	assert.Empty(t, res.PendingInteractive)
	assert.Equal(t, 1, res.Iterations)
}

func TestRunExecutesToolsAndFoldsResultsBack(t *testing.T) {
	provider := llm.NewScriptedProvider(
		llm.ToolUseResponse(
			llm.ToolUse("call-1", "query_tasks", map[string]interface{}{}),
			llm.ToolUse("call-2", "query_notes", map[string]interface{}{}),
		),
		llm.TextResponse("here is your day"),
	)
	orch, s, ac := newEngineFixture(t, provider, 5)

	res, _, err := orch.Run(context.Background(), ac, nil, userTurn("plan my day"))
	require.NoError(t, err)
	assert.Equal(t, "here is your day", res.FinalText)
	assert.Equal(t, 2, res.Iterations)
	// One read from the assembler snapshot plus one from the query_tasks call.
	assert.Equal(t, int32(2), s.tasks.listCalls.Load())

	// Both tool results must reach the second model request, keyed by call id.
	require.Len(t, provider.Requests, 2)
	second := provider.Requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "user", last.Role)
	require.Len(t, last.Content, 2)
	gotIDs := map[string]bool{}
	for _, b := range last.Content {
		assert.Equal(t, llm.BlockToolResult, b.Type)
		assert.False(t, b.IsError)
		gotIDs[b.ToolUseID] = true
	}
	assert.True(t, gotIDs["call-1"] && gotIDs["call-2"])
}

func TestRunShortCircuitsOnInteractiveCall(t *testing.T) {
	provider := llm.NewScriptedProvider(
		llm.ToolUseResponse(
			llm.ToolUse("call-1", "query_tasks", map[string]interface{}{}),
			llm.ToolUse("call-2", "ask_user", map[string]interface{}{"question": "which project?"}),
		),
	)
	orch, s, ac := newEngineFixture(t, provider, 5)

	res, _, err := orch.Run(context.Background(), ac, nil, userTurn("archive my stale work"))
	require.NoError(t, err)
	require.Len(t, res.PendingInteractive, 1)
	assert.Equal(t, "ask_user", res.PendingInteractive[0].Name)

	// Only the assembler snapshot touched the store; zero tool executions
	// and no second model call.
	assert.Equal(t, int32(1), s.tasks.listCalls.Load())
	assert.Len(t, provider.Requests, 1)
}

func TestRunIsolatesSingleToolFailures(t *testing.T) {
	provider := llm.NewScriptedProvider(
		llm.ToolUseResponse(
			llm.ToolUse("call-1", "search_notes", map[string]interface{}{}), // missing required query
			llm.ToolUse("call-2", "query_tasks", map[string]interface{}{}),
		),
		llm.TextResponse("found what I could"),
	)
	orch, _, ac := newEngineFixture(t, provider, 5)

	res, _, err := orch.Run(context.Background(), ac, nil, userTurn("look things up"))
	require.NoError(t, err)
	assert.Equal(t, "found what I could", res.FinalText)

	last := provider.Requests[1].Messages[len(provider.Requests[1].Messages)-1]
	require.Len(t, last.Content, 2)
	byID := map[string]llm.ContentBlock{}
	for _, b := range last.Content {
		byID[b.ToolUseID] = b
	}
	assert.True(t, byID["call-1"].IsError)
	assert.False(t, byID["call-2"].IsError)
}

func TestRunEnforcesIterationCeiling(t *testing.T) {
	loop := func() *llm.ChatResponse {
		return llm.ToolUseResponse(llm.ToolUse("c", "query_tasks", map[string]interface{}{}))
	}
	provider := llm.NewScriptedProvider(loop(), loop(), loop(), loop(), loop(), loop())
	orch, _, ac := newEngineFixture(t, provider, 3)

	_, _, err := orch.Run(context.Background(), ac, nil, userTurn("hi"))
	require.ErrorIs(t, err, ErrTooManyToolCalls)
	assert.Len(t, provider.Requests, 3)
}

func TestRunRejectsUnexpectedStopReason(t *testing.T) {
	provider := llm.NewScriptedProvider(&llm.ChatResponse{
		StopReason:    llm.StopOther,
		RawStopReason: "max_tokens",
	})
	orch, _, ac := newEngineFixture(t, provider, 5)

	_, _, err := orch.Run(context.Background(), ac, nil, userTurn("hi"))
	var pe *ProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Error(), "max_tokens")
}

func TestRunFailsFastOnUnknownTool(t *testing.T) {
	provider := llm.NewScriptedProvider(
		llm.ToolUseResponse(llm.ToolUse("c", "delete_everything", map[string]interface{}{})),
	)
	orch, _, ac := newEngineFixture(t, provider, 5)

	_, _, err := orch.Run(context.Background(), ac, nil, userTurn("hi"))
	var unknown *tools.ErrUnknownTool
	require.True(t, errors.As(err, &unknown))
}
