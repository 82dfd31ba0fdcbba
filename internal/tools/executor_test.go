package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbor-coach/arbor/server/internal/auth"
	"github.com/arbor-coach/arbor/server/internal/model"
	"github.com/arbor-coach/arbor/server/internal/store"
	"github.com/arbor-coach/arbor/server/internal/store/sqlite"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlite.NewWithDB(db)
}

func seedUser(t *testing.T, s store.Store, userID string) *auth.AuthContext {
	t.Helper()
	_, err := s.Users().Create(context.Background(), &model.User{
		UserID: userID, Email: userID + "@example.test", TimeZone: "UTC",
	})
	require.NoError(t, err)
	return &auth.AuthContext{UserID: userID}
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry(newTestStore(t))

	e, err := reg.Resolve("query_tasks")
	require.NoError(t, err)
	assert.Equal(t, CapQuery, e.Capability)
	assert.NotNil(t, e.Handler)

	assert.True(t, reg.IsInteractive("ask_user"))
	assert.False(t, reg.IsInteractive("query_notes"))

	_, err = reg.Resolve("drop_database")
	var unknown *ErrUnknownTool
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "drop_database", unknown.Name)
}

func TestRegistryDefs(t *testing.T) {
	defs := NewRegistry(newTestStore(t)).Defs()
	require.Len(t, defs, 6)
	assert.Equal(t, "query_tasks", defs[0].Name)
	for _, d := range defs {
		assert.NotEmpty(t, d.Description, d.Name)
		assert.Equal(t, "object", d.InputSchema["type"])
	}
}

func TestExecutorQueryTasks(t *testing.T) {
	s := newTestStore(t)
	ac := seedUser(t, s, "u-exec")
	ctx := context.Background()

	_, err := s.Tasks().Create(ctx, &model.Task{UserID: ac.UserID, Domain: "health", Title: "run"})
	require.NoError(t, err)
	_, err = s.Tasks().Create(ctx, &model.Task{UserID: ac.UserID, Domain: "work", Title: "ship"})
	require.NoError(t, err)

	exec := NewExecutor(NewRegistry(s), zerolog.Nop())

	res, err := exec.Execute(ctx, ac, model.ToolCall{ID: "c1", Name: "query_tasks", Input: map[string]interface{}{}})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "c1", res.CallID)

	var payload struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content), &payload))
	assert.Equal(t, 2, payload.Count)
}

func TestExecutorQueryTasksStatusFilterBeyondLimit(t *testing.T) {
	s := newTestStore(t)
	ac := seedUser(t, s, "u-filter")
	ctx := context.Background()

	// Oldest task stays todo; everything newer is done, more of it than
	// the requested limit. The filtered query must still find the todo.
	todo, err := s.Tasks().Create(ctx, &model.Task{UserID: ac.UserID, Domain: "work", Title: "draft proposal"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		done, err := s.Tasks().Create(ctx, &model.Task{UserID: ac.UserID, Domain: "work", Title: "routine chore"})
		require.NoError(t, err)
		require.NoError(t, s.Tasks().UpdateStatus(ctx, ac.UserID, done.TaskID, model.TaskDone, time.Now().UTC()))
	}

	exec := NewExecutor(NewRegistry(s), zerolog.Nop())
	res, err := exec.Execute(ctx, ac, model.ToolCall{
		ID: "cf", Name: "query_tasks",
		Input: map[string]interface{}{"status": "todo", "limit": 2},
	})
	require.NoError(t, err)
	require.False(t, res.IsError, res.Content)

	var payload struct {
		Count int `json:"count"`
		Tasks []struct {
			TaskID string `json:"taskId"`
		} `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Content), &payload))
	require.Equal(t, 1, payload.Count)
	assert.Equal(t, todo.TaskID, payload.Tasks[0].TaskID)
}

func TestExecutorInvalidInputIsToolError(t *testing.T) {
	s := newTestStore(t)
	ac := seedUser(t, s, "u-badinput")
	exec := NewExecutor(NewRegistry(s), zerolog.Nop())

	res, err := exec.Execute(context.Background(), ac, model.ToolCall{
		ID: "c2", Name: "query_tasks",
		Input: map[string]interface{}{"status": "doing"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "invalid tool input")

	res, err = exec.Execute(context.Background(), ac, model.ToolCall{
		ID: "c3", Name: "search_notes",
		Input: map[string]interface{}{},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestExecutorMissingAuthIsStructuredResult(t *testing.T) {
	exec := NewExecutor(NewRegistry(newTestStore(t)), zerolog.Nop())

	res, err := exec.Execute(context.Background(), nil, model.ToolCall{ID: "c4", Name: "query_notes"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "authentication required")
}

func TestExecutorUnknownToolIsFatal(t *testing.T) {
	exec := NewExecutor(NewRegistry(newTestStore(t)), zerolog.Nop())
	ac := &auth.AuthContext{UserID: "u"}

	_, err := exec.Execute(context.Background(), ac, model.ToolCall{ID: "c5", Name: "nonexistent"})
	var unknown *ErrUnknownTool
	require.True(t, errors.As(err, &unknown))
}

func TestExecutorRejectsInteractiveDispatch(t *testing.T) {
	exec := NewExecutor(NewRegistry(newTestStore(t)), zerolog.Nop())
	ac := &auth.AuthContext{UserID: "u"}

	_, err := exec.Execute(context.Background(), ac, model.ToolCall{ID: "c6", Name: "ask_user"})
	require.Error(t, err)
}

func TestExecutorRecoversPanics(t *testing.T) {
	reg := &Registry{entries: map[Name]Entry{
		"boom": {
			Capability: CapQuery,
			Handler: func(context.Context, *auth.AuthContext, map[string]interface{}) (string, error) {
				panic("handler bug")
			},
		},
	}}
	exec := NewExecutor(reg, zerolog.Nop())
	ac := &auth.AuthContext{UserID: "u"}

	res, err := exec.Execute(context.Background(), ac, model.ToolCall{ID: "c7", Name: "boom"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "panic")
}
