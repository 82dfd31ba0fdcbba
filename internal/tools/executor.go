package tools

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/auth"
	"github.com/arbor-coach/arbor/server/internal/metrics"
	"github.com/arbor-coach/arbor/server/internal/model"
)

// Executor runs server-side tool calls with failure isolation: a handler
// error or panic becomes an error-flagged ToolResult, never a crashed turn.
type Executor struct {
	reg *Registry
	log zerolog.Logger
}

func NewExecutor(reg *Registry, log zerolog.Logger) *Executor {
	return &Executor{reg: reg, log: log}
}

// Execute runs one tool call. The returned error is non-nil only for
// catalog violations (unknown tool, interactive tool dispatched for
// execution); everything a handler does wrong is folded into the result.
func (e *Executor) Execute(ctx context.Context, ac *auth.AuthContext, call model.ToolCall) (model.ToolResult, error) {
	entry, err := e.reg.Resolve(call.Name)
	if err != nil {
		return model.ToolResult{}, err
	}
	if entry.Capability == CapInteractive {
		return model.ToolResult{}, fmt.Errorf("interactive tool %q cannot be executed server-side", call.Name)
	}

	if ac == nil || !ac.Valid() {
		metrics.ToolExecutions.WithLabelValues(call.Name, "auth_required").Inc()
		return model.ToolResult{
			CallID:  call.ID,
			Content: "authentication required: this tool needs a signed-in user",
			IsError: true,
		}, nil
	}

	content, handlerErr := e.runSafely(ctx, entry, ac, call)
	if handlerErr != nil {
		e.log.Warn().
			Str("tool", call.Name).
			Str("call_id", call.ID).
			Err(handlerErr).
			Msg("tool execution failed")
		metrics.ToolExecutions.WithLabelValues(call.Name, "error").Inc()
		return model.ToolResult{
			CallID:  call.ID,
			Content: fmt.Sprintf("tool %s failed: %v", call.Name, handlerErr),
			IsError: true,
		}, nil
	}

	metrics.ToolExecutions.WithLabelValues(call.Name, "ok").Inc()
	return model.ToolResult{CallID: call.ID, Content: content}, nil
}

func (e *Executor) runSafely(ctx context.Context, entry Entry, ac *auth.AuthContext, call model.ToolCall) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in tool handler: %v", r)
		}
	}()
	return entry.Handler(ctx, ac, call.Input)
}
