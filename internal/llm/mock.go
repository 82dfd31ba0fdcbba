package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedProvider replays a fixed sequence of responses and records every
// request it receives. Test-only.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []*ChatResponse
	errs      []error
	Requests  []*ChatRequest
}

// NewScriptedProvider builds a provider that returns the given responses in
// order. A nil entry in errs (or a shorter errs slice) means success.
func NewScriptedProvider(responses ...*ChatResponse) *ScriptedProvider {
	return &ScriptedProvider{responses: responses}
}

// FailWith appends an error step at the current end of the script.
func (p *ScriptedProvider) FailWith(err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.errs) < len(p.responses) {
		p.errs = append(p.errs, nil)
	}
	p.responses = append(p.responses, nil)
	p.errs = append(p.errs, err)
	return p
}

func (p *ScriptedProvider) Chat(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := len(p.Requests)
	p.Requests = append(p.Requests, req)

	if idx < len(p.errs) && p.errs[idx] != nil {
		return nil, p.errs[idx]
	}
	if idx >= len(p.responses) {
		return nil, fmt.Errorf("scripted provider exhausted after %d calls", len(p.responses))
	}
	return p.responses[idx], nil
}

// TextResponse builds a terminal text reply.
func TextResponse(text string) *ChatResponse {
	return &ChatResponse{
		Content:    []ContentBlock{{Type: BlockText, Text: text}},
		StopReason: StopEndTurn,
	}
}

// ToolUseResponse builds a reply requesting the given tool calls.
func ToolUseResponse(blocks ...ContentBlock) *ChatResponse {
	return &ChatResponse{Content: blocks, StopReason: StopToolUse}
}

// ToolUse builds a tool_use content block.
func ToolUse(id, name string, input map[string]interface{}) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}
