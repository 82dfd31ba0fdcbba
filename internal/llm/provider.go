// Package llm abstracts the model endpoint behind a synchronous Provider
// interface. The engine depends only on this package, never on a concrete
// vendor client.
package llm

import "context"

// StopReason classifies why the model stopped generating.
type StopReason string

const (
	StopEndTurn StopReason = "end_turn"
	StopToolUse StopReason = "tool_use"
	// StopOther covers every stop reason the engine does not understand.
	// Callers treat it as a protocol violation.
	StopOther StopReason = "other"
)

// Block kinds within message content.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// ContentBlock is one unit of message content: either model text, a tool
// invocation requested by the model, or a tool result echoed back to it.
type ContentBlock struct {
	Type string `json:"type"`

	// text blocks
	Text string `json:"text,omitempty"`

	// tool_use blocks
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// tool_result blocks
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ChatMessage is a single turn in the running transcript.
type ChatMessage struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextMessage builds a plain text turn.
func TextMessage(role, text string) ChatMessage {
	return ChatMessage{Role: role, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// ToolDef describes one tool schema advertised to the model.
type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ChatRequest is one synchronous model call.
type ChatRequest struct {
	System    string
	Messages  []ChatMessage
	Tools     []ToolDef
	MaxTokens int
}

// ChatResponse is the model's reply. RawStopReason preserves the wire value
// when StopReason is StopOther.
type ChatResponse struct {
	Content       []ContentBlock
	StopReason    StopReason
	RawStopReason string
	InputTokens   int
	OutputTokens  int
}

// Text concatenates the text blocks of the response.
func (r *ChatResponse) Text() string {
	var out string
	for _, b := range r.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// ToolUses returns the tool_use blocks of the response in order.
func (r *ChatResponse) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range r.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// Provider is a synchronous model endpoint.
type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
