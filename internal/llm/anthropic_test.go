package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *AnthropicClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAnthropicClient(AnthropicOptions{
		BaseURL:   srv.URL,
		APIKey:    "test-key",
		Model:     "test-model",
		MaxTokens: 256,
		Timeout:   5 * time.Second,
	}, zerolog.Nop())
}

func TestAnthropicClientChat(t *testing.T) {
	var gotReq messagesRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [{"type":"text","text":"hello"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`))
	})

	resp, err := client.Chat(context.Background(), &ChatRequest{
		System:   "you are a coach",
		Messages: []ChatMessage{TextMessage("user", "hi")},
		Tools:    []ToolDef{{Name: "query_tasks", Description: "list tasks", InputSchema: map[string]interface{}{"type": "object"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "test-model", gotReq.Model)
	assert.Equal(t, 256, gotReq.MaxTokens)
	assert.Equal(t, "you are a coach", gotReq.System)
	require.Len(t, gotReq.Tools, 1)

	assert.Equal(t, StopEndTurn, resp.StopReason)
	assert.Equal(t, "hello", resp.Text())
	assert.Equal(t, 12, resp.InputTokens)
}

func TestAnthropicClientMapsUnknownStopReason(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[],"stop_reason":"max_tokens"}`))
	})

	resp, err := client.Chat(context.Background(), &ChatRequest{Messages: []ChatMessage{TextMessage("user", "hi")}})
	require.NoError(t, err)
	assert.Equal(t, StopOther, resp.StopReason)
	assert.Equal(t, "max_tokens", resp.RawStopReason)
}

func TestAnthropicClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn"}`))
	})

	resp, err := client.Chat(context.Background(), &ChatRequest{Messages: []ChatMessage{TextMessage("user", "hi")}})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, int32(2), calls.Load())
}

func TestAnthropicClientSurfacesClientErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad schema"}}`))
	})

	_, err := client.Chat(context.Background(), &ChatRequest{Messages: []ChatMessage{TextMessage("user", "hi")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
