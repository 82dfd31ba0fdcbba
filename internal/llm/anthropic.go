package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const anthropicVersion = "2023-06-01"

// AnthropicClient talks to an Anthropic-compatible messages endpoint.
type AnthropicClient struct {
	client    *resty.Client
	model     string
	maxTokens int
	log       zerolog.Logger
}

// AnthropicOptions configures the client.
type AnthropicOptions struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// NewAnthropicClient creates a messages client. Timeout defaults to two
// minutes when unset.
func NewAnthropicClient(opts AnthropicOptions, log zerolog.Logger) *AnthropicClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	c := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("anthropic-version", anthropicVersion).
		SetTimeout(timeout)
	if opts.APIKey != "" {
		c.SetHeader("x-api-key", opts.APIKey)
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	return &AnthropicClient{
		client:    c,
		model:     opts.Model,
		maxTokens: maxTokens,
		log:       log,
	}
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []ChatMessage `json:"messages"`
	Tools     []ToolDef     `json:"tools,omitempty"`
}

type messagesResponse struct {
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Chat performs one synchronous model call, retrying transient endpoint
// failures with exponential backoff.
func (a *AnthropicClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = a.maxTokens
	}
	body := messagesRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  req.Messages,
		Tools:     req.Tools,
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 500 * time.Millisecond
	exp.MaxInterval = 10 * time.Second
	exp.MaxElapsedTime = 90 * time.Second
	exp.Reset()

	var resp *resty.Response
	for {
		var err error
		resp, err = a.client.R().
			SetContext(ctx).
			SetBody(&body).
			Post("/v1/messages")
		if err == nil && !retryableStatus(resp.StatusCode()) {
			break
		}

		wait := exp.NextBackOff()
		if wait == backoff.Stop {
			if err != nil {
				return nil, fmt.Errorf("model endpoint unreachable: %w", err)
			}
			return nil, fmt.Errorf("model endpoint returned %d: %s", resp.StatusCode(), resp.String())
		}
		if err != nil {
			a.log.Warn().Err(err).Dur("retry_in", wait).Msg("model call failed, retrying")
		} else {
			a.log.Warn().Int("status", resp.StatusCode()).Dur("retry_in", wait).Msg("model call throttled, retrying")
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("model endpoint returned %d: %s", resp.StatusCode(), resp.String())
	}

	var mr messagesResponse
	if err := json.Unmarshal(resp.Body(), &mr); err != nil {
		return nil, fmt.Errorf("decode model response: %w", err)
	}

	out := &ChatResponse{
		Content:       mr.Content,
		RawStopReason: mr.StopReason,
		InputTokens:   mr.Usage.InputTokens,
		OutputTokens:  mr.Usage.OutputTokens,
	}
	switch mr.StopReason {
	case string(StopEndTurn):
		out.StopReason = StopEndTurn
	case string(StopToolUse):
		out.StopReason = StopToolUse
	default:
		out.StopReason = StopOther
	}
	return out, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
