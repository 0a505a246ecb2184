package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultClaudeBaseURL   = "https://api.anthropic.com"
	defaultClaudeMaxTokens = 4096
	anthropicVersion       = "2023-06-01"
)

// ClaudeAPIClient talks to the Anthropic Messages API.
type ClaudeAPIClient struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	client    *http.Client
}

// ClaudeOption customizes a ClaudeAPIClient.
type ClaudeOption func(*ClaudeAPIClient)

// WithClaudeBaseURL points the client at a different API host.
func WithClaudeBaseURL(u string) ClaudeOption {
	return func(c *ClaudeAPIClient) {
		if u != "" {
			c.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithClaudeMaxTokens sets the max_tokens used when a request leaves it unset.
func WithClaudeMaxTokens(n int) ClaudeOption {
	return func(c *ClaudeAPIClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithClaudeHTTPClient replaces the underlying HTTP client.
func WithClaudeHTTPClient(hc *http.Client) ClaudeOption {
	return func(c *ClaudeAPIClient) { c.client = hc }
}

// NewClaudeAPIClient creates a new Claude API client for model.
func NewClaudeAPIClient(apiKey, model string, opts ...ClaudeOption) *ClaudeAPIClient {
	c := &ClaudeAPIClient{
		apiKey:    apiKey,
		model:     model,
		baseURL:   defaultClaudeBaseURL,
		maxTokens: defaultClaudeMaxTokens,
		client:    &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name returns the provider name.
func (c *ClaudeAPIClient) Name() string { return "claude" }

// Complete sends a non-streaming completion request.
func (c *ClaudeAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := postJSON(ctx, c.client, c.Name(), c.baseURL+"/v1/messages", c.headers(), c.buildRequestBody(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result claudeAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := result.toCompletion()
	out.Duration = time.Since(start)
	return out, nil
}

// Stream sends a streaming completion request.
func (c *ClaudeAPIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	resp, err := postJSON(ctx, c.client, c.Name(), c.baseURL+"/v1/messages", c.headers(), c.buildRequestBody(req, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent)
	go c.readStream(ctx, resp, ch)
	return ch, nil
}

func (c *ClaudeAPIClient) headers() map[string]string {
	return map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}
}

func (c *ClaudeAPIClient) buildRequestBody(req CompletionRequest, stream bool) claudeRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	body := claudeRequest{
		Model:       model,
		System:      req.System,
		MaxTokens:   maxTokens,
		Stream:      stream,
		Temperature: req.Temperature,
		Messages:    make([]claudeMessage, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, claudeMessage{Role: m.Role, Content: m.Content})
	}
	return body
}

func (c *ClaudeAPIClient) readStream(ctx context.Context, resp *http.Response, ch chan<- StreamEvent) {
	defer close(ch)
	defer resp.Body.Close()

	scanner := newServerSentEventScanner(resp.Body)
	var (
		full       strings.Builder
		usage      Usage
		stopReason string
		model      = c.model
	)

	for {
		data, ok := scanner.Next()
		if !ok {
			break
		}

		var event claudeStreamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				usage.InputTokens = event.Message.Usage.InputTokens
				if event.Message.Model != "" {
					model = event.Message.Model
				}
			}
		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				full.WriteString(event.Delta.Text)
				if !send(ctx, ch, StreamEvent{Type: EventDelta, Content: event.Delta.Text}) {
					return
				}
			}
		case "message_delta":
			if event.Delta.StopReason != "" {
				stopReason = event.Delta.StopReason
			}
			if event.Usage != nil {
				usage.OutputTokens = event.Usage.OutputTokens
			}
		case "error":
			msg := "stream error"
			if event.Error != nil {
				msg = event.Error.Message
			}
			send(ctx, ch, StreamEvent{Type: EventError, Error: msg})
			return
		case "message_stop":
			send(ctx, ch, StreamEvent{Type: EventDone, Response: &CompletionResponse{
				Content:    full.String(),
				StopReason: stopReason,
				Usage:      usage,
				Model:      model,
			}})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		send(ctx, ch, StreamEvent{Type: EventError, Error: err.Error()})
		return
	}
	send(ctx, ch, StreamEvent{Type: EventError, Error: "stream ended before message_stop"})
}

type claudeRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Stream      bool            `json:"stream,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeAPIResponse struct {
	ID         string               `json:"id"`
	Type       string               `json:"type"`
	Role       string               `json:"role"`
	Content    []claudeContentBlock `json:"content"`
	Model      string               `json:"model"`
	StopReason string               `json:"stop_reason"`
	Usage      claudeUsage          `json:"usage"`
}

func (r *claudeAPIResponse) toCompletion() *CompletionResponse {
	var content strings.Builder
	for _, block := range r.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return &CompletionResponse{
		Content:    content.String(),
		StopReason: r.StopReason,
		Usage: Usage{
			InputTokens:  r.Usage.InputTokens,
			OutputTokens: r.Usage.OutputTokens,
		},
		Model: r.Model,
	}
}

type claudeContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type claudeStreamEvent struct {
	Type    string             `json:"type"`
	Delta   claudeStreamDelta  `json:"delta"`
	Message *claudeAPIResponse `json:"message,omitempty"`
	Usage   *claudeUsage       `json:"usage,omitempty"`
	Error   *claudeError       `json:"error,omitempty"`
}

type claudeStreamDelta struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

type claudeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
