package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaEndpoint = "http://localhost:11434"

// OllamaAPIClient talks to a local Ollama server through /api/chat.
type OllamaAPIClient struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaAPIClient creates a new Ollama API client.
// baseURL should be like "http://localhost:11434".
func NewOllamaAPIClient(baseURL, model string) *OllamaAPIClient {
	if baseURL == "" {
		baseURL = defaultOllamaEndpoint
	}
	return &OllamaAPIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Name returns the provider name.
func (o *OllamaAPIClient) Name() string { return "ollama" }

// Complete sends a non-streaming chat request.
func (o *OllamaAPIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := postJSON(ctx, o.client, o.Name(), o.baseURL+"/api/chat", nil, o.buildRequestBody(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &CompletionResponse{
		Content:    result.Message.Content,
		StopReason: result.DoneReason,
		Usage:      Usage{InputTokens: result.PromptEvalCount, OutputTokens: result.EvalCount},
		Model:      o.modelFor(req),
		Duration:   time.Since(start),
	}, nil
}

// Stream sends a streaming chat request. Ollama streams newline-delimited JSON.
func (o *OllamaAPIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, error) {
	resp, err := postJSON(ctx, o.client, o.Name(), o.baseURL+"/api/chat", nil, o.buildRequestBody(req, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var full strings.Builder
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var chunk ollamaChatResponse
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				continue
			}
			if chunk.Error != "" {
				send(ctx, ch, StreamEvent{Type: EventError, Error: chunk.Error})
				return
			}
			if chunk.Message.Content != "" {
				full.WriteString(chunk.Message.Content)
				if !send(ctx, ch, StreamEvent{Type: EventDelta, Content: chunk.Message.Content}) {
					return
				}
			}
			if chunk.Done {
				send(ctx, ch, StreamEvent{Type: EventDone, Response: &CompletionResponse{
					Content:    full.String(),
					StopReason: chunk.DoneReason,
					Usage:      Usage{InputTokens: chunk.PromptEvalCount, OutputTokens: chunk.EvalCount},
					Model:      o.modelFor(req),
				}})
				return
			}
		}
		if err := scanner.Err(); err != nil {
			send(ctx, ch, StreamEvent{Type: EventError, Error: err.Error()})
			return
		}
		send(ctx, ch, StreamEvent{Type: EventError, Error: "stream ended before done"})
	}()
	return ch, nil
}

func (o *OllamaAPIClient) modelFor(req CompletionRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return o.model
}

func (o *OllamaAPIClient) buildRequestBody(req CompletionRequest, stream bool) ollamaChatRequest {
	body := ollamaChatRequest{
		Model:  o.modelFor(req),
		Stream: stream,
	}
	if req.System != "" {
		body.Messages = append(body.Messages, ollamaMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}
	if req.Temperature != nil || req.MaxTokens > 0 {
		body.Options = &ollamaOptions{Temperature: req.Temperature}
		if req.MaxTokens > 0 {
			body.Options.NumPredict = req.MaxTokens
		}
	}
	return body
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason,omitempty"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}
