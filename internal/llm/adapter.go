package llm

import (
	"context"
	"iter"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// clientModel adapts a completion Client to the ADK model.LLM interface.
// Only text parts are forwarded; function calls are a Gemini-only feature.
type clientModel struct {
	client Client
	name   string
}

// AsModel wraps c so it can back an ADK agent under the model id name.
func AsModel(c Client, name string) model.LLM {
	return &clientModel{client: c, name: name}
}

func (m *clientModel) Name() string { return m.name }

func (m *clientModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	creq := m.completionRequest(req)
	if !stream {
		return func(yield func(*model.LLMResponse, error) bool) {
			resp, err := m.client.Complete(ctx, creq)
			if err != nil {
				yield(nil, err)
				return
			}
			yield(finalResponse(resp), nil)
		}
	}

	return func(yield func(*model.LLMResponse, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		events, err := m.client.Stream(ctx, creq)
		if err != nil {
			yield(nil, err)
			return
		}
		for ev := range events {
			switch ev.Type {
			case EventDelta:
				partial := &model.LLMResponse{
					Content: genai.NewContentFromText(ev.Content, genai.RoleModel),
					Partial: true,
				}
				if !yield(partial, nil) {
					return
				}
			case EventError:
				yield(nil, &ProviderError{Provider: m.client.Name(), Message: ev.Error})
				return
			case EventDone:
				if ev.Response == nil {
					ev.Response = &CompletionResponse{}
				}
				yield(finalResponse(ev.Response), nil)
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (m *clientModel) completionRequest(req *model.LLMRequest) CompletionRequest {
	out := CompletionRequest{Model: m.name}
	if req == nil {
		return out
	}
	if req.Model != "" {
		out.Model = req.Model
	}
	if cfg := req.Config; cfg != nil {
		out.System = contentText(cfg.SystemInstruction)
		if cfg.Temperature != nil {
			t := float64(*cfg.Temperature)
			out.Temperature = &t
		}
		if cfg.MaxOutputTokens > 0 {
			out.MaxTokens = int(cfg.MaxOutputTokens)
		}
	}

	for _, c := range req.Contents {
		text := contentText(c)
		if text == "" {
			continue
		}
		role := RoleUser
		if c.Role == genai.RoleModel {
			role = RoleAssistant
		}
		// Providers reject consecutive turns from the same role.
		if n := len(out.Messages); n > 0 && out.Messages[n-1].Role == role {
			out.Messages[n-1].Content += "\n\n" + text
			continue
		}
		out.Messages = append(out.Messages, Message{Role: role, Content: text})
	}
	return out
}

func contentText(c *genai.Content) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Parts {
		if p == nil || p.Text == "" || p.Thought {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

func finalResponse(resp *CompletionResponse) *model.LLMResponse {
	return &model.LLMResponse{
		Content:      genai.NewContentFromText(resp.Content, genai.RoleModel),
		TurnComplete: true,
		FinishReason: finishReason(resp.StopReason),
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(resp.Usage.InputTokens),
			CandidatesTokenCount: int32(resp.Usage.OutputTokens),
			TotalTokenCount:      int32(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}

func finishReason(stop string) genai.FinishReason {
	switch stop {
	case "max_tokens", "length":
		return genai.FinishReasonMaxTokens
	default:
		return genai.FinishReasonStop
	}
}
