package llm

import (
	"context"
	"errors"
	"iter"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/soyeahso/orchestrator/internal/logging"
)

// Failover is a model that tries its primary first and then each fallback
// in order. It only moves on when a model fails with a retryable error
// before producing any response; once output has streamed to the caller
// the error is returned as is.
type Failover struct {
	models []model.LLM
	log    *logging.Logger
}

// NewFailover wraps primary with fallbacks. With no fallbacks it still
// works but only ever calls primary.
func NewFailover(primary model.LLM, fallbacks []model.LLM, log *logging.Logger) *Failover {
	if log == nil {
		log = logging.Nop()
	}
	return &Failover{
		models: append([]model.LLM{primary}, fallbacks...),
		log:    log.Sub("failover"),
	}
}

// Name returns the primary model's name.
func (f *Failover) Name() string { return f.models[0].Name() }

// Provider returns the primary model's provider, if known.
func (f *Failover) Provider() string {
	p, _ := ProviderOf(f.models[0])
	return p
}

// Models returns the chain, primary first.
func (f *Failover) Models() []model.LLM { return f.models }

func (f *Failover) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		var lastErr error
		for i, m := range f.models {
			r := req
			if i > 0 && req != nil {
				cp := *req
				cp.Model = m.Name()
				r = &cp
			}

			produced := false
			retry := false
			for resp, err := range m.GenerateContent(ctx, r, stream) {
				if err != nil && !produced && i < len(f.models)-1 && isRetryable(err) {
					f.log.Warn().
						Str("model", m.Name()).
						Str("next", f.models[i+1].Name()).
						Err(err).
						Msg("retryable error, trying next model")
					lastErr = err
					retry = true
					break
				}
				produced = true
				if !yield(resp, err) {
					return
				}
			}
			if !retry {
				return
			}
		}
		if lastErr != nil {
			yield(nil, lastErr)
		}
	}
}

// isRetryable checks if the error suggests trying another model.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return retryableStatus(provErr.Code)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "capacity") ||
		strings.Contains(msg, "timeout")
}

func retryableStatus(code int) bool {
	switch code {
	case 401, 403, 429, 500, 502, 503, 529:
		return true
	}
	return false
}
