package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"
	"sync"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/soyeahso/orchestrator/internal/config"
	"github.com/soyeahso/orchestrator/internal/logging"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
	ProviderOllama = "ollama"
)

// ProviderError is returned when an LLM provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Factory builds a model for a provider-specific model id.
type Factory func(ctx context.Context, modelID string) (model.LLM, error)

// Registry maps model references like "gemini-2.0-flash", "claude/claude-sonnet-4-5"
// or "ollama/llama3" to ADK models.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory // provider name → factory
	prefixes  map[string]string  // bare model prefix → provider name
	fallback  string             // default provider name
	models    map[string]model.LLM
	log       *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		prefixes:  make(map[string]string),
		models:    make(map[string]model.LLM),
		log:       log.Sub("llm.registry"),
	}
}

// Register adds a factory under the given provider name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	r.log.Debug().Str("provider", name).Msg("registered model provider")
}

// Prefix routes bare model ids starting with prefix to provider.
// e.g., Prefix("claude", "claude") sends "claude-sonnet-4-5" to the claude provider.
func (r *Registry) Prefix(prefix, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[prefix] = provider
}

// SetFallback sets the provider used for references no prefix matches.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Route returns the provider and provider-local model id for ref.
// Resolution order: explicit "provider/id" → longest matching prefix → fallback.
func (r *Registry) Route(ref string) (provider, modelID string, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.route(ref)
}

func (r *Registry) route(ref string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", "", errors.New("empty model reference")
	}

	if p, id, ok := strings.Cut(ref, "/"); ok {
		if _, known := r.factories[p]; known {
			if id == "" {
				return "", "", fmt.Errorf("model reference %q has no model id", ref)
			}
			return p, id, nil
		}
	}

	best := ""
	for prefix := range r.prefixes {
		if strings.HasPrefix(ref, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		if p := r.prefixes[best]; r.factories[p] != nil {
			return p, ref, nil
		}
	}

	if r.fallback != "" && r.factories[r.fallback] != nil {
		return r.fallback, ref, nil
	}
	return "", "", fmt.Errorf("no model provider for %q", ref)
}

// Resolve returns the model for ref. Provider clients are created on first
// use, so a missing credential surfaces when the agent runs, not at startup.
func (r *Registry) Resolve(ctx context.Context, ref string) (model.LLM, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.models[ref]; ok {
		return m, nil
	}
	provider, id, err := r.route(ref)
	if err != nil {
		return nil, err
	}

	m := &lazyModel{name: id, provider: provider, factory: r.factories[provider]}
	r.models[ref] = m
	r.log.Debug().Str("ref", ref).Str("provider", provider).Str("model", id).Msg("resolved model")
	return m, nil
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig registers the gemini, claude and ollama providers
// from cfg and routes unprefixed references to cfg.Default.
func NewRegistryFromConfig(cfg config.ModelsConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	reg.Register(ProviderGemini, GeminiFactory(cfg.Gemini))
	reg.Prefix("gemini", ProviderGemini)

	reg.Register(ProviderClaude, ClaudeFactory(cfg.Claude))
	reg.Prefix("claude", ProviderClaude)

	reg.Register(ProviderOllama, OllamaFactory(cfg.Ollama))

	fallback := cfg.Default
	if fallback == "" {
		fallback = ProviderGemini
	}
	reg.SetFallback(fallback)
	return reg
}

// GeminiFactory builds ADK Gemini models against the Gemini API or Vertex AI.
func GeminiFactory(cfg config.GeminiConfig) Factory {
	return func(ctx context.Context, modelID string) (model.LLM, error) {
		cc := &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if cfg.UseVertexAI {
			cc = &genai.ClientConfig{
				Backend:  genai.BackendVertexAI,
				Project:  cfg.Project,
				Location: cfg.Location,
			}
		}
		m, err := gemini.NewModel(ctx, modelID, cc)
		if err != nil {
			return nil, &ProviderError{Provider: ProviderGemini, Message: err.Error()}
		}
		return m, nil
	}
}

// ClaudeFactory builds Anthropic-backed models.
func ClaudeFactory(cfg config.ClaudeConfig) Factory {
	return func(_ context.Context, modelID string) (model.LLM, error) {
		if cfg.APIKey == "" {
			return nil, &ProviderError{Provider: ProviderClaude, Code: 401, Message: "ANTHROPIC_API_KEY is not set"}
		}
		c := NewClaudeAPIClient(cfg.APIKey, modelID,
			WithClaudeBaseURL(cfg.BaseURL),
			WithClaudeMaxTokens(cfg.MaxTokens),
		)
		return AsModel(c, modelID), nil
	}
}

// OllamaFactory builds models served by a local Ollama daemon.
func OllamaFactory(cfg config.OllamaConfig) Factory {
	return func(_ context.Context, modelID string) (model.LLM, error) {
		return AsModel(NewOllamaAPIClient(cfg.Endpoint, modelID), modelID), nil
	}
}

// lazyModel defers provider construction to the first request. A failed
// construction is retried on the next request.
type lazyModel struct {
	name     string
	provider string
	factory  Factory

	mu    sync.Mutex
	model model.LLM
}

func (l *lazyModel) Name() string { return l.name }

// Provider returns the provider the model was routed to.
func (l *lazyModel) Provider() string { return l.provider }

func (l *lazyModel) get(ctx context.Context) (model.LLM, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.model != nil {
		return l.model, nil
	}
	m, err := l.factory(ctx, l.name)
	if err != nil {
		return nil, err
	}
	l.model = m
	return m, nil
}

func (l *lazyModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		m, err := l.get(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		for resp, err := range m.GenerateContent(ctx, req, stream) {
			if !yield(resp, err) {
				return
			}
		}
	}
}

// ProviderOf reports which provider backs m, if m came from a Registry.
func ProviderOf(m model.LLM) (string, bool) {
	p, ok := m.(interface{ Provider() string })
	if !ok {
		return "", false
	}
	return p.Provider(), true
}
