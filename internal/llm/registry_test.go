package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/soyeahso/orchestrator/internal/config"
	"github.com/soyeahso/orchestrator/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func mockFactory(provider string, calls *int) Factory {
	return func(_ context.Context, id string) (model.LLM, error) {
		if calls != nil {
			*calls++
		}
		return AsModel(&MockClient{ProviderName: provider}, id), nil
	}
}

func testRegistry() *Registry {
	reg := NewRegistry(silentLog())
	reg.Register(ProviderGemini, mockFactory(ProviderGemini, nil))
	reg.Register(ProviderClaude, mockFactory(ProviderClaude, nil))
	reg.Register(ProviderOllama, mockFactory(ProviderOllama, nil))
	reg.Prefix("gemini", ProviderGemini)
	reg.Prefix("claude", ProviderClaude)
	reg.SetFallback(ProviderGemini)
	return reg
}

func TestRegistryRoute(t *testing.T) {
	reg := testRegistry()

	tests := []struct {
		ref      string
		provider string
		id       string
	}{
		{"gemini-2.0-flash", ProviderGemini, "gemini-2.0-flash"},
		{"gemini/gemini-2.5-pro", ProviderGemini, "gemini-2.5-pro"},
		{"claude-sonnet-4-5", ProviderClaude, "claude-sonnet-4-5"},
		{"claude/claude-opus-4-1", ProviderClaude, "claude-opus-4-1"},
		{"ollama/llama3", ProviderOllama, "llama3"},
		{"ollama/library/qwen:7b", ProviderOllama, "library/qwen:7b"},
		{"mystery-model", ProviderGemini, "mystery-model"},
		{"acme/model", ProviderGemini, "acme/model"},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			p, id, err := reg.Route(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.provider, p)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestRegistryRouteLongestPrefix(t *testing.T) {
	reg := testRegistry()
	reg.Prefix("gemini-local", ProviderOllama)

	p, _, err := reg.Route("gemini-local-7b")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p)
}

func TestRegistryRouteErrors(t *testing.T) {
	reg := NewRegistry(silentLog())

	_, _, err := reg.Route("")
	assert.Error(t, err)

	_, _, err = reg.Route("gemini-2.0-flash")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no model provider")

	reg.Register(ProviderOllama, mockFactory(ProviderOllama, nil))
	_, _, err = reg.Route("ollama/")
	assert.Error(t, err)
}

func TestRegistryResolveIsLazyAndCached(t *testing.T) {
	calls := 0
	reg := NewRegistry(silentLog())
	reg.Register(ProviderGemini, mockFactory(ProviderGemini, &calls))
	reg.SetFallback(ProviderGemini)

	m1, err := reg.Resolve(context.Background(), "gemini-2.0-flash")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", m1.Name())
	assert.Equal(t, 0, calls, "factory must not run before the first request")

	m2, err := reg.Resolve(context.Background(), "gemini-2.0-flash")
	require.NoError(t, err)
	assert.Same(t, m1, m2)

	for _, err := range m1.GenerateContent(context.Background(), &model.LLMRequest{}, false) {
		require.NoError(t, err)
	}
	for _, err := range m1.GenerateContent(context.Background(), &model.LLMRequest{}, false) {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)

	p, ok := ProviderOf(m1)
	assert.True(t, ok)
	assert.Equal(t, ProviderGemini, p)
}

func TestRegistryFactoryErrorSurfacesOnRun(t *testing.T) {
	reg := NewRegistry(silentLog())
	reg.Register(ProviderClaude, func(context.Context, string) (model.LLM, error) {
		return nil, errors.New("no key")
	})
	reg.SetFallback(ProviderClaude)

	m, err := reg.Resolve(context.Background(), "claude-x")
	require.NoError(t, err)

	var got error
	for _, err := range m.GenerateContent(context.Background(), &model.LLMRequest{}, false) {
		got = err
	}
	assert.EqualError(t, got, "no key")
}

func TestRegistryList(t *testing.T) {
	assert.Equal(t, []string{"claude", "gemini", "ollama"}, testRegistry().List())
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := config.Defaults().Models
	cfg.Default = ProviderOllama
	reg := NewRegistryFromConfig(cfg, silentLog())

	assert.Equal(t, []string{"claude", "gemini", "ollama"}, reg.List())

	p, _, err := reg.Route("gemini-2.0-flash")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p)

	p, _, err = reg.Route("claude-haiku-4-5")
	require.NoError(t, err)
	assert.Equal(t, ProviderClaude, p)

	p, id, err := reg.Route("llama3")
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, p)
	assert.Equal(t, "llama3", id)
}

func TestClaudeFactoryRequiresKey(t *testing.T) {
	_, err := ClaudeFactory(config.ClaudeConfig{})(context.Background(), "claude-x")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 401, pe.Code)
}

func TestProviderErrorFormat(t *testing.T) {
	assert.Equal(t, "claude: 429 rate limited", (&ProviderError{Provider: "claude", Code: 429, Message: "rate limited"}).Error())
	assert.Equal(t, "ollama: connection refused", (&ProviderError{Provider: "ollama", Message: "connection refused"}).Error())
}
