package agentdef

import (
	"context"
	"testing"

	"github.com/soyeahso/orchestrator/internal/llm"
	"github.com/soyeahso/orchestrator/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
)

func mockRegistry() *llm.Registry {
	factory := func(provider string) llm.Factory {
		return func(_ context.Context, id string) (model.LLM, error) {
			return llm.AsModel(&llm.MockClient{ProviderName: provider}, id), nil
		}
	}
	reg := llm.NewRegistry(logging.Nop())
	reg.Register(llm.ProviderGemini, factory(llm.ProviderGemini))
	reg.Register(llm.ProviderClaude, factory(llm.ProviderClaude))
	reg.Prefix("gemini", llm.ProviderGemini)
	reg.Prefix("claude", llm.ProviderClaude)
	reg.SetFallback(llm.ProviderGemini)
	return reg
}

func testDef(app, name, model string, tools ...ToolSpec) Definition {
	return Definition{AppName: app, Name: name, Model: model, Description: name + " agent", Instruction: "do " + name, Tools: tools}
}

func TestBuildOrchestrator(t *testing.T) {
	t.Setenv("ORCHESTRATOR_MODEL", "")
	t.Setenv("ORCHESTRATOR_FALLBACK_MODELS", "")
	agents, err := Build(context.Background(), NewCatalog(Orchestrator()), mockRegistry(), nil)
	require.NoError(t, err)
	require.Len(t, agents, 1)

	a := agents[OrchestratorApp]
	require.NotNil(t, a)
	assert.Equal(t, "orchestrator_agent", a.Name())
}

func TestBuildAgentToolsShareInstances(t *testing.T) {
	cat := NewCatalog(
		testDef("root", "root_agent", "gemini-2.0-flash",
			ToolSpec{Type: ToolAgent, App: "research"},
			ToolSpec{Type: ToolAgent, App: "writer"},
		),
		testDef("research", "research_agent", "gemini-2.0-flash",
			ToolSpec{Type: ToolRAGRetrieval, Name: "retrieve_docs", RAGCorpora: []string{"projects/p/locations/l/ragCorpora/1"}, SimilarityTopK: 3},
		),
		testDef("writer", "writer_agent", "gemini-2.0-flash", ToolSpec{Type: ToolAgent, App: "research"}),
	)

	agents, err := Build(context.Background(), cat, mockRegistry(), nil)
	require.NoError(t, err)
	assert.Len(t, agents, 3)
	assert.Equal(t, "research_agent", agents["research"].Name())
	assert.Equal(t, "writer_agent", agents["writer"].Name())
}

func TestBuildRejectsCycles(t *testing.T) {
	cat := NewCatalog(
		testDef("a", "agent_a", "gemini-2.0-flash", ToolSpec{Type: ToolAgent, App: "b"}),
		testDef("b", "agent_b", "gemini-2.0-flash", ToolSpec{Type: ToolAgent, App: "c"}),
		testDef("c", "agent_c", "gemini-2.0-flash", ToolSpec{Type: ToolAgent, App: "a"}),
	)

	_, err := Build(context.Background(), cat, mockRegistry(), nil)
	var de *DefinitionError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestBuildRejectsSelfReference(t *testing.T) {
	cat := NewCatalog(testDef("a", "agent_a", "gemini-2.0-flash", ToolSpec{Type: ToolAgent, App: "a"}))

	_, err := Build(context.Background(), cat, mockRegistry(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildUnknownApp(t *testing.T) {
	cat := NewCatalog(testDef("a", "agent_a", "gemini-2.0-flash", ToolSpec{Type: ToolAgent, App: "ghost"}))

	_, err := Build(context.Background(), cat, mockRegistry(), nil)
	var de *DefinitionError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "ghost", de.AppName)
}

func TestBuildToolsNeedGemini(t *testing.T) {
	cat := NewCatalog(
		testDef("a", "agent_a", "claude-sonnet-4-5", ToolSpec{Type: ToolAgent, App: "b"}),
		testDef("b", "agent_b", "gemini-2.0-flash"),
	)

	_, err := Build(context.Background(), cat, mockRegistry(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tools require a gemini model")
}

func TestBuildNonGeminiWithoutTools(t *testing.T) {
	cat := NewCatalog(testDef("a", "agent_a", "claude-sonnet-4-5"))

	agents, err := Build(context.Background(), cat, mockRegistry(), nil)
	require.NoError(t, err)
	assert.Contains(t, agents, "a")
}

func TestBuildWithFallbacks(t *testing.T) {
	def := testDef("a", "agent_a", "gemini-2.5-pro")
	def.Fallbacks = []string{"gemini-2.0-flash", "claude-sonnet-4-5"}

	agents, err := Build(context.Background(), NewCatalog(def), mockRegistry(), nil)
	require.NoError(t, err)
	assert.Contains(t, agents, "a")

	b := &builder{ctx: context.Background(), models: mockRegistry(), log: logging.Nop()}
	m, err := b.model(def)
	require.NoError(t, err)
	fo, ok := m.(*llm.Failover)
	require.True(t, ok)
	require.Len(t, fo.Models(), 3)
	assert.Equal(t, "gemini-2.5-pro", fo.Name())
	assert.Equal(t, "claude-sonnet-4-5", fo.Models()[2].Name())
}

func TestBuildToolsNeedGeminiFallbacks(t *testing.T) {
	def := testDef("a", "agent_a", "gemini-2.0-flash",
		ToolSpec{Type: ToolRAGRetrieval, Name: "retrieve", RAGCorpora: []string{"c"}})
	def.Fallbacks = []string{"claude-sonnet-4-5"}

	_, err := Build(context.Background(), NewCatalog(def), mockRegistry(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"claude-sonnet-4-5" is served by claude`)
}

func TestBuildInvalidDefinition(t *testing.T) {
	cat := NewCatalog(Definition{AppName: "a", Name: "agent_a"})

	_, err := Build(context.Background(), cat, mockRegistry(), nil)
	var de *DefinitionError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Issues, "model is required")
}

func TestRagTool(t *testing.T) {
	tl := ragTool(ToolSpec{
		Type:                    ToolRAGRetrieval,
		Name:                    "retrieve",
		RAGCorpora:              []string{"c1", "c2"},
		SimilarityTopK:          4,
		VectorDistanceThreshold: 0.25,
	})
	require.NotNil(t, tl.Retrieval)
	store := tl.Retrieval.VertexRAGStore
	require.NotNil(t, store)
	require.Len(t, store.RAGResources, 2)
	assert.Equal(t, "c2", store.RAGResources[1].RAGCorpus)
	assert.Equal(t, int32(4), *store.SimilarityTopK)
	assert.InDelta(t, 0.25, *store.VectorDistanceThreshold, 1e-9)

	bare := ragTool(ToolSpec{Name: "r", RAGCorpora: []string{"c"}})
	assert.Nil(t, bare.Retrieval.VertexRAGStore.SimilarityTopK)
	assert.Nil(t, bare.Retrieval.VertexRAGStore.VectorDistanceThreshold)
}
