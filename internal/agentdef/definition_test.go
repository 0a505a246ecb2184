package agentdef

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrchestratorDefaults(t *testing.T) {
	t.Setenv("ORCHESTRATOR_MODEL", "")
	t.Setenv("ORCHESTRATOR_INSTRUCTION", "")
	t.Setenv("ORCHESTRATOR_FALLBACK_MODELS", "")

	def := Orchestrator()
	assert.Equal(t, "gemini-2.0-flash", def.Model)
	assert.Empty(t, def.Fallbacks)
	assert.Equal(t, "orchestrator_agent", def.Name)
	assert.Equal(t, "Your job is orchestrate the user query based on the available agents", def.Instruction)
	assert.Equal(t, OrchestratorApp, def.AppName)
	assert.Equal(t, SourceBuiltin, def.Source)
	assert.False(t, def.HasTools())
	assert.NoError(t, def.Validate())
}

func TestOrchestratorEnvOverrides(t *testing.T) {
	t.Setenv("ORCHESTRATOR_MODEL", " gemini-2.5-flash ")
	t.Setenv("ORCHESTRATOR_INSTRUCTION", "Route everything to research_agent")
	t.Setenv("ORCHESTRATOR_FALLBACK_MODELS", "gemini-2.0-flash, ,claude-sonnet-4-5")

	def := Orchestrator()
	assert.Equal(t, "gemini-2.5-flash", def.Model)
	assert.Equal(t, []string{"gemini-2.0-flash", "claude-sonnet-4-5"}, def.Fallbacks)
	assert.Equal(t, "Route everything to research_agent", def.Instruction)
	assert.Equal(t, OrchestratorName, def.Name)
}

func TestValidate(t *testing.T) {
	valid := func() Definition {
		return Definition{AppName: "a", Name: "agent_a", Model: "gemini-2.0-flash", Instruction: "x"}
	}

	tests := []struct {
		name   string
		mutate func(*Definition)
		issue  string
	}{
		{"missing model", func(d *Definition) { d.Model = " " }, "model is required"},
		{"blank fallback", func(d *Definition) { d.Fallbacks = []string{"gemini-2.0-flash", ""} }, "fallbacks[1] is empty"},
		{"missing name", func(d *Definition) { d.Name = "" }, "name is required"},
		{"bad identifier", func(d *Definition) { d.Name = "orchestrator-agent" }, "valid identifier"},
		{"reserved name", func(d *Definition) { d.Name = "user" }, "reserved"},
		{"tool without type", func(d *Definition) { d.Tools = []ToolSpec{{}} }, "tools[0]: type is required"},
		{"unknown tool", func(d *Definition) { d.Tools = []ToolSpec{{Type: "web_search"}} }, "unknown tool type"},
		{"agent tool without app", func(d *Definition) { d.Tools = []ToolSpec{{Type: ToolAgent}} }, "app is required"},
		{"rag without corpora", func(d *Definition) {
			d.Tools = []ToolSpec{{Type: ToolRAGRetrieval, Name: "retrieve"}}
		}, "at least one corpus"},
		{"rag blank corpus", func(d *Definition) {
			d.Tools = []ToolSpec{{Type: ToolRAGRetrieval, Name: "retrieve", RAGCorpora: []string{""}}}
		}, "ragCorpora[0] is empty"},
		{"rag bad name", func(d *Definition) {
			d.Tools = []ToolSpec{{Type: ToolRAGRetrieval, Name: "re trieve", RAGCorpora: []string{"c"}}}
		}, "valid identifier"},
		{"rag negative topk", func(d *Definition) {
			d.Tools = []ToolSpec{{Type: ToolRAGRetrieval, Name: "r", RAGCorpora: []string{"c"}, SimilarityTopK: -1}}
		}, "similarityTopK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(&d)
			err := d.Validate()

			var de *DefinitionError
			require.ErrorAs(t, err, &de)
			require.Len(t, de.Issues, 1)
			assert.Contains(t, de.Issues[0], tt.issue)
		})
	}
}

func TestValidateCollectsAllIssues(t *testing.T) {
	err := Definition{AppName: "broken", Tools: []ToolSpec{{Type: ToolAgent}}}.Validate()

	var de *DefinitionError
	require.ErrorAs(t, err, &de)
	assert.Len(t, de.Issues, 3)
	assert.Contains(t, err.Error(), `agent definition "broken"`)
}

func TestValidToolsPass(t *testing.T) {
	d := Definition{
		Name:  "root",
		Model: "gemini-2.0-flash",
		Tools: []ToolSpec{
			{Type: ToolAgent, App: "research-agent"},
			{Type: ToolRAGRetrieval, Name: "retrieve_docs", RAGCorpora: []string{"projects/p/locations/us-central1/ragCorpora/1"}, SimilarityTopK: 5, VectorDistanceThreshold: 0.5},
		},
	}
	assert.NoError(t, d.Validate())
}

func TestDefinitionErrorFormat(t *testing.T) {
	err := &DefinitionError{AppName: "x", Source: "/a/root_agent.yaml", Err: errors.New("bad yaml")}
	assert.Equal(t, `agent definition "x" (/a/root_agent.yaml): bad yaml`, err.Error())
	assert.ErrorContains(t, errors.Unwrap(err), "bad yaml")

	builtin := &DefinitionError{AppName: "y", Source: SourceBuiltin, Issues: []string{"a", "b"}}
	assert.Equal(t, `agent definition "y": a; b`, builtin.Error())
}
