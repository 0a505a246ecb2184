package agentdef

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/soyeahso/orchestrator/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const researchYAML = `
name: research_agent
model: gemini-2.0-flash
description: Answers questions from the product docs.
instruction: Use the retrieval tool before answering.
tools:
  - type: vertex_ai_rag_retrieval
    name: retrieve_docs
    description: Product documentation
    ragCorpora:
      - projects/p/locations/us-central1/ragCorpora/42
    similarityTopK: 8
    vectorDistanceThreshold: 0.6
`

const plannerJSONC = `{
  // planning agent
  "name": "planner",
  "model": "claude-sonnet-4-5",
  "instruction": "Plan the work.", /* trailing comma below */
}`

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "research-agent", "root_agent.yaml"), researchYAML)
	writeFile(t, filepath.Join(dir, "planner", "root_agent.jsonc"), plannerJSONC)
	writeFile(t, filepath.Join(dir, ".hidden", "root_agent.yaml"), researchYAML)
	writeFile(t, filepath.Join(dir, "__pycache__", "root_agent.yaml"), researchYAML)
	writeFile(t, filepath.Join(dir, "static", "index.html"), "<html></html>")
	writeFile(t, filepath.Join(dir, "root_agent.yaml"), researchYAML)

	defs, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "planner", defs[0].AppName)
	assert.Equal(t, "claude-sonnet-4-5", defs[0].Model)
	assert.Equal(t, filepath.Join(dir, "planner", "root_agent.jsonc"), defs[0].Source)

	r := defs[1]
	assert.Equal(t, "research-agent", r.AppName)
	assert.Equal(t, "research_agent", r.Name)
	require.Len(t, r.Tools, 1)
	assert.Equal(t, ToolRAGRetrieval, r.Tools[0].Type)
	assert.Equal(t, 8, r.Tools[0].SimilarityTopK)
	assert.InDelta(t, 0.6, r.Tools[0].VectorDistanceThreshold, 1e-9)
}

func TestDiscoverPrefersYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "root_agent.yaml"), "name: from_yaml\nmodel: gemini-2.0-flash\n")
	writeFile(t, filepath.Join(dir, "a", "root_agent.json"), `{"name":"from_json","model":"gemini-2.0-flash"}`)

	defs, err := Discover(dir)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "from_yaml", defs[0].Name)
}

func TestDiscoverInvalidDefinition(t *testing.T) {
	tests := map[string]string{
		"root_agent.yaml":  "name: [unclosed\n",
		"root_agent.yml":   "name: a\nmodel: m\nsurprise: true\n",
		"root_agent.json":  `{"name": "a", "model": "m", "extra": 1}`,
		"root_agent.jsonc": `{"name": "bad-name", "model": "m"}`,
	}
	for file, content := range tests {
		t.Run(file, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, "broken", file), content)

			_, err := Discover(dir)
			var de *DefinitionError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, "broken", de.AppName)
		})
	}
}

func TestDiscoverEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty", "root_agent.yaml"), "")

	_, err := Discover(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestDiscoverMissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCatalog(t *testing.T) {
	t.Setenv("ORCHESTRATOR_MODEL", "")
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "research-agent", "root_agent.yaml"), researchYAML)

	cat, err := LoadCatalog(dir, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"orchestrator-agent", "research-agent"}, cat.Apps())

	def, ok := cat.Get(OrchestratorApp)
	require.True(t, ok)
	assert.Equal(t, SourceBuiltin, def.Source)
}

func TestLoadCatalogOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, OrchestratorApp, "root_agent.yaml"), `
name: orchestrator_agent
model: gemini-2.5-pro
instruction: Delegate to research_agent.
tools:
  - type: agent_tool
    app: research-agent
`)
	writeFile(t, filepath.Join(dir, "research-agent", "root_agent.yaml"), researchYAML)

	cat, err := LoadCatalog(dir, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())

	def, _ := cat.Get(OrchestratorApp)
	assert.Equal(t, "gemini-2.5-pro", def.Model)
	assert.True(t, def.HasTools())
}

func TestLoadCatalogMissingDir(t *testing.T) {
	cat, err := LoadCatalog(filepath.Join(t.TempDir(), "missing"), logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{OrchestratorApp}, cat.Apps())

	cat, err = LoadCatalog("", logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())
}
