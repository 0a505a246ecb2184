package agentdef

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/agenttool"
	"google.golang.org/adk/tool/geminitool"
	"google.golang.org/genai"

	"github.com/soyeahso/orchestrator/internal/llm"
	"github.com/soyeahso/orchestrator/internal/logging"
)

// ModelResolver turns a model reference into an ADK model.
// *llm.Registry satisfies it.
type ModelResolver interface {
	Resolve(ctx context.Context, ref string) (model.LLM, error)
}

// Build creates the root agent of every app in cat, keyed by app name.
// agent_tool references are built once and shared; a reference cycle is
// reported as a *DefinitionError.
func Build(ctx context.Context, cat *Catalog, models ModelResolver, log *logging.Logger) (map[string]agent.Agent, error) {
	if log == nil {
		log = logging.Nop()
	}
	b := &builder{
		ctx:      ctx,
		log:      log.Sub("agentdef"),
		cat:      cat,
		models:   models,
		built:    make(map[string]agent.Agent),
		visiting: make(map[string]bool),
	}
	for _, app := range cat.Apps() {
		if _, err := b.build(app); err != nil {
			return nil, err
		}
	}
	return b.built, nil
}

type builder struct {
	ctx      context.Context
	cat      *Catalog
	models   ModelResolver
	log      *logging.Logger
	built    map[string]agent.Agent
	visiting map[string]bool
	path     []string
}

func (b *builder) build(app string) (agent.Agent, error) {
	if a, ok := b.built[app]; ok {
		return a, nil
	}
	if b.visiting[app] {
		cycle := append(append([]string{}, b.path...), app)
		return nil, &DefinitionError{AppName: b.path[0], Issues: []string{
			"agent_tool cycle: " + strings.Join(cycle, " -> "),
		}}
	}

	def, ok := b.cat.Get(app)
	if !ok {
		return nil, &DefinitionError{AppName: app, Issues: []string{"no such app"}}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	b.visiting[app] = true
	b.path = append(b.path, app)
	defer func() {
		delete(b.visiting, app)
		b.path = b.path[:len(b.path)-1]
	}()

	m, err := b.model(def)
	if err != nil {
		return nil, err
	}

	tools := make([]tool.Tool, 0, len(def.Tools))
	for i, spec := range def.Tools {
		t, err := b.tool(spec)
		if err != nil {
			if _, ok := err.(*DefinitionError); ok {
				return nil, err
			}
			return nil, &DefinitionError{AppName: app, Source: def.Source, Err: fmt.Errorf("tools[%d]: %w", i, err)}
		}
		tools = append(tools, t)
	}

	a, err := llmagent.New(llmagent.Config{
		Name:        def.Name,
		Description: def.Description,
		Model:       m,
		Instruction: def.Instruction,
		Tools:       tools,
	})
	if err != nil {
		return nil, &DefinitionError{AppName: app, Source: def.Source, Err: err}
	}
	b.built[app] = a
	return a, nil
}

// model resolves def's model. Fallbacks wrap it in an llm.Failover. Tools
// run server side on Gemini, so every model in the chain must be Gemini
// when def binds tools.
func (b *builder) model(def Definition) (model.LLM, error) {
	refs := append([]string{def.Model}, def.Fallbacks...)
	chain := make([]model.LLM, 0, len(refs))
	for _, ref := range refs {
		m, err := b.models.Resolve(b.ctx, ref)
		if err != nil {
			return nil, &DefinitionError{AppName: def.AppName, Source: def.Source, Err: fmt.Errorf("resolving model %q: %w", ref, err)}
		}
		if def.HasTools() {
			if p, ok := llm.ProviderOf(m); ok && p != llm.ProviderGemini {
				return nil, &DefinitionError{AppName: def.AppName, Source: def.Source, Issues: []string{
					fmt.Sprintf("tools require a gemini model, %q is served by %s", ref, p),
				}}
			}
		}
		chain = append(chain, m)
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return llm.NewFailover(chain[0], chain[1:], b.log), nil
}

func (b *builder) tool(spec ToolSpec) (tool.Tool, error) {
	switch spec.Type {
	case ToolAgent:
		sub, err := b.build(spec.App)
		if err != nil {
			return nil, err
		}
		return agenttool.New(sub, &agenttool.Config{SkipSummarization: spec.SkipSummarization}), nil
	case ToolRAGRetrieval:
		return geminitool.New(spec.Name, ragTool(spec)), nil
	default:
		return nil, fmt.Errorf("unknown tool type %q", spec.Type)
	}
}

// ragTool builds the Vertex AI RAG retrieval tool Gemini runs server side.
func ragTool(spec ToolSpec) *genai.Tool {
	store := &genai.VertexRAGStore{}
	for _, c := range spec.RAGCorpora {
		store.RAGResources = append(store.RAGResources, &genai.VertexRAGStoreRAGResource{RAGCorpus: c})
	}
	if spec.SimilarityTopK > 0 {
		store.SimilarityTopK = genai.Ptr(int32(spec.SimilarityTopK))
	}
	if spec.VectorDistanceThreshold > 0 {
		store.VectorDistanceThreshold = genai.Ptr(spec.VectorDistanceThreshold)
	}
	return &genai.Tool{Retrieval: &genai.Retrieval{VertexRAGStore: store}}
}
