// Package agentdef describes the agents the server hosts: the builtin
// orchestrator plus any definitions found under the agents directory.
package agentdef

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Builtin orchestrator values.
const (
	OrchestratorApp         = "orchestrator-agent"
	OrchestratorName        = "orchestrator_agent"
	DefaultModel            = "gemini-2.0-flash"
	DefaultInstruction      = "Your job is orchestrate the user query based on the available agents"
	OrchestratorDescription = "Routes each user query to the agents available to it."

	// SourceBuiltin marks definitions compiled into the binary.
	SourceBuiltin = "builtin"
)

// Tool types.
const (
	ToolAgent        = "agent_tool"
	ToolRAGRetrieval = "vertex_ai_rag_retrieval"
)

// Definition is one agent: the model it talks to, its identifier and the
// instruction it follows. Definitions are immutable once loaded.
type Definition struct {
	Name        string     `yaml:"name" json:"name"`
	Model       string     `yaml:"model" json:"model"`
	Fallbacks   []string   `yaml:"fallbacks,omitempty" json:"fallbacks,omitempty"` // tried in order when Model fails with a retryable error
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Instruction string     `yaml:"instruction" json:"instruction"`
	Tools       []ToolSpec `yaml:"tools,omitempty" json:"tools,omitempty"`

	// Set by the loader, not read from the file.
	AppName string `yaml:"-" json:"-"`
	Source  string `yaml:"-" json:"-"`
}

// ToolSpec binds a tool to an agent. Which fields apply depends on Type.
type ToolSpec struct {
	Type string `yaml:"type" json:"type"`

	// agent_tool
	App               string `yaml:"app,omitempty" json:"app,omitempty"`
	SkipSummarization bool   `yaml:"skipSummarization,omitempty" json:"skipSummarization,omitempty"`

	// vertex_ai_rag_retrieval
	Name                    string   `yaml:"name,omitempty" json:"name,omitempty"`
	Description             string   `yaml:"description,omitempty" json:"description,omitempty"`
	RAGCorpora              []string `yaml:"ragCorpora,omitempty" json:"ragCorpora,omitempty"`
	SimilarityTopK          int      `yaml:"similarityTopK,omitempty" json:"similarityTopK,omitempty"`
	VectorDistanceThreshold float64  `yaml:"vectorDistanceThreshold,omitempty" json:"vectorDistanceThreshold,omitempty"`
}

// DefinitionError reports an unusable agent definition.
type DefinitionError struct {
	AppName string
	Source  string
	Issues  []string
	Err     error
}

func (e *DefinitionError) Error() string {
	var b strings.Builder
	b.WriteString("agent definition")
	if e.AppName != "" {
		fmt.Fprintf(&b, " %q", e.AppName)
	}
	if e.Source != "" && e.Source != SourceBuiltin {
		fmt.Fprintf(&b, " (%s)", e.Source)
	}
	switch {
	case len(e.Issues) > 0:
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Issues, "; "))
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *DefinitionError) Unwrap() error { return e.Err }

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Orchestrator returns the builtin orchestrator definition.
// ORCHESTRATOR_MODEL and ORCHESTRATOR_INSTRUCTION override its defaults, so
// this must run after the .env file is loaded.
func Orchestrator() Definition {
	def := Definition{
		AppName:     OrchestratorApp,
		Source:      SourceBuiltin,
		Name:        OrchestratorName,
		Model:       DefaultModel,
		Description: OrchestratorDescription,
		Instruction: DefaultInstruction,
	}
	if v := strings.TrimSpace(os.Getenv("ORCHESTRATOR_MODEL")); v != "" {
		def.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("ORCHESTRATOR_INSTRUCTION")); v != "" {
		def.Instruction = v
	}
	for _, f := range strings.Split(os.Getenv("ORCHESTRATOR_FALLBACK_MODELS"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			def.Fallbacks = append(def.Fallbacks, f)
		}
	}
	return def
}

// HasTools reports whether the definition binds any tools.
func (d Definition) HasTools() bool { return len(d.Tools) > 0 }

// Validate checks the definition and returns a *DefinitionError listing every problem.
func (d Definition) Validate() error {
	var issues []string

	if strings.TrimSpace(d.Model) == "" {
		issues = append(issues, "model is required")
	}
	for i, f := range d.Fallbacks {
		if strings.TrimSpace(f) == "" {
			issues = append(issues, fmt.Sprintf("fallbacks[%d] is empty", i))
		}
	}
	switch {
	case d.Name == "":
		issues = append(issues, "name is required")
	case !identifier.MatchString(d.Name):
		issues = append(issues, fmt.Sprintf("name %q must be a valid identifier", d.Name))
	case d.Name == "user":
		issues = append(issues, `name "user" is reserved`)
	}

	for i, t := range d.Tools {
		for _, msg := range t.validate() {
			issues = append(issues, fmt.Sprintf("tools[%d]: %s", i, msg))
		}
	}

	if len(issues) == 0 {
		return nil
	}
	return &DefinitionError{AppName: d.AppName, Source: d.Source, Issues: issues}
}

func (t ToolSpec) validate() []string {
	var issues []string
	switch t.Type {
	case ToolAgent:
		if t.App == "" {
			issues = append(issues, "app is required for agent_tool")
		}
	case ToolRAGRetrieval:
		if !identifier.MatchString(t.Name) {
			issues = append(issues, fmt.Sprintf("name %q must be a valid identifier", t.Name))
		}
		if len(t.RAGCorpora) == 0 {
			issues = append(issues, "ragCorpora must list at least one corpus")
		}
		for j, c := range t.RAGCorpora {
			if strings.TrimSpace(c) == "" {
				issues = append(issues, fmt.Sprintf("ragCorpora[%d] is empty", j))
			}
		}
		if t.SimilarityTopK < 0 {
			issues = append(issues, "similarityTopK must be >= 0")
		}
		if t.VectorDistanceThreshold < 0 {
			issues = append(issues, "vectorDistanceThreshold must be >= 0")
		}
	case "":
		issues = append(issues, "type is required")
	default:
		issues = append(issues, fmt.Sprintf("unknown tool type %q", t.Type))
	}
	return issues
}
