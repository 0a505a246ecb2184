package config

// Config is the root configuration for the orchestrator server.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Agents  AgentsConfig  `yaml:"agents,omitempty"`
	Models  ModelsConfig  `yaml:"models,omitempty"`
	Runtime RuntimeConfig `yaml:"runtime,omitempty"`
	Trace   TraceConfig   `yaml:"trace,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP listener and the web application built on it.
type ServerConfig struct {
	Host            string   `yaml:"host,omitempty"`
	Port            int      `yaml:"port,omitempty"`
	AllowOrigins    []string `yaml:"allowOrigins,omitempty"`
	Web             *bool    `yaml:"web,omitempty"` // serve the bundled UI; defaults to true
	ShutdownSeconds int      `yaml:"shutdownSeconds,omitempty"`
	AccessLog       *bool    `yaml:"accessLog,omitempty"` // defaults to true
}

// WebEnabled reports whether the bundled web UI should be mounted.
func (s ServerConfig) WebEnabled() bool {
	return s.Web == nil || *s.Web
}

// AccessLogEnabled reports whether each request is logged at info level.
func (s ServerConfig) AccessLogEnabled() bool {
	return s.AccessLog == nil || *s.AccessLog
}

// AgentsConfig locates agent definitions.
type AgentsConfig struct {
	Dir string `yaml:"dir,omitempty"` // empty: directory of the executable
}

// ModelsConfig holds credentials and endpoints for the model providers.
type ModelsConfig struct {
	Default string       `yaml:"default,omitempty"` // "gemini" | "claude" | "ollama"
	Gemini  GeminiConfig `yaml:"gemini,omitempty"`
	Claude  ClaudeConfig `yaml:"claude,omitempty"`
	Ollama  OllamaConfig `yaml:"ollama,omitempty"`
}

// GeminiConfig configures the Gemini backend, either the public API or Vertex AI.
type GeminiConfig struct {
	APIKey      string `yaml:"apiKey,omitempty"`
	UseVertexAI bool   `yaml:"useVertexAI,omitempty"`
	Project     string `yaml:"project,omitempty"`
	Location    string `yaml:"location,omitempty"`
}

// ClaudeConfig configures the Anthropic Messages API client.
type ClaudeConfig struct {
	APIKey    string `yaml:"apiKey,omitempty"`
	BaseURL   string `yaml:"baseUrl,omitempty"`
	MaxTokens int    `yaml:"maxTokens,omitempty"`
}

// OllamaConfig configures the local Ollama client.
type OllamaConfig struct {
	Endpoint string `yaml:"endpoint,omitempty"`
}

// RuntimeConfig selects how the Go scheduler is tuned at startup.
type RuntimeConfig struct {
	Policy string `yaml:"policy,omitempty"` // "auto" | "default" | "cgroup"
}

// TraceConfig controls the event trace store behind /debug/trace.
type TraceConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // defaults to true
	Store   string `yaml:"store,omitempty"`   // "sqlite" | "memory"
}

// TraceEnabled reports whether events are recorded.
func (t TraceConfig) TraceEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
