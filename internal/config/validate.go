package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue
	add := func(path, format string, args ...any) {
		issues = append(issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(cfg.Server.Host) == "" {
		add("server.host", "host is required")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		add("server.port", "port must be 0-65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownSeconds < 0 {
		add("server.shutdownSeconds", "must not be negative, got %d", cfg.Server.ShutdownSeconds)
	}
	for i, origin := range cfg.Server.AllowOrigins {
		if strings.TrimSpace(origin) == "" {
			add(fmt.Sprintf("server.allowOrigins[%d]", i), "origin must not be empty")
		}
	}

	validProviders := []string{"gemini", "claude", "ollama"}
	if !slices.Contains(validProviders, cfg.Models.Default) {
		add("models.default", "must be one of %v, got %q", validProviders, cfg.Models.Default)
	}
	if cfg.Models.Gemini.UseVertexAI && cfg.Models.Gemini.Project == "" {
		add("models.gemini.project", "required when useVertexAI is set")
	}
	if cfg.Models.Claude.MaxTokens < 0 {
		add("models.claude.maxTokens", "must not be negative, got %d", cfg.Models.Claude.MaxTokens)
	}

	// runtime.policy is not checked here. An unknown policy only warns at startup.

	validStores := []string{"sqlite", "memory"}
	if !slices.Contains(validStores, cfg.Trace.Store) {
		add("trace.store", "must be one of %v, got %q", validStores, cfg.Trace.Store)
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if !slices.Contains(validLogLevels, cfg.Logging.Level) {
		add("logging.level", "must be one of %v, got %q", validLogLevels, cfg.Logging.Level)
	}
	validConsoleStyles := []string{"pretty", "json"}
	if !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		add("logging.consoleStyle", "must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle)
	}

	return issues
}
