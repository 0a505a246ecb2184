package config

import (
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields lets credentials be written as ${ENV_VAR} in the file.
func expandSensitiveFields(cfg *Config) {
	cfg.Models.Gemini.APIKey = expandEnvVars(cfg.Models.Gemini.APIKey)
	cfg.Models.Gemini.Project = expandEnvVars(cfg.Models.Gemini.Project)
	cfg.Models.Claude.APIKey = expandEnvVars(cfg.Models.Claude.APIKey)
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. A missing file yields defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
			}
		case !os.IsNotExist(err):
			return cfg, err
		}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields left empty by the file.
func applyDefaults(cfg *Config) {
	d := Defaults()
	if cfg.Server.Host == "" {
		cfg.Server.Host = d.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = d.Server.Port
	}
	if len(cfg.Server.AllowOrigins) == 0 {
		cfg.Server.AllowOrigins = d.Server.AllowOrigins
	}
	if cfg.Server.ShutdownSeconds == 0 {
		cfg.Server.ShutdownSeconds = d.Server.ShutdownSeconds
	}
	if cfg.Models.Default == "" {
		cfg.Models.Default = d.Models.Default
	}
	if cfg.Models.Gemini.Location == "" {
		cfg.Models.Gemini.Location = d.Models.Gemini.Location
	}
	if cfg.Models.Claude.MaxTokens == 0 {
		cfg.Models.Claude.MaxTokens = d.Models.Claude.MaxTokens
	}
	if cfg.Models.Ollama.Endpoint == "" {
		cfg.Models.Ollama.Endpoint = d.Models.Ollama.Endpoint
	}
	if cfg.Runtime.Policy == "" {
		cfg.Runtime.Policy = d.Runtime.Policy
	}
	if cfg.Trace.Store == "" {
		cfg.Trace.Store = d.Trace.Store
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = d.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads ORCHESTRATOR_* and provider environment variables.
// Provider variables use the names the Google and Anthropic SDKs document.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ORCHESTRATOR_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ORCHESTRATOR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ORCHESTRATOR_AGENTS_DIR"); v != "" {
		cfg.Agents.Dir = v
	}
	if v := os.Getenv("ORCHESTRATOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("ORCHESTRATOR_MODEL_PROVIDER"); v != "" {
		cfg.Models.Default = strings.ToLower(v)
	}

	if v := os.Getenv("GOOGLE_API_KEY"); v != "" && cfg.Models.Gemini.APIKey == "" {
		cfg.Models.Gemini.APIKey = v
	}
	if v := os.Getenv("GOOGLE_GENAI_USE_VERTEXAI"); v != "" {
		cfg.Models.Gemini.UseVertexAI = parseBool(v)
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		cfg.Models.Gemini.Project = v
	}
	if v := os.Getenv("GOOGLE_CLOUD_LOCATION"); v != "" {
		cfg.Models.Gemini.Location = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.Models.Claude.APIKey == "" {
		cfg.Models.Claude.APIKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Models.Ollama.Endpoint = normalizeOllamaHost(v)
	}
}

// parseBool accepts the loose spellings used in .env files ("1", "TRUE", "yes").
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// normalizeOllamaHost turns OLLAMA_HOST values like "127.0.0.1:11434" into URLs.
func normalizeOllamaHost(v string) string {
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return strings.TrimSuffix(v, "/")
	}
	return "http://" + strings.TrimSuffix(v, "/")
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
