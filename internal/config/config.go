package config

import "fmt"

// Bind defaults for the server.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8000
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with defaults applied.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			AllowOrigins:    []string{"*"},
			ShutdownSeconds: 10,
		},
		Models: ModelsConfig{
			Default: "gemini",
			Gemini: GeminiConfig{
				Location: "us-central1",
			},
			Claude: ClaudeConfig{
				MaxTokens: 4096,
			},
			Ollama: OllamaConfig{
				Endpoint: "http://localhost:11434",
			},
		},
		Runtime: RuntimeConfig{
			Policy: "auto",
		},
		Trace: TraceConfig{
			Store: "sqlite",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// Addr returns host:port for the server listener.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}
