package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load consults so the host environment
// cannot leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ORCHESTRATOR_HOST", "ORCHESTRATOR_PORT", "ORCHESTRATOR_AGENTS_DIR",
		"ORCHESTRATOR_LOG_LEVEL", "ORCHESTRATOR_MODEL_PROVIDER",
		"GOOGLE_API_KEY", "GOOGLE_GENAI_USE_VERTEXAI", "GOOGLE_CLOUD_PROJECT",
		"GOOGLE_CLOUD_LOCATION", "ANTHROPIC_API_KEY", "OLLAMA_HOST",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.AllowOrigins)
	assert.True(t, cfg.Server.WebEnabled())
	assert.True(t, cfg.Server.AccessLogEnabled())
	assert.Equal(t, "gemini", cfg.Models.Default)
	assert.Equal(t, "auto", cfg.Runtime.Policy)
	assert.Equal(t, "sqlite", cfg.Trace.Store)
	assert.True(t, cfg.Trace.TraceEnabled())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
}

func TestLoadEmptyPath(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadValidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  host: 127.0.0.1
  port: 9090
  web: false
  allowOrigins:
    - https://app.example.com
agents:
  dir: /srv/agents
models:
  default: ollama
  ollama:
    endpoint: http://gpu-box:11434
trace:
  store: memory
logging:
  level: debug
  consoleStyle: json
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.False(t, cfg.Server.WebEnabled())
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowOrigins)
	assert.Equal(t, "/srv/agents", cfg.Agents.Dir)
	assert.Equal(t, "ollama", cfg.Models.Default)
	assert.Equal(t, "http://gpu-box:11434", cfg.Models.Ollama.Endpoint)
	assert.Equal(t, "memory", cfg.Trace.Store)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.ConsoleStyle)
	// untouched sections keep their defaults
	assert.Equal(t, "auto", cfg.Runtime.Policy)
	assert.Equal(t, 4096, cfg.Models.Claude.MaxTokens)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{invalid yaml"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ORCHESTRATOR_HOST", "localhost")
	t.Setenv("ORCHESTRATOR_PORT", "12345")
	t.Setenv("ORCHESTRATOR_LOG_LEVEL", "TRACE")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("GOOGLE_GENAI_USE_VERTEXAI", "TRUE")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "rag-project")
	t.Setenv("ANTHROPIC_API_KEY", "a-key")
	t.Setenv("OLLAMA_HOST", "127.0.0.1:11434")

	cfg, err := Load("/nonexistent/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "localhost:12345", cfg.Server.Addr())
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, "g-key", cfg.Models.Gemini.APIKey)
	assert.True(t, cfg.Models.Gemini.UseVertexAI)
	assert.Equal(t, "rag-project", cfg.Models.Gemini.Project)
	assert.Equal(t, "a-key", cfg.Models.Claude.APIKey)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Models.Ollama.Endpoint)
}

func TestLoadIgnoresBadPortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ORCHESTRATOR_PORT", "eighty")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
}

func TestLoadExpandsSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("MY_CLAUDE_KEY", "sk-from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  claude:\n    apiKey: ${MY_CLAUDE_KEY}\n  gemini:\n    apiKey: ${UNSET_VAR_XYZ}\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Models.Claude.APIKey)
	assert.Equal(t, "${UNSET_VAR_XYZ}", cfg.Models.Gemini.APIKey)
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"1", "true", "TRUE", " yes ", "on"} {
		assert.True(t, parseBool(s), s)
	}
	for _, s := range []string{"0", "false", "", "nope"} {
		assert.False(t, parseBool(s), s)
	}
}

func TestAddrIPv6(t *testing.T) {
	s := ServerConfig{Host: "::1", Port: 8000}
	assert.Equal(t, "[::1]:8000", s.Addr())
}

func TestResolvePathsCustomHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("ORCHESTRATOR_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, tmp, paths.Base)
	assert.Equal(t, filepath.Join(tmp, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(tmp, "data"), paths.Data)
}

func TestEnsureDirs(t *testing.T) {
	t.Setenv("ORCHESTRATOR_HOME", filepath.Join(t.TempDir(), "home"))

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())

	for _, d := range []string{paths.Base, paths.Data} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestExecutableDir(t *testing.T) {
	dir, err := ExecutableDir()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(dir))
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DOTENV_TEST_NEW=from-file\nDOTENV_TEST_SET=from-file\n"), 0o600))

	t.Setenv("DOTENV_TEST_SET", "from-env")
	t.Setenv("DOTENV_TEST_NEW", "")
	require.NoError(t, os.Unsetenv("DOTENV_TEST_NEW"))

	loaded, err := LoadDotEnv(path)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "from-file", os.Getenv("DOTENV_TEST_NEW"))
	assert.Equal(t, "from-env", os.Getenv("DOTENV_TEST_SET"), "existing env must win")
}

func TestLoadDotEnvMissing(t *testing.T) {
	loaded, err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.False(t, loaded)

	loaded, err = LoadDotEnv("")
	require.NoError(t, err)
	assert.False(t, loaded)
}
