package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfigIsValid(t *testing.T) {
	config := NewDefaultConfig()
	require.NoError(t, ValidateConfig(config))
	assert.Equal(t, 10, config.Detection.MinBlockChars)
	assert.Equal(t, 15000, config.Detection.MaxBlockChars)
	assert.Equal(t, "3s", config.Consent.SelectorTimeout)
	assert.Equal(t, "2s", config.Consent.PatternTimeout)
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 9000

[browser]
default_device = "iphone-14"
job_timeout = "90s"
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[server]
port = 9100
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, "iphone-14", config.Browser.DefaultDevice)
	assert.Equal(t, "90s", config.Browser.JobTimeout)
	// Untouched defaults survive
	assert.Equal(t, "localhost", config.Server.Host)
}

func TestLoadFromFiles_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trackscope.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 9000\n"), 0644))

	t.Setenv("TRACKSCOPE_SERVER_PORT", "9200")
	t.Setenv("TRACKSCOPE_LLM_PROVIDER", "Claude")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, config.Server.Port)
	assert.Equal(t, LLMProviderClaude, config.LLM.DefaultProvider)
	assert.Equal(t, "sk-test", config.Claude.APIKey)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFromFiles(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[browser]\njob_timeout = \"soon\"\n"), 0644))
	_, err = LoadFromFiles(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser.job_timeout")

	provider := filepath.Join(dir, "provider.toml")
	require.NoError(t, os.WriteFile(provider, []byte("[llm]\ndefault_provider = \"openai\"\n"), 0644))
	_, err = LoadFromFiles(provider)
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, Duration("3s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("nope", time.Minute))
}

func TestNewJobID(t *testing.T) {
	a := NewJobID()
	b := NewJobID()
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "scan_")
}

func TestExampleDeploymentConfigLoads(t *testing.T) {
	config, err := LoadFromFiles(filepath.Join("..", "..", "deployments", "trackscope.toml"))
	require.NoError(t, err)

	assert.Equal(t, NewDefaultConfig().Browser, config.Browser)
	assert.Equal(t, LLMProviderGemini, config.LLM.DefaultProvider)
}
