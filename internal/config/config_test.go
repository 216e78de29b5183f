package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"basic_config": {"server_address": ":9000", "min_workers": 1, "max_workers": 4},
		"provider": "OpenAI",
		"providers": {
			"openai": {"base_url": "https://example.test/v1", "model": "gpt-4o-mini", "creative_model": "gpt-4o", "api_key": "sk-test"}
		},
		"redis": {"enabled": true, "port": 6380}
	}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, 4, cfg.BasicConfig.MaxWorkers)
	assert.Equal(t, 128, cfg.BasicConfig.QueueSize)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, "127.0.0.1", cfg.Redis.Host)

	name, prov := cfg.ActiveProvider()
	assert.Equal(t, "openai", name)
	assert.Equal(t, "gpt-4o", prov.CreativeModel)
	assert.Equal(t, "sk-test", prov.APIKey)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, "gemini", cfg.Provider)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PROMPTMASTER_BASIC_CONFIG_SERVER_ADDRESS", ":7777")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.BasicConfig.ServerAddress)
}

func TestLoadRejectsInvertedPool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"basic_config": {"min_workers": 8, "max_workers": 2}}`), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "max_workers")
}

func TestActiveProviderEnvKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "from-env")
	cfg := &Config{Provider: "gemini"}
	_, prov := cfg.ActiveProvider()
	assert.Equal(t, "from-env", prov.APIKey)
}
