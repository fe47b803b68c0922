package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMigrateIfNeededWritesEnvRefsAndBacksUp(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	configPath := filepath.Join(dir, "providers.yaml")

	require.NoError(t, os.WriteFile(envPath, []byte(
		"BRIEFING_LLM_MODE=direct\nBRIEFING_LLM_API_KEY=sk-secret\nBRIEFING_LLM_MODEL=claude-opus\n",
	), 0o600))

	now := time.Unix(1700000000, 0)
	migrated, err := MigrateIfNeeded(configPath, envPath, now)
	require.NoError(t, err)
	assert.True(t, migrated)

	raw, err := os.ReadFile(configPath)
	require.NoError(t, err)
	var cfg ProviderConfig
	require.NoError(t, yaml.Unmarshal(raw, &cfg))
	assert.Equal(t, "${BRIEFING_LLM_API_KEY}", cfg.LLM.APIKey)
	assert.NotContains(t, string(raw), "sk-secret")

	_, err = os.Stat(envPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(envPath + ".bak.1700000000")
	assert.NoError(t, err)
}

func TestMigrateIfNeededSkipsWhenConfigExists(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "providers.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("llm:\n  mode: direct\n"), 0o600))

	migrated, err := MigrateIfNeeded(configPath, filepath.Join(dir, ".env"), time.Unix(0, 0))
	require.NoError(t, err)
	assert.False(t, migrated)
}
