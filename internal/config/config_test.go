package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTripKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "igharvest.yaml")
	cfg := Default()
	cfg.Harvest.MinWords = 4
	cfg.Harvest.FetchReactions = false
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Harvest.MinWords)
	assert.False(t, got.Harvest.FetchReactions)
	assert.Equal(t, time.Hour, got.Harvest.Interval)
	assert.Equal(t, "https://api.instagram.com", got.API.BaseURL)
}

func TestPartialFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("harvest:\n  minWords: 3\n"), 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Harvest.MinWords)
	assert.Equal(t, 5, got.API.MaxAttempts)
	assert.Equal(t, "./igharvest.db", got.Storage.DBPath)
}

func TestResolveEnv(t *testing.T) {
	t.Setenv("IG_APP_ID", "app-from-env")
	t.Setenv("IG_API_MAX_ATTEMPTS", "7")
	t.Setenv("IG_API_RPS", "0.5")
	t.Setenv("IGHARVEST_DB", "/tmp/x.db")
	t.Setenv("IG_API_BURST", "not-a-number")

	cfg := Default()
	cfg.API.AppSecret = "kept"
	cfg.ResolveEnv()
	assert.Equal(t, "app-from-env", cfg.API.AppID)
	assert.Equal(t, "kept", cfg.API.AppSecret)
	assert.Equal(t, 7, cfg.API.MaxAttempts)
	assert.Equal(t, 0.5, cfg.API.RequestsPerSecond)
	assert.Equal(t, 10, cfg.API.Burst)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.DBPath)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("IGHARVEST_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("IGHARVEST_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), env))
	assert.Equal(t, "loaded", os.Getenv("IGHARVEST_TEST_DOTENV"))
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Harvest.MinWords)
}
