package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "CattosItemTracker_DB", cfg.Marker)
	assert.Equal(t, "characters", cfg.Container)
	assert.Equal(t, 5*time.Second, cfg.UpdateInterval())
	assert.True(t, cfg.API.Enabled)
	assert.False(t, cfg.API.InsecureTLS)
	assert.Equal(t, 10*time.Second, cfg.APITimeout())
	assert.Equal(t, "json", cfg.History.Backend)
	assert.Equal(t, 100, cfg.History.MaxSnapshots)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "tracker.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().WowPath, cfg.WowPath)
}

func TestLoad_ValidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	content := `
wow_path: /games/wow
update_interval: 10
api:
  main_character: Thrall-Orgrimmar
  only_send_main: true
history:
  backend: bolt
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/games/wow", cfg.WowPath)
	assert.Equal(t, 10*time.Second, cfg.UpdateInterval())
	assert.Equal(t, "Thrall-Orgrimmar", cfg.API.MainCharacter)
	assert.True(t, cfg.API.OnlySendMain)
	assert.Equal(t, "bolt", cfg.History.Backend)
	// Untouched keys keep their defaults.
	assert.Equal(t, "https://clip.jetzt/api/connect", cfg.API.URL)
	assert.Equal(t, "equipment_history.json", cfg.History.Path)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wow_path: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CATTOS_WOW_PATH", "/env/wow")
	t.Setenv("CATTOS_API_ENABLED", "false")
	t.Setenv("CATTOS_UPDATE_INTERVAL", "30")
	t.Setenv("CATTOS_WORKER_COUNT", "not-a-number")
	t.Setenv("DATABASE_URL", "postgres://localhost/cattos")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "/env/wow", cfg.WowPath)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, 30*time.Second, cfg.UpdateInterval())
	assert.Equal(t, 4, cfg.WorkerCount, "invalid number falls back")
	assert.Equal(t, "postgres://localhost/cattos", cfg.History.DatabaseURL)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "tracker.yaml")

	cfg := Default()
	cfg.API.MainCharacter = "Jaina-Theramore"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Jaina-Theramore", loaded.API.MainCharacter)
}

func TestUpdateInterval_Floor(t *testing.T) {
	cfg := Default()
	cfg.UpdateIntervalSecs = 0
	assert.Equal(t, time.Second, cfg.UpdateInterval())
}

func TestLoadFile_IgnoresEnvironment(t *testing.T) {
	t.Setenv("CATTOS_API_KEY", "from-env")
	t.Setenv("CATTOS_WOW_PATH", "/env/wow")

	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("wow_path: /games/wow\n"), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/games/wow", cfg.WowPath)
	assert.Empty(t, cfg.API.Key)

	full, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/env/wow", full.WowPath)
	assert.Equal(t, "from-env", full.API.Key)
}
