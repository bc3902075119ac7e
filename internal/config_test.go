package internal_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-multiplayer-relay/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadConfig 測試配置載入的三層來源
func TestLoadConfig(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		cfg, err := internal.LoadConfig("")
		require.NoError(t, err)

		assert.Equal(t, 3001, cfg.Server.Port)
		assert.Equal(t, 2, cfg.Room.MaxPlayers)
		assert.Equal(t, time.Minute, cfg.Room.SweepEvery())
		assert.Equal(t, 5*time.Minute, cfg.Room.MaxAge())
	})

	t.Run("yaml file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
room:
  max_players: 4
  sweep_interval: 30
  max_idle_age: 120
`), 0o644))

		cfg, err := internal.LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, 4, cfg.Room.MaxPlayers)
		assert.Equal(t, 30*time.Second, cfg.Room.SweepEvery())
		assert.Equal(t, 2*time.Minute, cfg.Room.MaxAge())

		// 配置檔未出現的欄位保持預設值
		assert.Equal(t, 15, cfg.Server.ReadTimeout)
	})

	t.Run("PORT env overrides file", func(t *testing.T) {
		t.Setenv("PORT", "8080")

		cfg, err := internal.LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
	})

	t.Run("invalid PORT env", func(t *testing.T) {
		t.Setenv("PORT", "not-a-port")

		_, err := internal.LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := internal.LoadConfig("/no/such/config.yaml")
		assert.Error(t, err)
	})

	t.Run("capacity below minimum", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("room:\n  max_players: 1\n"), 0o644))

		_, err := internal.LoadConfig(path)
		assert.Error(t, err)
	})
}
