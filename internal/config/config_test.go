package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BEACON_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8040, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.True(t, cfg.PoolEnabled)
	assert.Equal(t, 0, cfg.PoolWorkers)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.False(t, cfg.Backup.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("BEACON_DATA_DIR", t.TempDir())
	t.Setenv("BEACON_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("POOL_ENABLED", "false")
	t.Setenv("POOL_WORKERS", "8")
	t.Setenv("FEED_URL", "wss://feed.example.com/ws")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.PoolEnabled)
	assert.Equal(t, 8, cfg.PoolWorkers)
	assert.Equal(t, "wss://feed.example.com/ws", cfg.FeedURL)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("BEACON_DATA_DIR", t.TempDir())
	t.Setenv("BEACON_PORT", "-1")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadBackupConfig_RequiresCredentials(t *testing.T) {
	t.Setenv("BACKUP_ENABLED", "true")
	t.Setenv("BACKUP_S3_BUCKET", "backups")
	t.Setenv("BACKUP_S3_ACCESS_KEY_ID", "")
	t.Setenv("BACKUP_S3_SECRET_ACCESS_KEY", "")

	cfg := loadBackupConfig()
	assert.False(t, cfg.Enabled, "missing credentials must disable backup")

	t.Setenv("BACKUP_S3_ACCESS_KEY_ID", "key")
	t.Setenv("BACKUP_S3_SECRET_ACCESS_KEY", "secret")

	cfg = loadBackupConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "auto", cfg.Region)
}
