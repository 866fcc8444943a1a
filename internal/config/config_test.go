package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "orders_inserted", cfg.Feed.Channel)
	assert.Equal(t, 10*time.Second, cfg.Feed.ReconnectInterval)
	assert.Equal(t, 10*time.Second, cfg.Notify.ToastTTL)
	assert.Equal(t, "@every 30s", cfg.Sync.Schedule)
	assert.Equal(t, 512*1024, cfg.Upload.InlineWarnBytes)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shopfront.yaml")
	content := []byte("server:\n  port: \"9000\"\nfeed:\n  reconnect_interval: 3s\nsync:\n  enabled: false\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	t.Setenv("SHOPFRONT_NOTIFY_PUSH_URL", "https://push.example.com/send")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Feed.ReconnectInterval)
	assert.False(t, cfg.Sync.Enabled)
	assert.Equal(t, "https://push.example.com/send", cfg.Notify.PushURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
