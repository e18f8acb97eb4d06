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

	assert.Equal(t, 9502, cfg.Gateway.Port)
	assert.Equal(t, "0.0.0.0", cfg.Gateway.Host)
	assert.Equal(t, 2*time.Second, cfg.Realtime.ConnectTimeout)
	assert.Equal(t, 500, cfg.Realtime.PageSize)
	assert.True(t, cfg.Realtime.AtomicClaim)
	assert.Equal(t, 8, cfg.Realtime.MaxInflight)
	assert.Equal(t, "ru", cfg.I18n.Lang)
	assert.Equal(t, "noreply@mixchat.ru", cfg.Mail.From)
	assert.False(t, cfg.Mail.Enabled)
	assert.True(t, cfg.Retention.Enabled)
	assert.Equal(t, 720*time.Hour, cfg.Retention.MaxAge)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	content := `
gateway:
  port: 9000
  host: "127.0.0.1"
realtime:
  connect_timeout: 500ms
  page_size: 0
  atomic_claim: false
log:
  level: debug
  format: json
storage:
  path: /tmp/chat.db
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Gateway.Port)
	assert.Equal(t, "127.0.0.1:9000", cfg.Gateway.Addr())
	assert.Equal(t, 500*time.Millisecond, cfg.Realtime.ConnectTimeout)
	assert.Equal(t, 0, cfg.Realtime.PageSize)
	assert.False(t, cfg.Realtime.AtomicClaim)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/chat.db", cfg.Storage.Path)
	// untouched sections keep defaults
	assert.Equal(t, 8, cfg.Realtime.MaxInflight)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9502, cfg.Gateway.Port)
}

func TestLoad_InvalidYAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("gateway: [port"), 0644))

	_, err := Load(configFile)
	assert.Error(t, err)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MIXCHAT_GATEWAY_PORT", "7001")
	t.Setenv("MIXCHAT_MAIL_HOST", "smtp.example.org")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Gateway.Port)
	assert.Equal(t, "smtp.example.org", cfg.Mail.Host)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Gateway.Port = 0
	cfg.Realtime.MaxInflight = 0
	cfg.Mail.Enabled = true
	cfg.Retention.MaxAge = 0

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway.port")
	assert.Contains(t, err.Error(), "max_inflight")
	assert.Contains(t, err.Error(), "mail.host")
	assert.Contains(t, err.Error(), "retention.max_age")
}

func TestSaveTo_RoundTrip(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Gateway.Port = 9911

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveTo(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9911, reloaded.Gateway.Port)
}
