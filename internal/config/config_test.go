package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"CONFIG_FILE", "PORT", "DATABASE_URL", "GATEWAY_DRIVER", "SQLITE_PATH", "NATS_URL",
	"REALTIME_DRIVER", "REMOTE_TIMEOUT", "PROBE_INTERVAL", "MAX_SYNC_ATTEMPTS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 10*time.Second, cfg.RemoteTimeout)
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("GATEWAY_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/k.db")
	t.Setenv("REALTIME_DRIVER", "nats")
	t.Setenv("REMOTE_TIMEOUT", "2s")
	t.Setenv("MAX_SYNC_ATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.GatewayDriver)
	assert.Equal(t, "/tmp/k.db", cfg.SQLitePath)
	assert.Equal(t, DriverNATS, cfg.RealtimeDriver)
	assert.Equal(t, 2*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, 5, cfg.MaxSyncAttempts)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "kanban.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "7000"
gateway_driver: sqlite
sqlite_path: file.db
realtime_driver: none
probe_interval: 250ms
max_sync_attempts: 3
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7001", cfg.Port, "env wins over file")
	assert.Equal(t, DriverSQLite, cfg.GatewayDriver)
	assert.Equal(t, "file.db", cfg.SQLitePath)
	assert.Equal(t, DriverNone, cfg.RealtimeDriver)
	assert.Equal(t, 250*time.Millisecond, cfg.ProbeInterval)
	assert.Equal(t, 3, cfg.MaxSyncAttempts)
	assert.Equal(t, 10*time.Second, cfg.RemoteTimeout, "unset keys keep defaults")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad driver", map[string]string{"GATEWAY_DRIVER": "mysql"}},
		{"bad realtime", map[string]string{"REALTIME_DRIVER": "kafka"}},
		{"bad duration", map[string]string{"REMOTE_TIMEOUT": "soon"}},
		{"zero duration", map[string]string{"PROBE_INTERVAL": "0s"}},
		{"bad int", map[string]string{"MAX_SYNC_ATTEMPTS": "many"}},
		{"negative attempts", map[string]string{"MAX_SYNC_ATTEMPTS": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})
}
