package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"STORE_BACKEND", "MYSQL_DSN", "REDIS_ADDR", "MONITOR_INTERVAL", "LOW_STOCK_THRESHOLD", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendMySQL, cfg.StoreBackend)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, time.Minute, cfg.MonitorInterval)
	assert.Nil(t, cfg.LowStockThreshold)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("MONITOR_INTERVAL", "15s")
	t.Setenv("LOW_STOCK_THRESHOLD", "7")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, 15*time.Second, cfg.MonitorInterval)
	require.NotNil(t, cfg.LowStockThreshold)
	assert.Equal(t, 7, *cfg.LowStockThreshold)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LOW_STOCK_THRESHOLD", "-3")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("LOW_STOCK_THRESHOLD", "")
	t.Setenv("MONITOR_INTERVAL", "soon")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoad_EnvFile(t *testing.T) {
	// godotenv never overrides variables that already exist
	for _, key := range []string{"STORE_BACKEND", "REDIS_ADDR"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STORE_BACKEND=memory\nREDIS_ADDR=cache:6380\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
