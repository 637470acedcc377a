package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServer_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DB_URL", "REDIS_URL", "BUS_DRIVER", "JWT_SECRET", "CORS_ORIGINS", "ASSISTANT_ENABLED", "STATUS_CACHE_TTL", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BusLocal, cfg.BusDriver)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.True(t, cfg.AssistantEnabled)
	assert.Equal(t, 30*time.Second, cfg.StatusCacheTTL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadServer_BusNeedsBroker(t *testing.T) {
	t.Setenv("BUS_DRIVER", "amqp")
	t.Setenv("AMQP_URL", "")
	_, err := LoadServer()
	assert.Error(t, err)

	t.Setenv("BUS_DRIVER", "kafka")
	_, err = LoadServer()
	assert.Error(t, err)
}

func TestLoadServer_Overrides(t *testing.T) {
	t.Setenv("BUS_DRIVER", "REDIS")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ASSISTANT_ENABLED", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, BusRedis, cfg.BusDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.AssistantEnabled)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("SUPPORT_API_URL", "https://shop.example/api/v1/support/")
	t.Setenv("SUPPORT_WS_URL", "")
	t.Setenv("SUPPORT_POLL_INTERVAL", "5s")
	t.Setenv("SUPPORT_ROLE", "emp")
	t.Setenv("SUPPORT_SUBJECT", "e1")
	t.Setenv("SUPPORT_PAGE_SIZE", "30")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/api/v1/support", cfg.APIURL)
	assert.Equal(t, "wss://shop.example/api/v1/support/ws", cfg.WSURL)
	assert.Equal(t, "EMP", cfg.Role)
	assert.Equal(t, "e1", cfg.Subject)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 30, cfg.PageSize)

	t.Setenv("SUPPORT_PAGE_SIZE", "-1")
	_, err = LoadClient()
	assert.Error(t, err)
}
