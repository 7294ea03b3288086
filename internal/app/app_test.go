package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flow-stream/backend/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DatabasePath:          filepath.Join(t.TempDir(), "flow.db"),
		OllamaURL:             "http://127.0.0.1:0",
		DefaultModel:          "llama",
		LogLevel:              "DEBUG",
		RegistryBackend:       "memory",
		StreamTTL:             time.Minute,
		StreamMaxLifetime:     time.Minute,
		StreamPersistInterval: 100 * time.Millisecond,
		StopGracePeriod:       time.Second,
		ChatRateLimit:         1,
		ChatRateBurst:         1,
		ReaperCron:            "*/5 * * * *",
		AttachmentBaseURL:     "/files",
	}
}

func TestNewApp(t *testing.T) {
	app, err := NewApp(testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, app)
	defer func() { require.NoError(t, app.Close()) }()

	assert.NotNil(t, app.DB)
	assert.NotNil(t, app.Server)
	assert.Nil(t, app.Redis)
	assert.Equal(t, ":8000", app.Server.Addr)

	rr := httptest.NewRecorder()
	app.Server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	stop := app.Start(context.Background())
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, app.Shutdown(ctx))
}

func TestNewApp_RedisRegistry(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RegistryBackend = "redis"
	cfg.RedisAddr = mr.Addr()
	cfg.AppPort = 9001

	app, err := NewApp(cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, app.Close()) }()

	assert.NotNil(t, app.Redis)
	assert.Equal(t, ":9001", app.Server.Addr)
}

func TestNewApp_InvalidCron(t *testing.T) {
	cfg := testConfig(t)
	cfg.ReaperCron = "not a cron"

	_, err := NewApp(cfg)
	assert.ErrorContains(t, err, "invalid reaper cron expression")
}
