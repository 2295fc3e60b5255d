package core

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyline/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "local",
		Server: config.ServerConfig{
			Port:           "8080",
			RequestTimeout: 5 * time.Second,
			RateLimitRPS:   0,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := NewServer(cfg, discardLogger())
	require.NoError(t, err)
	return srv
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(nil, discardLogger())
	assert.Error(t, err)

	_, err = NewServer(testConfig(), nil)
	assert.Error(t, err)
}

func TestNewServer_LimiterFollowsConfig(t *testing.T) {
	srv := newTestServer(t, testConfig())
	assert.Nil(t, srv.limiter, "RATE_LIMIT_RPS=0 disables limiting")
	assert.NotNil(t, srv.Validator)
	assert.NotNil(t, srv.Handler())

	cfg := testConfig()
	cfg.Server.RateLimitRPS = 2
	cfg.Server.RateLimitBurst = 3
	srv = newTestServer(t, cfg)
	require.NotNil(t, srv.limiter)
	assert.Equal(t, 3, srv.limiter.burst)
}

func TestRequestTimeout_DefaultsWhenUnset(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RequestTimeout = 0
	assert.Equal(t, defaultRequestTimeout, newTestServer(t, cfg).requestTimeout())
	assert.Equal(t, 5*time.Second, newTestServer(t, testConfig()).requestTimeout())
}

func slogJSON(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, nil))
}
