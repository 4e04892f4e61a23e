package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.RealtimeDebounce)
	assert.Equal(t, 15*time.Second, cfg.WebhookTimeout)
	assert.NotEmpty(t, cfg.BotWebhookBase)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SWEEP_INTERVAL", "10s")
	t.Setenv("RATE_LIMIT_REQUESTS", "120")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 10*time.Second, cfg.SweepInterval)
	assert.Equal(t, 120, cfg.RateLimitRequests)
	assert.True(t, cfg.TracingEnabled)
}

func TestInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "not-a-duration")
	t.Setenv("RATE_LIMIT_REQUESTS", "many")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 60, cfg.RateLimitRequests)
}
