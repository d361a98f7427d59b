package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AGENT_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	for _, key := range []string{"LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-3.5-turbo", cfg.Agent.Model)
	assert.Equal(t, "sk-test", cfg.Agent.APIKey)
	assert.Equal(t, 0.0, cfg.Agent.Temperature)
	assert.Equal(t, 45*time.Second, cfg.Agent.Timeout())
	assert.Equal(t, time.Duration(0), cfg.Agent.CacheTTL())
	assert.Equal(t, 30*time.Second, cfg.Triage.LockTTL())
	assert.Equal(t, "support@example.com", cfg.Notification.SupportEmail)
	assert.Equal(t, LoggerConfig{Level: "info", Format: "json", Output: "stdout"}, cfg.Logger)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AGENT_MODEL", "gpt-4o-mini")
	t.Setenv("AGENT_TEMPERATURE", "0.2")
	t.Setenv("AGENT_CACHE_TTL_SECONDS", "90")
	t.Setenv("SMTP_SERVER", "mail.internal")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("APP_PORT", "9999")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.Agent.Model)
	assert.InDelta(t, 0.2, cfg.Agent.Temperature, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.Agent.CacheTTL())
	assert.Equal(t, "mail.internal:2525", cfg.Notification.SMTPAddr())
	assert.Equal(t, "0.0.0.0:9999", cfg.App.Addr())
}

func TestLoad_InvalidNumbers(t *testing.T) {
	t.Setenv("AGENT_TEMPERATURE", "warm")
	_, err := Load()
	assert.Error(t, err)
}
