package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "AI_PROVIDER", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY", "Model",
		"GEMINI_API_KEY", "GEMINI_MODEL", "AI_TEMPERATURE", "AI_TOP_P", "AI_TOP_K", "AI_MAX_TOKENS",
		"AI_TIMEOUT", "SQLITE_PATH", "STORE_TIMEOUT", "SESSION_IDLE_THRESHOLD", "SESSION_SWEEP_INTERVAL",
		"SESSION_SERIALIZE_OWNER", "JWT_SECRET", "AUTH_COOKIE", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ProviderArk, cfg.AI.Provider)
	assert.False(t, cfg.AI.Enabled())
	assert.Equal(t, 0.7, cfg.AI.Temperature)
	assert.Equal(t, 0.8, cfg.AI.TopP)
	assert.Equal(t, 40, cfg.AI.TopK)
	assert.Equal(t, 2048, cfg.AI.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.AI.CompletionTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Session.SweepInterval)
	assert.True(t, cfg.Session.SerializeOwner)
	assert.Equal(t, 5*time.Second, cfg.Store.IOTimeout)
	assert.Empty(t, cfg.Store.SQLitePath)
	assert.Equal(t, "token", cfg.Auth.CookieName)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("AI_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("AI_TEMPERATURE", "0.2")
	t.Setenv("AI_TOP_K", "8")
	t.Setenv("SESSION_IDLE_THRESHOLD", "5m")
	t.Setenv("SESSION_SERIALIZE_OWNER", "false")
	t.Setenv("SQLITE_PATH", "/tmp/lifesync.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, ProviderGemini, cfg.AI.Provider)
	assert.True(t, cfg.AI.Enabled())
	assert.Equal(t, 0.2, cfg.AI.Temperature)
	assert.Equal(t, 8, cfg.AI.TopK)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleThreshold)
	assert.False(t, cfg.Session.SerializeOwner)
	assert.Equal(t, "/tmp/lifesync.db", cfg.Store.SQLitePath)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"AI_PROVIDER":             "openai",
		"AI_TEMPERATURE":          "warm",
		"AI_TOP_K":                "many",
		"AI_TIMEOUT":              "-1s",
		"SESSION_SWEEP_INTERVAL":  "soon",
		"SESSION_SERIALIZE_OWNER": "maybe",
		"PORT":                    "80 80",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestArkEnabled(t *testing.T) {
	cfg := AIConfig{Provider: ProviderArk, Model: "ep-1"}
	assert.False(t, cfg.Enabled())

	cfg.APIKey = "k"
	assert.True(t, cfg.Enabled())

	cfg.APIKey = ""
	cfg.AccessKey, cfg.SecretKey = "ak", "sk"
	assert.True(t, cfg.Enabled())
}
