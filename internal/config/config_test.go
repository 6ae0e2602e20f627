package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_MODEL", "")
	t.Setenv("AI_DAILY_LIMIT", "")
	t.Setenv("CACHE_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	assert.Equal(t, 20, cfg.DailyLimit)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, time.Hour, cfg.CachePurgeInterval)
	assert.Equal(t, "English", cfg.ResponseLanguage)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co/")
	t.Setenv("AI_DAILY_LIMIT", "5")
	t.Setenv("CACHE_TTL", "2h")
	t.Setenv("AI_RESPONSE_LANGUAGE", "French")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://abc.supabase.co", cfg.SupabaseURL)
	assert.Equal(t, 5, cfg.DailyLimit)
	assert.Equal(t, 2*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "French", cfg.ResponseLanguage)
}

func TestLoadRejectsNonPositiveLimit(t *testing.T) {
	t.Setenv("AI_DAILY_LIMIT", "-1")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("complete config passes", func(t *testing.T) {
		cfg := &Config{
			OpenAIAPIKey:           "sk-test",
			DatabaseURL:            "postgres://localhost/feedbackflow",
			SupabaseURL:            "https://abc.supabase.co",
			SupabaseAnonKey:        "anon",
			SupabaseServiceRoleKey: "service",
		}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("lists every missing credential", func(t *testing.T) {
		cfg := &Config{DatabaseURL: "postgres://localhost/feedbackflow"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OPENAI_API_KEY")
		assert.Contains(t, err.Error(), "SUPABASE_URL")
		assert.Contains(t, err.Error(), "SUPABASE_ANON_KEY")
		assert.Contains(t, err.Error(), "SUPABASE_SERVICE_ROLE_KEY")
		assert.NotContains(t, err.Error(), "DATABASE_URL")
	})
}
