package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	RedisURL    string
	AutoMigrate bool
	LogLevel    string

	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	ResponseLanguage   string
	DailyLimit         int
	CacheTTL           time.Duration
	CachePurgeInterval time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	v := viper.New()
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AUTO_MIGRATE", false)
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("AI_RESPONSE_LANGUAGE", "English")
	v.SetDefault("AI_DAILY_LIMIT", 20)
	v.SetDefault("CACHE_TTL", "24h")
	v.SetDefault("CACHE_PURGE_INTERVAL", "1h")
	v.AutomaticEnv()

	cfg := &Config{
		ServerPort:             v.GetString("SERVER_PORT"),
		DatabaseURL:            v.GetString("DATABASE_URL"),
		RedisURL:               v.GetString("REDIS_URL"),
		AutoMigrate:            v.GetBool("AUTO_MIGRATE"),
		LogLevel:               strings.ToLower(v.GetString("LOG_LEVEL")),
		SupabaseURL:            strings.TrimRight(v.GetString("SUPABASE_URL"), "/"),
		SupabaseAnonKey:        v.GetString("SUPABASE_ANON_KEY"),
		SupabaseServiceRoleKey: v.GetString("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseJWTSecret:      v.GetString("SUPABASE_JWT_SECRET"),
		OpenAIAPIKey:           v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:          v.GetString("OPENAI_BASE_URL"),
		OpenAIModel:            v.GetString("OPENAI_MODEL"),
		ResponseLanguage:       v.GetString("AI_RESPONSE_LANGUAGE"),
		DailyLimit:             v.GetInt("AI_DAILY_LIMIT"),
		CacheTTL:               v.GetDuration("CACHE_TTL"),
		CachePurgeInterval:     v.GetDuration("CACHE_PURGE_INTERVAL"),
	}

	if cfg.DailyLimit <= 0 {
		return nil, errors.New("AI_DAILY_LIMIT must be positive")
	}
	if cfg.CacheTTL <= 0 {
		return nil, errors.New("CACHE_TTL must be positive")
	}

	return cfg, nil
}

// Validate reports every missing provider credential. The analysis endpoint
// refuses to run while it returns an error.
func (c *Config) Validate() error {
	var missing []string
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.SupabaseAnonKey == "" {
		missing = append(missing, "SUPABASE_ANON_KEY")
	}
	if c.SupabaseServiceRoleKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	return nil
}
