package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration. Values come from an optional YAML
// file pointed at by CONFIG_PATH, with environment variables taking precedence.
type Config struct {
	Env  string `yaml:"env"`
	Port string `yaml:"port"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	SemaphoreAPIKey string `yaml:"semaphore_api_key"`
	SMSTestMode     bool   `yaml:"sms_test_mode"`

	RedisURL string `yaml:"redis_url"`

	SessionTTLMinutes    int `yaml:"session_ttl_minutes"`
	ReclassifyDebounceMS int `yaml:"reclassify_debounce_ms"`
	ErrorBannerSeconds   int `yaml:"error_banner_seconds"`
}

// Load reads configuration from the optional config file and environment
// variables. Environment variables override file values.
func Load() *Config {
	cfg := &Config{}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				log.Printf("WARNING: failed to parse config file %s: %v", path, err)
			}
		}
	}

	cfg.Env = envOr("ENV", orDefault(cfg.Env, "development"))
	cfg.Port = envOr("PORT", orDefault(cfg.Port, "8080"))
	cfg.LogLevel = envOr("LOG_LEVEL", orDefault(cfg.LogLevel, "info"))
	cfg.LogFormat = envOr("LOG_FORMAT", orDefault(cfg.LogFormat, "text"))

	cfg.LLMProvider = envOr("LLM_PROVIDER", orDefault(cfg.LLMProvider, "openai"))
	cfg.LLMModel = envOr("LLM_MODEL", cfg.LLMModel)
	cfg.OpenAIAPIKey = envOr("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)

	cfg.SemaphoreAPIKey = envOr("SEMAPHORE_API_KEY", cfg.SemaphoreAPIKey)
	cfg.RedisURL = envOr("REDIS_URL", cfg.RedisURL)

	if v := os.Getenv("SMS_TEST_MODE"); v != "" {
		cfg.SMSTestMode = v == "true" || v == "1"
	}
	// Development never hits the real gateway.
	if cfg.Env == "development" {
		cfg.SMSTestMode = true
	}

	cfg.SessionTTLMinutes = envIntOr("SESSION_TTL_MINUTES", orDefaultInt(cfg.SessionTTLMinutes, 60))
	cfg.ReclassifyDebounceMS = envIntOr("RECLASSIFY_DEBOUNCE_MS", orDefaultInt(cfg.ReclassifyDebounceMS, 1000))
	cfg.ErrorBannerSeconds = envIntOr("ERROR_BANNER_SECONDS", orDefaultInt(cfg.ErrorBannerSeconds, 5))

	if !cfg.SMSTestMode && cfg.SemaphoreAPIKey == "" {
		log.Println("WARNING: SEMAPHORE_API_KEY not set; sending will fail until configured")
	}

	return cfg
}

// SessionTTL returns the campaign session lifetime as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// ReclassifyDebounce returns the quiet period before an edited message is
// re-classified.
func (c *Config) ReclassifyDebounce() time.Duration {
	return time.Duration(c.ReclassifyDebounceMS) * time.Millisecond
}

// ErrorBannerLifetime returns how long a wizard error banner stays visible.
func (c *Config) ErrorBannerLifetime() time.Duration {
	return time.Duration(c.ErrorBannerSeconds) * time.Second
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("WARNING: invalid integer for %s: %q", key, value)
	}
	return fallback
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orDefaultInt(value, fallback int) int {
	if value != 0 {
		return value
	}
	return fallback
}
