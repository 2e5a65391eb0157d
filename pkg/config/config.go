package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Scheduler SchedulerConfig `json:"scheduler"`
	Breaker   BreakerConfig   `json:"breaker"`
	Cache     CacheConfig     `json:"cache"`
	Redis     RedisConfig     `json:"redis"`
	Providers ProvidersConfig `json:"providers"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics"`
}

// SchedulerConfig contains batch scheduler configuration
type SchedulerConfig struct {
	MaxConcurrency    int           `json:"max_concurrency"`
	DefaultMaxRetries int           `json:"default_max_retries"`
	BaseRetryDelay    time.Duration `json:"base_retry_delay"`
	MaxRetryDelay     time.Duration `json:"max_retry_delay"`
}

// BreakerConfig contains per-provider circuit breaker configuration
type BreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"`
	Cooldown         time.Duration `json:"cooldown"`
}

// CacheConfig contains result cache configuration
type CacheConfig struct {
	MaxBytes   int64         `json:"max_bytes"`
	MaxEntries int           `json:"max_entries"`
	DefaultTTL time.Duration `json:"default_ttl"`
	UseRedis   bool          `json:"use_redis"`
}

// RedisConfig contains Redis connection configuration for the distributed
// cache tier
type RedisConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	PoolSize  int    `json:"pool_size"`
	KeyPrefix string `json:"key_prefix"`
}

// Addr returns the host:port address for the Redis client
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ProvidersConfig contains provider adapter configuration
type ProvidersConfig struct {
	CallTimeout    time.Duration  `json:"call_timeout"`
	ResultCacheTTL time.Duration  `json:"result_cache_ttl"`
	Claude         ProviderConfig `json:"claude"`
	OpenAI         ProviderConfig `json:"openai"`
	DeepSeek       ProviderConfig `json:"deepseek"`
	Gemini         ProviderConfig `json:"gemini"`
}

// ProviderConfig contains one provider's API settings
type ProviderConfig struct {
	APIKey      string  `json:"api_key"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// MetricsConfig contains metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		Scheduler: SchedulerConfig{
			MaxConcurrency:    getEnvInt("SCHEDULER_MAX_CONCURRENCY", 3),
			DefaultMaxRetries: getEnvInt("SCHEDULER_DEFAULT_MAX_RETRIES", 2),
			BaseRetryDelay:    getEnvDuration("SCHEDULER_BASE_RETRY_DELAY", 1*time.Second),
			MaxRetryDelay:     getEnvDuration("SCHEDULER_MAX_RETRY_DELAY", 30*time.Second),
		},
		Breaker: BreakerConfig{
			FailureThreshold: getEnvInt("BREAKER_FAILURE_THRESHOLD", 5),
			Cooldown:         getEnvDuration("BREAKER_COOLDOWN", 60*time.Second),
		},
		Cache: CacheConfig{
			MaxBytes:   getEnvInt64("CACHE_MAX_BYTES", 64*1024*1024),
			MaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 10000),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
			UseRedis:   getEnvBool("CACHE_USE_REDIS", false),
		},
		Redis: RedisConfig{
			Host:      getEnvString("REDIS_HOST", "localhost"),
			Port:      getEnvInt("REDIS_PORT", 6379),
			Password:  getEnvString("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			PoolSize:  getEnvInt("REDIS_POOL_SIZE", 10),
			KeyPrefix: getEnvString("REDIS_KEY_PREFIX", "athena:analysis"),
		},
		Providers: ProvidersConfig{
			CallTimeout:    getEnvDuration("PROVIDER_CALL_TIMEOUT", 30*time.Second),
			ResultCacheTTL: getEnvDuration("PROVIDER_RESULT_CACHE_TTL", 1*time.Hour),
			Claude: ProviderConfig{
				APIKey:      getEnvString("CLAUDE_API_KEY", ""),
				BaseURL:     getEnvString("CLAUDE_BASE_URL", "https://api.anthropic.com"),
				Model:       getEnvString("CLAUDE_MODEL", "claude-sonnet-4-20250514"),
				MaxTokens:   getEnvInt("CLAUDE_MAX_TOKENS", 4096),
				Temperature: getEnvFloat("CLAUDE_TEMPERATURE", 0.3),
			},
			OpenAI: ProviderConfig{
				APIKey:      getEnvString("OPENAI_API_KEY", ""),
				BaseURL:     getEnvString("OPENAI_BASE_URL", "https://api.openai.com"),
				Model:       getEnvString("OPENAI_MODEL", "gpt-4o"),
				MaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 4096),
				Temperature: getEnvFloat("OPENAI_TEMPERATURE", 0.3),
			},
			DeepSeek: ProviderConfig{
				APIKey:      getEnvString("DEEPSEEK_API_KEY", ""),
				BaseURL:     getEnvString("DEEPSEEK_BASE_URL", "https://api.deepseek.com"),
				Model:       getEnvString("DEEPSEEK_MODEL", "deepseek-chat"),
				MaxTokens:   getEnvInt("DEEPSEEK_MAX_TOKENS", 4096),
				Temperature: getEnvFloat("DEEPSEEK_TEMPERATURE", 0.3),
			},
			Gemini: ProviderConfig{
				APIKey:      getEnvString("GEMINI_API_KEY", ""),
				BaseURL:     getEnvString("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
				Model:       getEnvString("GEMINI_MODEL", "gemini-2.0-flash"),
				MaxTokens:   getEnvInt("GEMINI_MAX_TOKENS", 4096),
				Temperature: getEnvFloat("GEMINI_TEMPERATURE", 0.3),
			},
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stdout"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Host:    getEnvString("METRICS_HOST", "0.0.0.0"),
			Port:    getEnvInt("METRICS_PORT", 9090),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Scheduler.MaxConcurrency < 1 {
		return fmt.Errorf("scheduler max concurrency must be at least 1, got %d", c.Scheduler.MaxConcurrency)
	}
	if c.Scheduler.DefaultMaxRetries < 0 {
		return fmt.Errorf("scheduler default max retries cannot be negative, got %d", c.Scheduler.DefaultMaxRetries)
	}
	if c.Scheduler.BaseRetryDelay <= 0 {
		return fmt.Errorf("scheduler base retry delay must be positive, got %v", c.Scheduler.BaseRetryDelay)
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("breaker failure threshold must be at least 1, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.Cooldown <= 0 {
		return fmt.Errorf("breaker cooldown must be positive, got %v", c.Breaker.Cooldown)
	}
	if c.Cache.MaxBytes < 1 {
		return fmt.Errorf("cache max bytes must be at least 1, got %d", c.Cache.MaxBytes)
	}
	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache max entries must be at least 1, got %d", c.Cache.MaxEntries)
	}
	if c.Providers.CallTimeout <= 0 {
		return fmt.Errorf("provider call timeout must be positive, got %v", c.Providers.CallTimeout)
	}
	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
