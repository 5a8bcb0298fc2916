package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"riskscore/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Model     ModelConfig
	Cache     CacheConfig
	AI        AIConfig
	Server    ServerConfig
	Profiling ProfilingConfig
	Telemetry TelemetryConfig
}

// ModelConfig points at the scoring model artifact
type ModelConfig struct {
	Path      string
	Threshold float64
}

// Cache backends
const (
	CacheMemory = "memory"
	CacheLRU    = "lru"
	CacheRedis  = "redis"
)

// CacheConfig selects the memo store behind the scoring service
type CacheConfig struct {
	Backend       string
	Size          int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

// AIConfig holds the optional language-model settings. An empty APIKey
// disables the advisory feature; it is not a configuration error.
type AIConfig struct {
	Provider      string
	APIKey        string
	BaseURL       string
	Model         string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
	MaxRetries    int
	RatePerMinute int
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port            string
	GinMode         string
	DefaultLanguage string
	SessionCapacity int
}

// ProfilingConfig holds the ops listener settings (metrics, pprof)
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// TelemetryConfig holds OpenTelemetry exporter settings
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Model:     loadModelConfig(),
		Cache:     loadCacheConfig(),
		AI:        loadAIConfig(),
		Server:    loadServerConfig(),
		Profiling: loadProfilingConfig(),
		Telemetry: loadTelemetryConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadModelConfig() ModelConfig {
	return ModelConfig{
		Path:      getEnvOrDefault("MODEL_PATH", "data/xgb_model.json"),
		Threshold: getEnvFloatOrDefault("MODEL_THRESHOLD", 0.5),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Backend:       strings.ToLower(getEnvOrDefault("CACHE_BACKEND", CacheMemory)),
		Size:          getEnvIntOrDefault("CACHE_SIZE", 10000),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),
		RedisTTL:      getEnvDurationOrDefault("REDIS_TTL", 0),
	}
}

func loadAIConfig() AIConfig {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", "cohere"))

	// COHERE_API_KEY is the name the deployment secrets historically used
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" && provider == "cohere" {
		apiKey = os.Getenv("COHERE_API_KEY")
	}

	defaultModel := "command-r-plus"
	if provider == "openai" {
		defaultModel = "gpt-4o-mini"
	}

	return AIConfig{
		Provider:      provider,
		APIKey:        apiKey,
		BaseURL:       getEnvOrDefault("LLM_BASE_URL", ""),
		Model:         getEnvOrDefault("LLM_MODEL", defaultModel),
		MaxTokens:     getEnvIntOrDefault("LLM_MAX_TOKENS", 120),
		Temperature:   getEnvFloatOrDefault("LLM_TEMPERATURE", 0.2),
		Timeout:       getEnvDurationOrDefault("LLM_TIMEOUT", 30*time.Second),
		MaxRetries:    getEnvIntOrDefault("LLM_MAX_RETRIES", 2),
		RatePerMinute: getEnvIntOrDefault("LLM_RATE_PER_MINUTE", 30),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:            getEnvOrDefault("PORT", "8080"),
		GinMode:         getEnvOrDefault("GIN_MODE", "release"),
		DefaultLanguage: getEnvOrDefault("DEFAULT_LANGUAGE", "fr"),
		SessionCapacity: getEnvIntOrDefault("SESSION_CAPACITY", 4096),
	}
}

func loadProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", true),
	}
}

func loadTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:     getEnvBoolOrDefault("OTEL_ENABLED", false),
		Endpoint:    getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		ServiceName: getEnvOrDefault("OTEL_SERVICE_NAME", "riskscore"),
	}
}

func validateConfig(config *Config) error {
	if strings.TrimSpace(config.Model.Path) == "" {
		return errors.ConfigInvalid("MODEL_PATH is required")
	}
	if config.Model.Threshold <= 0 || config.Model.Threshold >= 1 {
		return errors.ConfigInvalid("MODEL_THRESHOLD must be in (0,1)")
	}
	switch config.Cache.Backend {
	case CacheMemory, CacheRedis:
	case CacheLRU:
		if config.Cache.Size <= 0 {
			return errors.ConfigInvalid("CACHE_SIZE must be positive for the lru backend")
		}
	default:
		return errors.ConfigInvalid("unknown CACHE_BACKEND: " + config.Cache.Backend)
	}
	switch config.AI.Provider {
	case "cohere", "openai":
	default:
		return errors.ConfigInvalid("unknown LLM_PROVIDER: " + config.AI.Provider)
	}
	if config.Server.SessionCapacity <= 0 {
		return errors.ConfigInvalid("SESSION_CAPACITY must be positive")
	}
	return nil
}

// AdvisoryEnabled reports whether a language-model credential is configured
func (c AIConfig) AdvisoryEnabled() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
