package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `json:"server"`
	Redis      RedisConfig      `json:"redis"`
	Logging    LoggingConfig    `json:"logging"`
	Tracing    TracingConfig    `json:"tracing"`
	Generation GenerationConfig `json:"generation"`
	Cache      CacheConfig      `json:"cache"`
	Monitor    MonitorConfig    `json:"monitor"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// RedisConfig contains Redis connection configuration for the optional
// shared configuration-cache mirror
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

// TracingConfig contains distributed tracing configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	JaegerEndpoint string  `json:"jaeger_endpoint"`
	SamplingRate   float64 `json:"sampling_rate"`
}

// GenerationConfig contains generation controller configuration
type GenerationConfig struct {
	MaxAttempts       int           `json:"max_attempts"`
	PrimaryTimeout    time.Duration `json:"primary_timeout"`
	SecondaryTimeout  time.Duration `json:"secondary_timeout"`
	DegradedTimeout   time.Duration `json:"degraded_timeout"`
	RenderServiceURL  string        `json:"render_service_url"`
	MinSurfacePixels  int           `json:"min_surface_pixels"`
	HealthThreshold   float64       `json:"health_threshold"`
	RecoveryCeiling   int           `json:"recovery_ceiling"`
	RecoveryRetention time.Duration `json:"recovery_retention"`
}

// CacheConfig contains resource cache configuration
type CacheConfig struct {
	FontEntries   int           `json:"font_entries"`
	ImageEntries  int           `json:"image_entries"`
	ConfigEntries int           `json:"config_entries"`
	ConfigTTL     time.Duration `json:"config_ttl"`
}

// MonitorConfig contains performance monitor configuration
type MonitorConfig struct {
	WindowSize       int           `json:"window_size"`
	MaxAlerts        int           `json:"max_alerts"`
	DurationCeiling  time.Duration `json:"duration_ceiling"`
	SizeCeilingBytes int64         `json:"size_ceiling_bytes"`
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host:         getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Logging: LoggingConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
			Output: getEnvString("LOG_OUTPUT", "stdout"),
		},
		Tracing: TracingConfig{
			Enabled:        getEnvBool("TRACING_ENABLED", false),
			JaegerEndpoint: getEnvString("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
			SamplingRate:   getEnvFloat("TRACING_SAMPLING_RATE", 1.0),
		},
		Generation: GenerationConfig{
			MaxAttempts:       getEnvInt("GENERATION_MAX_ATTEMPTS", 3),
			PrimaryTimeout:    getEnvDuration("GENERATION_PRIMARY_TIMEOUT", 10*time.Second),
			SecondaryTimeout:  getEnvDuration("GENERATION_SECONDARY_TIMEOUT", 20*time.Second),
			DegradedTimeout:   getEnvDuration("GENERATION_DEGRADED_TIMEOUT", 30*time.Second),
			RenderServiceURL:  getEnvString("RENDER_SERVICE_URL", ""),
			MinSurfacePixels:  getEnvInt("GENERATION_MIN_SURFACE_PIXELS", 2048*2048),
			HealthThreshold:   getEnvFloat("GENERATION_HEALTH_THRESHOLD", 0.5),
			RecoveryCeiling:   getEnvInt("RECOVERY_ATTEMPT_CEILING", 3),
			RecoveryRetention: getEnvDuration("RECOVERY_RETENTION", time.Hour),
		},
		Cache: CacheConfig{
			FontEntries:   getEnvInt("CACHE_FONT_ENTRIES", 32),
			ImageEntries:  getEnvInt("CACHE_IMAGE_ENTRIES", 64),
			ConfigEntries: getEnvInt("CACHE_CONFIG_ENTRIES", 128),
			ConfigTTL:     getEnvDuration("CACHE_CONFIG_TTL", time.Hour),
		},
		Monitor: MonitorConfig{
			WindowSize:       getEnvInt("MONITOR_WINDOW_SIZE", 100),
			MaxAlerts:        getEnvInt("MONITOR_MAX_ALERTS", 50),
			DurationCeiling:  getEnvDuration("MONITOR_DURATION_CEILING", 15*time.Second),
			SizeCeilingBytes: getEnvInt64("MONITOR_SIZE_CEILING_BYTES", 20*1024*1024),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Generation.MaxAttempts <= 0 {
		return fmt.Errorf("generation max attempts must be positive")
	}

	if c.Generation.HealthThreshold < 0 || c.Generation.HealthThreshold > 1 {
		return fmt.Errorf("health threshold must be in [0,1]")
	}

	if c.Cache.FontEntries <= 0 || c.Cache.ImageEntries <= 0 || c.Cache.ConfigEntries <= 0 {
		return fmt.Errorf("cache partition capacities must be positive")
	}

	if c.Monitor.WindowSize <= 0 {
		return fmt.Errorf("monitor window size must be positive")
	}

	return nil
}

// RedisAddr returns the Redis address in host:port form
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
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
