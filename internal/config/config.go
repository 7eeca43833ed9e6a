// Package config loads the engine's runtime configuration from a .env
// file overlaid with process environment variables, all under a
// WADO_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Metrics  MetricsConfig
	Log      LogConfig
	Engine   EngineConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	LogLevel string
}

type CacheConfig struct {
	Enabled bool
	Type    string // "memory" or "redis"
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type MetricsConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig covers the download engine's own tunables: per-request
// timeouts, concurrency caps, and where downloaded instances land on
// disk before (and optionally after) being handed to the object model.
type EngineConfig struct {
	ConnectTimeout          time.Duration
	ReadTimeout             time.Duration
	SeriesConcurrency       int64
	GlobalSeriesConcurrency int64
	WriteInCache            bool
	MaxRedirects            int
	TmpDir                  string
	ExportDir               string
}

// Load reads a .env file if present, then builds a Config from process
// environment variables (already including whatever .env loaded),
// falling back to sane defaults for anything unset.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("WADO_SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("WADO_SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("WADO_SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("WADO_SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("WADO_DB_HOST", "localhost"),
			Port:     getEnvInt("WADO_DB_PORT", 5432),
			User:     getEnv("WADO_DB_USER", "postgres"),
			Password: getEnv("WADO_DB_PASSWORD", ""),
			DBName:   getEnv("WADO_DB_NAME", "wado_engine"),
			SSLMode:  getEnv("WADO_DB_SSLMODE", "disable"),
			LogLevel: getEnv("WADO_DB_LOG_LEVEL", "warn"),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("WADO_CACHE_ENABLED", true),
			Type:    getEnv("WADO_CACHE_TYPE", "memory"),
		},
		Redis: RedisConfig{
			Host:     getEnv("WADO_REDIS_HOST", "localhost"),
			Port:     getEnvInt("WADO_REDIS_PORT", 6379),
			Password: getEnv("WADO_REDIS_PASSWORD", ""),
			DB:       getEnvInt("WADO_REDIS_DB", 0),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("WADO_CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvList("WADO_CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvList("WADO_CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID"}),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("WADO_METRICS_ENABLED", true),
		},
		Log: LogConfig{
			Level:  getEnv("WADO_LOG_LEVEL", "info"),
			Format: getEnv("WADO_LOG_FORMAT", "json"),
		},
		Engine: EngineConfig{
			ConnectTimeout:          getEnvDuration("WADO_ENGINE_CONNECT_TIMEOUT", 5000*time.Millisecond),
			ReadTimeout:             getEnvDuration("WADO_ENGINE_READ_TIMEOUT", 15000*time.Millisecond),
			SeriesConcurrency:       getEnvInt64("WADO_ENGINE_SERIES_CONCURRENCY", 6),
			GlobalSeriesConcurrency: getEnvInt64("WADO_ENGINE_GLOBAL_SERIES_CONCURRENCY", 3),
			WriteInCache:            getEnvBool("WADO_ENGINE_WRITE_IN_CACHE", true),
			MaxRedirects:            getEnvInt("WADO_ENGINE_MAX_REDIRECTS", 3),
			TmpDir:                  getEnv("WADO_ENGINE_TMP_DIR", "/tmp/wado-engine"),
			ExportDir:               getEnv("WADO_ENGINE_EXPORT_DIR", "/var/lib/wado-engine/export"),
		},
	}

	return cfg, nil
}

// Validate rejects configuration that would leave the engine unable to
// make progress: zero or negative concurrency caps and timeouts.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server port must be positive")
	}
	if c.Engine.ConnectTimeout <= 0 {
		return fmt.Errorf("engine connect timeout must be positive")
	}
	if c.Engine.ReadTimeout <= 0 {
		return fmt.Errorf("engine read timeout must be positive")
	}
	if c.Engine.SeriesConcurrency <= 0 {
		return fmt.Errorf("engine series concurrency must be positive")
	}
	if c.Engine.GlobalSeriesConcurrency <= 0 {
		return fmt.Errorf("engine global series concurrency must be positive")
	}
	if c.Engine.MaxRedirects < 0 {
		return fmt.Errorf("engine max redirects cannot be negative")
	}
	if c.Cache.Enabled && c.Cache.Type != "memory" && c.Cache.Type != "redis" {
		return fmt.Errorf("unsupported cache type: %s", c.Cache.Type)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
