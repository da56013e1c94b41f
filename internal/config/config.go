// Package config loads the service configuration from YAML with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Data      DataConfig      `yaml:"data"`
	Cache     CacheConfig     `yaml:"cache"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Registry  RegistryConfig  `yaml:"registry"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DataConfig holds the dataset store settings.
type DataConfig struct {
	Dir string `yaml:"dir"`
	// FeedURL is the publication's public RSS feed, used to enrich posts
	// with canonical URLs. Empty disables enrichment.
	FeedURL string `yaml:"feed_url"`
}

// CacheConfig holds the optional Redis result cache settings.
type CacheConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	TTLMinutes    int    `yaml:"ttl_minutes"`
}

// ArchiveConfig holds the optional S3 export archive settings.
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
}

// RegistryConfig holds the optional Postgres manifest registry settings.
type RegistryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	DatabaseURL string `yaml:"database_url"`
}

// AnalyticsConfig tunes the analysis engines.
type AnalyticsConfig struct {
	AttributionWindowDays   int `yaml:"attribution_window_days"`
	MinSignificantDelivered int `yaml:"min_significant_delivered"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// RedactPIIEnabled defaults to true when unset: subscriber emails never
// reach the logs unless someone opts out explicitly.
func (l LoggingConfig) RedactPIIEnabled() bool {
	return l.RedactPII == nil || *l.RedactPII
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = ".data"
	}
	if cfg.Cache.RedisAddr == "" {
		cfg.Cache.RedisAddr = "localhost:6379"
	}
	if cfg.Cache.TTLMinutes == 0 {
		cfg.Cache.TTLMinutes = 60
	}
	if cfg.Archive.S3Region == "" {
		cfg.Archive.S3Region = "us-east-1"
	}
	if cfg.Analytics.AttributionWindowDays == 0 {
		cfg.Analytics.AttributionWindowDays = 7
	}
	if cfg.Analytics.MinSignificantDelivered == 0 {
		cfg.Analytics.MinSignificantDelivered = 50
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads the YAML config, then applies .env and environment
// overrides. A missing config file yields pure defaults rather than an
// error, so the server runs with zero configuration.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg = &Config{}
		cfg.applyDefaults()
	} else if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}
	if host := os.Getenv("HOST"); host != "" {
		cfg.Server.Host = host
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.Data.Dir = dir
	}
	if feedURL := os.Getenv("FEED_URL"); feedURL != "" {
		cfg.Data.FeedURL = feedURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.Enabled = true
		cfg.Cache.RedisAddr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Cache.RedisPassword = password
	}
	if bucket := os.Getenv("ARCHIVE_S3_BUCKET"); bucket != "" {
		cfg.Archive.Enabled = true
		cfg.Archive.S3Bucket = bucket
	}
	if region := os.Getenv("ARCHIVE_S3_REGION"); region != "" {
		cfg.Archive.S3Region = region
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Registry.Enabled = true
		cfg.Registry.DatabaseURL = dbURL
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}
