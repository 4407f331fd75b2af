// Package config loads service configuration from a YAML file with .env and
// environment-variable overrides.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	SES      SESConfig      `yaml:"ses"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Dispatch DispatchConfig `yaml:"dispatch"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds the optional Redis connection for scheduler locking
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Enabled   bool   `yaml:"enabled"`
}

// WebhookConfig holds the automation webhook endpoint
type WebhookConfig struct {
	URL string `yaml:"url"`
}

// DispatchConfig tunes the dispatch and scheduler loops
type DispatchConfig struct {
	SendIntervalMS         int    `yaml:"send_interval_ms"`
	SchedulerPollSeconds   int    `yaml:"scheduler_poll_seconds"`
	CleanupIntervalMinutes int    `yaml:"cleanup_interval_minutes"`
	StallTimeoutHours      int    `yaml:"stall_timeout_hours"`
	FromName               string `yaml:"from_name"`
	FromEmail              string `yaml:"from_email"`
}

// SendInterval returns the inter-message delay as a duration
func (c DispatchConfig) SendInterval() time.Duration {
	return time.Duration(c.SendIntervalMS) * time.Millisecond
}

// SchedulerPoll returns the scheduler poll interval as a duration
func (c DispatchConfig) SchedulerPoll() time.Duration {
	return time.Duration(c.SchedulerPollSeconds) * time.Second
}

// CleanupInterval returns the cleanup scan interval as a duration
func (c DispatchConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

// StallTimeout returns the stall threshold as a duration
func (c DispatchConfig) StallTimeout() time.Duration {
	return time.Duration(c.StallTimeoutHours) * time.Hour
}

// Load reads the YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-west-2"
	}
	if cfg.Dispatch.SendIntervalMS == 0 {
		cfg.Dispatch.SendIntervalMS = 500
	}
	if cfg.Dispatch.SchedulerPollSeconds == 0 {
		cfg.Dispatch.SchedulerPollSeconds = 60
	}
	if cfg.Dispatch.CleanupIntervalMinutes == 0 {
		cfg.Dispatch.CleanupIntervalMinutes = 5
	}
	if cfg.Dispatch.StallTimeoutHours == 0 {
		cfg.Dispatch.StallTimeoutHours = 2
	}

	return &cfg, nil
}

// LoadFromEnv loads the config file and then applies environment overrides.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
		cfg.Redis.Enabled = true
	}
	if accessKey := os.Getenv("AWS_SES_ACCESS_KEY"); accessKey != "" {
		cfg.SES.AccessKey = accessKey
		cfg.SES.Enabled = true
	}
	if secretKey := os.Getenv("AWS_SES_SECRET_KEY"); secretKey != "" {
		cfg.SES.SecretKey = secretKey
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.SES.Region = region
	}
	if url := os.Getenv("AUTOMATION_WEBHOOK_URL"); url != "" {
		cfg.Webhook.URL = url
	}

	return cfg, nil
}
