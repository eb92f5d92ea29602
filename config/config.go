package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Rules     RulesConfig
	Grouping  GroupingConfig
	Schedule  ScheduleConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string `mapstructure:"port"`
	Environment  string `mapstructure:"environment"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"` // cap on API request bodies
}

// StoreConfig selects the product store
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "memory", "sqlite3" or "postgres"
	DSN    string `mapstructure:"dsn"`
}

// RulesConfig points at the per-category rule files
type RulesConfig struct {
	Dir string `mapstructure:"dir"` // empty uses the embedded rules
}

// GroupingConfig tunes the group aggregator
type GroupingConfig struct {
	ImagePriority []string `mapstructure:"image_priority"`
	Workers       int      `mapstructure:"workers"`
}

// ScheduleConfig holds the periodic job schedules
type ScheduleConfig struct {
	AggregateCron string `mapstructure:"aggregate_cron"` // with seconds; empty disables
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricetracker/")

	// PRICETRACKER_STORE_DSN overrides store.dsn
	v.SetEnvPrefix("PRICETRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads variables from .env without overriding the environment
func loadEnvFile() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_body_bytes", 10<<20)

	// Store defaults
	v.SetDefault("store.driver", "sqlite3")
	v.SetDefault("store.dsn", "pricetracker.db")

	v.SetDefault("rules.dir", "")

	// Grouping defaults
	v.SetDefault("grouping.image_priority", []string{"techspace", "ultrapc", "nextlevelpc"})
	v.SetDefault("grouping.workers", 4)

	// Every 30 minutes
	v.SetDefault("schedule.aggregate_cron", "0 */30 * * * *")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 60)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.MaxBodyBytes < 1 {
		return fmt.Errorf("max body size must be at least 1 byte, got: %d", config.Server.MaxBodyBytes)
	}

	switch config.Store.Driver {
	case "memory":
	case "sqlite3", "postgres":
		if config.Store.DSN == "" {
			return fmt.Errorf("store DSN is required for driver '%s' (set PRICETRACKER_STORE_DSN)", config.Store.Driver)
		}
	default:
		return fmt.Errorf("store driver must be 'memory', 'sqlite3' or 'postgres', got: %s", config.Store.Driver)
	}

	if config.Grouping.Workers < 1 {
		return fmt.Errorf("grouping workers must be at least 1, got: %d", config.Grouping.Workers)
	}

	if config.RateLimit.PerIP < 1 {
		return fmt.Errorf("per-IP rate limit must be at least 1 request per minute, got: %d", config.RateLimit.PerIP)
	}

	return nil
}
