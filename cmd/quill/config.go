package main

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config represents the quill tool configuration
type Config struct {
	Store StoreConfig `mapstructure:"store"`
}

// StoreConfig selects and configures the storage backend
type StoreConfig struct {
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
	SQL     SQLConfig   `mapstructure:"sql"`
}

// RedisConfig represents redis backend configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// SQLConfig represents SQL backend configuration
type SQLConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// LoadConfig loads the configuration from quill.yml or quill.yaml
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("store.backend", "redis")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.prefix", "quill:")
	v.SetDefault("store.sql.driver", "sqlite3")
	v.SetDefault("store.sql.dsn", "quill.db")

	// Set config name and paths
	v.SetConfigName("quill")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Enable environment variable support (QUILL_STORE_BACKEND, ...)
	v.SetEnvPrefix("quill")
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	switch config.Store.Backend {
	case "redis", "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unknown store backend %q (want redis, postgres, or sqlite)", config.Store.Backend)
	}

	return &config, nil
}
