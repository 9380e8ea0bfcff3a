// Package config loads server configuration from the environment and an
// optional config file.
//
// PRECEDENCE (highest first):
//  1. Environment variables, prefixed CRATES_ (CRATES_PORT, CRATES_DB_DSN, ...)
//  2. The config file named by CRATES_CONFIG, or ./crates.yaml if present
//  3. The defaults below
//
// Nested keys map to env vars by replacing "." with "_":
// db.max_open_conns ↔ CRATES_DB_MAX_OPEN_CONNS.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported values for DB.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config holds everything main needs to build the server.
type Config struct {
	Port           int
	LogLevel       slog.Level
	RequestTimeout time.Duration
	DB             DBConfig
}

// DBConfig selects and tunes the store.
type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.dsn", "data/crates.db")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
}

// Load reads configuration. A missing config file is not an error; a config
// file that exists but can't be parsed is.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CRATES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CRATES_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("crates")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("config: invalid log_level %q: %w", v.GetString("log_level"), err)
	}

	cfg := &Config{
		Port:           v.GetInt("port"),
		LogLevel:       level,
		RequestTimeout: v.GetDuration("request_timeout"),
		DB: DBConfig{
			Driver:          strings.ToLower(v.GetString("db.driver")),
			DSN:             v.GetString("db.dsn"),
			MaxOpenConns:    v.GetInt("db.max_open_conns"),
			MaxIdleConns:    v.GetInt("db.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db.conn_max_lifetime"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: request_timeout must be positive")
	}
	switch c.DB.Driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("config: unsupported db.driver %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("config: db.dsn is required")
	}
	if c.DB.MaxOpenConns <= 0 {
		return fmt.Errorf("config: db.max_open_conns must be positive")
	}
	if c.DB.MaxIdleConns < 0 {
		return fmt.Errorf("config: db.max_idle_conns must not be negative")
	}
	return nil
}
