package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"expenses/internal/log"
)

type Config struct {
	// HTTP Server
	Port               string
	GraphiQLEnabled    bool
	ShutdownTimeout    time.Duration
	RateLimitPerMinute int

	// Database
	DBDriver     string
	SQLiteDBPath string
	DatabaseURL  string
	// 0 leaves the pool unbounded
	DBMaxOpenConns int

	// AMQP; an empty URL disables change events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel  string
	LogFormat string

	ConfigFile string

	// problems found while parsing, reported by Validate
	problems []string
}

// fileConfig mirrors the environment variables in lower snake case.
type fileConfig struct {
	Port               *string `yaml:"port"`
	GraphiQLEnabled    *bool   `yaml:"graphiql_enabled"`
	ShutdownTimeout    *string `yaml:"shutdown_timeout"`
	RateLimitPerMinute *int    `yaml:"rate_limit_per_minute"`
	DBDriver           *string `yaml:"db_driver"`
	SQLiteDBPath       *string `yaml:"sqlite_db_path"`
	DatabaseURL        *string `yaml:"database_url"`
	DBMaxOpenConns     *int    `yaml:"db_max_open_conns"`
	AMQPURL            *string `yaml:"amqp_url"`
	AMQPExchange       *string `yaml:"amqp_exchange"`
	AMQPQueue          *string `yaml:"amqp_queue"`
	LogLevel           *string `yaml:"log_level"`
	LogFormat          *string `yaml:"log_format"`
}

func defaults() *Config {
	return &Config{
		Port:               "8081",
		ShutdownTimeout:    30 * time.Second,
		RateLimitPerMinute: 600,
		DBDriver:           "sqlite",
		SQLiteDBPath:       "./data/expenses.db",
		DBMaxOpenConns:     10,
		AMQPExchange:       "expenses",
		AMQPQueue:          "expense_events",
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and the environment, in increasing order of precedence.
// Only an unreadable config file is an error here; bad values are reported by Validate.
func Load() (*Config, error) {
	cfg := defaults()

	cfg.ConfigFile = os.Getenv("CONFIG_FILE")
	if cfg.ConfigFile != "" {
		if err := cfg.loadFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.GraphiQLEnabled = cfg.getEnvBool("GRAPHIQL_ENABLED", cfg.GraphiQLEnabled)
	cfg.ShutdownTimeout = cfg.getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.RateLimitPerMinute = cfg.getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)

	cfg.DBDriver = getEnv("DB_DRIVER", cfg.DBDriver)
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBMaxOpenConns = cfg.getEnvInt("DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.Port, fc.Port)
	setString(&c.DBDriver, fc.DBDriver)
	setString(&c.SQLiteDBPath, fc.SQLiteDBPath)
	setString(&c.DatabaseURL, fc.DatabaseURL)
	setString(&c.AMQPURL, fc.AMQPURL)
	setString(&c.AMQPExchange, fc.AMQPExchange)
	setString(&c.AMQPQueue, fc.AMQPQueue)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.LogFormat, fc.LogFormat)

	if fc.GraphiQLEnabled != nil {
		c.GraphiQLEnabled = *fc.GraphiQLEnabled
	}
	if fc.RateLimitPerMinute != nil {
		c.RateLimitPerMinute = *fc.RateLimitPerMinute
	}
	if fc.DBMaxOpenConns != nil {
		c.DBMaxOpenConns = *fc.DBMaxOpenConns
	}
	if fc.ShutdownTimeout != nil {
		d, err := time.ParseDuration(*fc.ShutdownTimeout)
		if err != nil {
			c.problems = append(c.problems, fmt.Sprintf("invalid shutdown_timeout '%s' in %s", *fc.ShutdownTimeout, path))
		} else {
			c.ShutdownTimeout = d
		}
	}
	return nil
}

// DSN returns the data source for the selected driver.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.SQLiteDBPath
}

// EventsEnabled reports whether mutations publish change events.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error listing every problem.
func (c *Config) Validate() error {
	errors := append([]string(nil), c.problems...)

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DBDriver {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using the sqlite driver")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using the postgres driver")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid database driver '%s': must be one of [sqlite postgres]", c.DBDriver))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if c.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be positive", c.ShutdownTimeout))
	}
	if c.DBMaxOpenConns < 0 {
		errors = append(errors, fmt.Sprintf("invalid max open connections %d: must be zero (unbounded) or positive", c.DBMaxOpenConns))
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be zero (disabled) or positive", c.RateLimitPerMinute))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (c *Config) getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("invalid %s '%s': must be a number", key, value))
		return defaultValue
	}
	return i
}

func (c *Config) getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("invalid %s '%s': must be true or false", key, value))
		return defaultValue
	}
	return b
}

func (c *Config) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("invalid %s '%s': must be a duration such as 30s", key, value))
		return defaultValue
	}
	return d
}
