// Package config loads store settings from a YAML file and STRATA_
// environment variables and opens a store from them.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/mssql"
	"github.com/syssam/strata/dialect/mysql"
	"github.com/syssam/strata/dialect/postgres"
	dsql "github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/dialect/sqlite"
	"github.com/syssam/strata/dialect/sqlite/sqlite3"
	"github.com/syssam/strata/store"
)

// EnvPrefix prefixes the environment variables read by Load.
const EnvPrefix = "STRATA"

// Config represents the store configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig represents the connection settings.
type DatabaseConfig struct {
	Driver         string        `mapstructure:"driver"`
	DSN            string        `mapstructure:"dsn"`
	Behavior       string        `mapstructure:"behavior"`
	PoolSize       int           `mapstructure:"pool_size"`
	StatementCache int           `mapstructure:"statement_cache"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	SlowThreshold  time.Duration `mapstructure:"slow_threshold"`
}

// LogConfig represents the logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the configuration from path, or from strata.yaml in the
// working directory when path is empty. A missing default file is not
// an error. Environment variables such as STRATA_DATABASE_DSN override
// the file.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.driver", dialect.SQLite)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.behavior", dsql.AlwaysNew.String())
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.statement_cache", 0)
	v.SetDefault("database.poll_interval", time.Second)
	v.SetDefault("database.acquire_timeout", 0)
	v.SetDefault("database.slow_threshold", 100*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("strata")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := Dialect(c.Database.Driver); err != nil {
		return err
	}
	if _, err := dsql.ParseBehavior(c.Database.Behavior); err != nil {
		return fmt.Errorf("config: database.behavior: %w", err)
	}
	if c.Database.PoolSize < 1 {
		return fmt.Errorf("config: database.pool_size must be positive, got %d", c.Database.PoolSize)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Dialect returns the dialect registered for a driver name.
func Dialect(driver string) (dialect.Dialect, error) {
	switch strings.ToLower(driver) {
	case dialect.SQLite:
		return sqlite.New(), nil
	case sqlite3.DriverName:
		return sqlite3.New(), nil
	case dialect.MySQL:
		return mysql.New(), nil
	case dialect.Postgres, "postgresql", postgres.DriverName:
		return postgres.New(), nil
	case dialect.SQLServer, "mssql", "azuresql":
		return mssql.New(), nil
	}
	return nil, fmt.Errorf("config: unknown driver %q", driver)
}

// Logger returns a logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Options returns the store options of the configuration.
func (c *Config) Options(log *slog.Logger) ([]store.Option, error) {
	behavior, err := dsql.ParseBehavior(c.Database.Behavior)
	if err != nil {
		return nil, fmt.Errorf("config: database.behavior: %w", err)
	}
	opts := []store.Option{
		store.WithLogger(log),
		store.WithBehavior(behavior),
		store.WithPoolSize(c.Database.PoolSize),
	}
	if c.Database.PollInterval > 0 {
		opts = append(opts, store.WithPollInterval(c.Database.PollInterval))
	}
	if c.Database.AcquireTimeout > 0 {
		opts = append(opts, store.WithAcquireTimeout(c.Database.AcquireTimeout))
	}
	if c.Database.SlowThreshold > 0 {
		opts = append(opts, store.WithSlowThreshold(c.Database.SlowThreshold))
	}
	if c.Database.StatementCache > 0 {
		opts = append(opts, store.WithStatementCache(c.Database.StatementCache))
	}
	return opts, nil
}

// Open opens a store from the configuration. Extra options are applied
// after the configured ones.
func Open(c *Config, extra ...store.Option) (*store.Store, error) {
	if c.Database.DSN == "" {
		return nil, errors.New("config: database.dsn is required")
	}
	d, err := Dialect(c.Database.Driver)
	if err != nil {
		return nil, err
	}
	opts, err := c.Options(c.Logger(nil))
	if err != nil {
		return nil, err
	}
	return store.Open(d, c.Database.DSN, append(opts, extra...)...)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return level, nil
}
