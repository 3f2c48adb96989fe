package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
	"github.com/jdziat/simple-batch-jobs/pkg/security"
	"github.com/jdziat/simple-batch-jobs/pkg/storage"
)

// Config is the batchctl configuration.
type Config struct {
	Log   LogConfig
	Store StoreConfig
	Batch BatchConfig
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the record store. An empty driver disables persistence.
type StoreConfig struct {
	Driver string
	DSN    string
}

// BatchConfig holds the defaults for batch runs.
type BatchConfig struct {
	Name        string
	Concurrency int
	Retries     int
	RetryDelay  time.Duration
	Timeout     time.Duration
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("store.driver", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("batch.name", "default")
	v.SetDefault("batch.concurrency", 3)
	v.SetDefault("batch.retries", 1)
	v.SetDefault("batch.retry_delay", time.Second)
	v.SetDefault("batch.timeout", time.Duration(0))

	v.SetEnvPrefix("BATCHCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads the config file, if any, and returns the merged configuration.
// An explicit path must exist; otherwise batchctl.yaml is looked up in the
// working directory and $HOME/.config/batchctl.
func loadConfig(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("batchctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/batchctl")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Store: StoreConfig{
			Driver: v.GetString("store.driver"),
			DSN:    v.GetString("store.dsn"),
		},
		Batch: BatchConfig{
			Name:        v.GetString("batch.name"),
			Concurrency: v.GetInt("batch.concurrency"),
			Retries:     v.GetInt("batch.retries"),
			RetryDelay:  v.GetDuration("batch.retry_delay"),
			Timeout:     v.GetDuration("batch.timeout"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	switch c.Store.Driver {
	case "":
	case storage.DriverSQLite, storage.DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}

	if err := security.ValidateName(c.Batch.Name); err != nil {
		return fmt.Errorf("batch.name %q: %w", c.Batch.Name, err)
	}
	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > security.MaxConcurrency {
		return fmt.Errorf("batch.concurrency must be between 1 and %d", security.MaxConcurrency)
	}
	if c.Batch.Retries < 0 || c.Batch.Retries > security.MaxRetries {
		return fmt.Errorf("batch.retries must be between 0 and %d", security.MaxRetries)
	}
	if c.Batch.RetryDelay < 0 {
		return errors.New("batch.retry_delay must not be negative")
	}
	if c.Batch.Timeout < 0 {
		return errors.New("batch.timeout must not be negative")
	}
	return nil
}

// Logger builds a logger writing to w.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// OpenStore opens the configured store. It returns core.ErrNoStore when
// no driver is configured.
func (c *Config) OpenStore(ctx context.Context) (*storage.GormStore, error) {
	if c.Store.Driver == "" {
		return nil, fmt.Errorf("%w: set store.driver and store.dsn", core.ErrNoStore)
	}
	return storage.Open(ctx, c.Store.Driver, c.Store.DSN)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}
