// Package config resolves CLI settings from flags, CONTEO_* environment
// variables and an optional YAML config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. CONTEO_DB.
const EnvPrefix = "CONTEO"

// Keys shared by flags, env and file.
const (
	KeyDB                    = "db"
	KeyFormat                = "format"
	KeyVerbose               = "verbose"
	KeyRedisAddr             = "redis_addr"
	KeyLockTTL               = "lock_ttl"
	KeyMetricsFile           = "metrics_file"
	KeyHistoryMaxFailures    = "history.max_failures"
	KeyHistoryBreakerTimeout = "history.breaker_timeout"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Config holds resolved settings.
type Config struct {
	DB        string        `mapstructure:"db"`
	Format    string        `mapstructure:"format"`
	Verbose   bool          `mapstructure:"verbose"`
	RedisAddr string        `mapstructure:"redis_addr"` // empty: in-process finalize lock
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
	History   History       `mapstructure:"history"`

	// MetricsFile receives the Prometheus counters in text format when each
	// command exits. Empty disables the export.
	MetricsFile string `mapstructure:"metrics_file"`
}

// History configures the circuit breaker around history writes.
type History struct {
	MaxFailures    uint32        `mapstructure:"max_failures"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyDB, "conteo.db")
	v.SetDefault(KeyFormat, "text")
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyRedisAddr, "")
	v.SetDefault(KeyLockTTL, "30s")
	v.SetDefault(KeyMetricsFile, "")
	v.SetDefault(KeyHistoryMaxFailures, 5)
	v.SetDefault(KeyHistoryBreakerTimeout, "30s")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// BindFlags binds the root command's persistent flags to their keys.
// Flag names use dashes; keys use underscores.
func BindFlags(v *viper.Viper, cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()
	for _, name := range []string{"db", "format", "verbose", "redis-addr", "lock-ttl", "metrics-file"} {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		key := strings.ReplaceAll(name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the config file, if any, and returns the validated settings.
//
// An explicit file must exist. Without one, conteo.yaml is looked up in the
// working directory and silently skipped when absent.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("conteo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if !slices.Contains(ValidFormats, c.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", c.Format, ValidFormats)
	}
	if strings.TrimSpace(c.DB) == "" {
		return errors.New("db path must not be empty")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock_ttl must be positive, got %s", c.LockTTL)
	}
	if c.History.MaxFailures == 0 {
		return errors.New("history.max_failures must be at least 1")
	}
	if c.History.BreakerTimeout <= 0 {
		return fmt.Errorf("history.breaker_timeout must be positive, got %s", c.History.BreakerTimeout)
	}
	return nil
}
