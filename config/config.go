package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds the application configuration
type Config struct {
	BaseURL      string
	APIVersion   string
	Partner      string
	CacheBackend string
	CacheDir     string
	SQLitePath   string
	PostgresDSN  string
	Timeout      time.Duration
	MaxRetries   uint64
	RateLimit    float64
	LogLevel     string
	LogPretty    bool
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".psp-ffi")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("base_url", "https://apiv5.paraswap.io")
	viper.SetDefault("api_version", "5")
	viper.SetDefault("partner", "aave")
	viper.SetDefault("cache_backend", BackendFile)
	viper.SetDefault("cache_dir", "src/tests/.pspcache")
	viper.SetDefault("sqlite_path", "src/tests/.pspcache/cache.db")
	viper.SetDefault("postgres_dsn", "")
	viper.SetDefault("timeout", 30*time.Second)
	viper.SetDefault("max_retries", 3)
	viper.SetDefault("rate_limit", 0)
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_pretty", true)

	// Read from environment variables
	viper.SetEnvPrefix("PSP_FFI")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	// Create config struct
	cfg := &Config{
		BaseURL:      viper.GetString("base_url"),
		APIVersion:   viper.GetString("api_version"),
		Partner:      viper.GetString("partner"),
		CacheBackend: strings.ToLower(viper.GetString("cache_backend")),
		CacheDir:     viper.GetString("cache_dir"),
		SQLitePath:   viper.GetString("sqlite_path"),
		PostgresDSN:  viper.GetString("postgres_dsn"),
		Timeout:      viper.GetDuration("timeout"),
		MaxRetries:   viper.GetUint64("max_retries"),
		RateLimit:    viper.GetFloat64("rate_limit"),
		LogLevel:     viper.GetString("log_level"),
		LogPretty:    viper.GetBool("log_pretty"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// Validate checks the settings that cannot fall back to a default
func (c *Config) Validate() error {
	switch c.CacheBackend {
	case BackendFile, BackendSQLite, BackendMemory:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres cache backend selected but no DSN configured. Please set PSP_FFI_POSTGRES_DSN or postgres_dsn in .psp-ffi.yaml")
		}
	default:
		return fmt.Errorf("unknown cache backend %q (expected file, sqlite, postgres or memory)", c.CacheBackend)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %v", c.RateLimit)
	}

	return nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
