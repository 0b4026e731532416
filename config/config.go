package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Adapters  AdaptersConfig  `mapstructure:"adapters"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Override  OverrideConfig  `mapstructure:"override"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// BackendConfig points at the PriceWatch backend that owns the check stream
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AdaptersConfig holds the storefront scraper settings
type AdaptersConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	CORSProxy     string        `mapstructure:"cors_proxy"`
	Debug         bool          `mapstructure:"debug"`

	Ctelecom StoreConfig `mapstructure:"ctelecom"`
	Moborooz StoreConfig `mapstructure:"moborooz"`
	Kalatik  StoreConfig `mapstructure:"kalatik"`
}

// StoreConfig holds one storefront's endpoints
type StoreConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	SearchURL string `mapstructure:"search_url"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type string        `mapstructure:"type"` // only "memory"
	TTL  time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// OverrideConfig holds the manual override policy
type OverrideConfig struct {
	MinURLLength int `mapstructure:"min_url_length"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricewatch/")

	// PRICEWATCH_BACKEND_BASE_URL -> backend.base_url
	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
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

// setDefaults sets default configuration values. Every key needs a default
// (even an empty one) so AutomaticEnv can bind it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Backend defaults
	v.SetDefault("backend.base_url", "http://127.0.0.1:8000/")
	v.SetDefault("backend.timeout", "30s")

	// Adapter defaults
	v.SetDefault("adapters.timeout", "30s")
	v.SetDefault("adapters.user_agent", "PriceWatch/1.0")
	v.SetDefault("adapters.rate_per_second", 5)
	v.SetDefault("adapters.burst", 10)
	v.SetDefault("adapters.cors_proxy", "")
	v.SetDefault("adapters.debug", false)
	v.SetDefault("adapters.ctelecom.base_url", "https://shop.ctelecom.ir")
	v.SetDefault("adapters.ctelecom.search_url", "")
	v.SetDefault("adapters.moborooz.base_url", "https://moborooz.com")
	v.SetDefault("adapters.moborooz.search_url", "")
	v.SetDefault("adapters.kalatik.base_url", "https://kalatik.com")
	v.SetDefault("adapters.kalatik.search_url", "")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", "6h")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)

	// Override defaults
	v.SetDefault("override.min_url_length", 5)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if err := requireURL("backend.base_url", config.Backend.BaseURL); err != nil {
		return err
	}

	stores := map[string]string{
		"adapters.ctelecom.base_url": config.Adapters.Ctelecom.BaseURL,
		"adapters.moborooz.base_url": config.Adapters.Moborooz.BaseURL,
		"adapters.kalatik.base_url":  config.Adapters.Kalatik.BaseURL,
	}
	for key, value := range stores {
		if err := requireURL(key, value); err != nil {
			return err
		}
	}

	if config.Adapters.Timeout <= 0 {
		return fmt.Errorf("adapters.timeout must be positive, got: %s", config.Adapters.Timeout)
	}

	if config.Adapters.RatePerSecond < 0 {
		return fmt.Errorf("adapters.rate_per_second must not be negative, got: %v", config.Adapters.RatePerSecond)
	}

	if config.Cache.Type != "memory" {
		return fmt.Errorf("cache type must be 'memory', got: %s", config.Cache.Type)
	}

	if config.Override.MinURLLength < 1 {
		return fmt.Errorf("override.min_url_length must be at least 1, got: %d", config.Override.MinURLLength)
	}

	return nil
}

func requireURL(key, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got: %s", key, value)
	}
	return nil
}

// loadEnvFile loads ./.env into the process environment. Variables that
// are already set win over the file. A missing file is not an error.
func loadEnvFile() error {
	if err := gotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}
