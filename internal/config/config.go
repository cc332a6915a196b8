package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RequestLog RequestLogConfig `mapstructure:"request_log"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // development | production
}

type AuthConfig struct {
	PrivateKeyPath string `mapstructure:"private_key_path"`
	PublicKeyPath  string `mapstructure:"public_key_path"`
	Issuer         string `mapstructure:"issuer"`
	Audience       string `mapstructure:"audience"`
	AccessTTL      string `mapstructure:"access_ttl"`  // e.g. "15m"
	RefreshTTL     string `mapstructure:"refresh_ttl"` // e.g. "168h"
}

type DatabaseConfig struct {
	DSN  string `mapstructure:"dsn"`
	Seed bool   `mapstructure:"seed"`
}

type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type RequestLogConfig struct {
	Dir                 string `mapstructure:"dir"`
	Capacity            int    `mapstructure:"capacity"`
	SaveSuccessRequest  bool   `mapstructure:"save_success_request"`
	SaveSuccessResponse bool   `mapstructure:"save_success_response"`
	SaveErrorRequest    bool   `mapstructure:"save_error_request"`
	SaveErrorResponse   bool   `mapstructure:"save_error_response"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	QPS     float64 `mapstructure:"qps"`
	Burst   int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. AUTHGATE_AUTH_PRIVATE_KEY_PATH
	viper.SetEnvPrefix("authgate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("auth.private_key_path", "./keys/jwt_private.pem")
	viper.SetDefault("auth.public_key_path", "./keys/jwt_public.pem")
	viper.SetDefault("auth.issuer", "authgate")
	viper.SetDefault("auth.audience", "authgate-clients")
	viper.SetDefault("auth.access_ttl", "15m")
	viper.SetDefault("auth.refresh_ttl", "168h")
	// Empty defaults so AutomaticEnv binds these keys even without a
	// config file.
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.seed", false)
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttl_seconds", 300)
	viper.SetDefault("request_log.dir", "./logs")
	viper.SetDefault("request_log.capacity", 5000)
	viper.SetDefault("request_log.save_success_request", true)
	viper.SetDefault("request_log.save_success_response", false)
	viper.SetDefault("request_log.save_error_request", true)
	viper.SetDefault("request_log.save_error_response", true)
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.qps", 20)
	viper.SetDefault("rate_limit.burst", 40)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the settings the auth pipeline cannot run without.
// Failures here are fatal at startup, never per-request.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Auth.Issuer == "" || c.Auth.Audience == "" {
		return fmt.Errorf("auth.issuer and auth.audience are required")
	}
	for _, path := range []string{c.Auth.PrivateKeyPath, c.Auth.PublicKeyPath} {
		if path == "" {
			return fmt.Errorf("auth key paths are required")
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("auth key file %s: %w", path, err)
		}
	}
	if _, err := time.ParseDuration(c.Auth.AccessTTL); err != nil {
		return fmt.Errorf("auth.access_ttl: %w", err)
	}
	if _, err := time.ParseDuration(c.Auth.RefreshTTL); err != nil {
		return fmt.Errorf("auth.refresh_ttl: %w", err)
	}
	if c.RequestLog.Capacity <= 0 {
		return fmt.Errorf("request_log.capacity must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}
