package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config holds everything the auth engine needs at process start. Values come
// from an optional YAML file with environment variables taking precedence.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig carries the signing secret and token lifetimes. Durations are
// written as Go duration strings in YAML ("15m", "336h").
type AuthConfig struct {
	Secret     string `yaml:"secret"`
	Issuer     string `yaml:"issuer"`
	AccessTTL  string `yaml:"access_ttl"`
	RefreshTTL string `yaml:"refresh_ttl"`
}

const (
	defaultAddr       = ":8080"
	defaultIssuer     = "teamboard"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
)

// Load reads the YAML file at path (when it exists) and applies environment
// overrides. An empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Config{
		Server: ServerConfig{Addr: defaultAddr},
		Auth:   AuthConfig{Issuer: defaultIssuer},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultAddr
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = defaultIssuer
	}
	if strings.TrimSpace(cfg.Auth.Secret) == "" {
		return Config{}, fmt.Errorf("auth secret is not configured")
	}
	if _, err := cfg.AccessTTL(); err != nil {
		return Config{}, err
	}
	if _, err := cfg.RefreshTTL(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TEAMBOARD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("TEAMBOARD_PG_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TEAMBOARD_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TEAMBOARD_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TEAMBOARD_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("TEAMBOARD_AUTH_ISSUER"); v != "" {
		cfg.Auth.Issuer = v
	}
	if v := os.Getenv("TEAMBOARD_ACCESS_TTL"); v != "" {
		cfg.Auth.AccessTTL = v
	}
	if v := os.Getenv("TEAMBOARD_REFRESH_TTL"); v != "" {
		cfg.Auth.RefreshTTL = v
	}
}

// AccessTTL returns the configured access token lifetime.
func (c Config) AccessTTL() (time.Duration, error) {
	return parseTTL(c.Auth.AccessTTL, defaultAccessTTL)
}

// RefreshTTL returns the configured refresh token lifetime.
func (c Config) RefreshTTL() (time.Duration, error) {
	return parseTTL(c.Auth.RefreshTTL, defaultRefreshTTL)
}

func parseTTL(raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse ttl %q: %w", raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("ttl must be positive, got %q", raw)
	}
	return d, nil
}
