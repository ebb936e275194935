package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the service configuration, loaded from YAML and environment.
type Config struct {
	Env string `yaml:"env" env:"APP_ENV" env-default:"local"`

	Server struct {
		Address        string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
		ReadTimeout    time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
		WriteTimeout   time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
		IdleTimeout    time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
		AdminRateLimit int           `yaml:"admin_rate_limit" env:"HTTP_ADMIN_RATE_LIMIT" env-default:"60"`
	} `yaml:"http_server"`

	DB struct {
		DSN string `yaml:"dsn" env:"DB_DSN" env-default:"file:authd.db?cache=shared"`
	} `yaml:"db"`

	JWT struct {
		SigningKey      string        `yaml:"signing_key" env:"JWT_SIGNING_KEY"`
		Issuer          string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"authd"`
		Audience        []string      `yaml:"audience" env:"JWT_AUDIENCE" env-default:"authd-clients"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"JWT_ACCESS_TOKEN_TTL" env-default:"2m"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"JWT_REFRESH_TOKEN_TTL" env-default:"168h"`
	} `yaml:"jwt"`

	PhoneRegion string `yaml:"phone_region" env:"PHONE_REGION" env-default:"US"`

	// Bootstrap seeds a SuperAdmin account on first start when set.
	Bootstrap struct {
		Username string `yaml:"username" env:"BOOTSTRAP_USERNAME"`
		Email    string `yaml:"email" env:"BOOTSTRAP_EMAIL"`
		Password string `yaml:"password" env:"BOOTSTRAP_PASSWORD"`
	} `yaml:"bootstrap"`
}

// GetSigningKey implements auth.Config
func (c *Config) GetSigningKey() string { return c.JWT.SigningKey }

// GetIssuer implements auth.Config
func (c *Config) GetIssuer() string { return c.JWT.Issuer }

// GetAudience implements auth.Config
func (c *Config) GetAudience() []string { return c.JWT.Audience }

// GetAccessTokenTTL implements auth.Config
func (c *Config) GetAccessTokenTTL() time.Duration { return c.JWT.AccessTokenTTL }

// GetRefreshTokenTTL implements auth.Config
func (c *Config) GetRefreshTokenTTL() time.Duration { return c.JWT.RefreshTokenTTL }

func loadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
