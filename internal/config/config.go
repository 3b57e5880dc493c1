// Package config loads application settings from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full set of runtime settings. Every field has a sane
// development default except JWTSecret, which must be provided.
type Config struct {
	Port      int    `env:"PORT" envDefault:"8080"`
	PublicURL string `env:"PUBLIC_URL" envDefault:""`

	DBPath string `env:"DB_PATH" envDefault:"data/loginhub.db"`

	// RedisAddr empty means run without Redis; the server falls back to an
	// in-process cache.
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:""`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"1h"`

	JWTSecret string `env:"JWT_SECRET" envDefault:""`

	TemplateDir string `env:"TEMPLATE_DIR" envDefault:"web/templates"`
	StaticDir   string `env:"STATIC_DIR" envDefault:"web/static"`

	GoogleClientID       string `env:"GOOGLE_CLIENT_ID" envDefault:""`
	GoogleClientSecret   string `env:"GOOGLE_CLIENT_SECRET" envDefault:""`
	FacebookClientID     string `env:"FACEBOOK_CLIENT_ID" envDefault:""`
	FacebookClientSecret string `env:"FACEBOOK_CLIENT_SECRET" envDefault:""`
	TwitterClientID      string `env:"TWITTER_CLIENT_ID" envDefault:""`
	TwitterClientSecret  string `env:"TWITTER_CLIENT_SECRET" envDefault:""`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing environment: %w", err)
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	return cfg, nil
}

// CallbackURL returns the OAuth callback URL for a provider, derived from
// the public base URL.
func (c Config) CallbackURL(provider string) string {
	return fmt.Sprintf("%s/auth/%s/callback", c.PublicURL, provider)
}
