// Package config holds the process configuration. It is built once in main
// and handed to components explicitly; business logic never reads the
// environment on its own.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the Late social-posting provider endpoints.
const (
	DefaultAuthorizeURL = "https://app.getlate.dev/oauth/authorize"
	DefaultTokenURL     = "https://getlate.dev/api/v1/oauth/token"
	DefaultAPIBaseURL   = "https://getlate.dev/api/v1"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Late     LateConfig     `yaml:"late"`
	Billing  BillingConfig  `yaml:"billing"`
	News     NewsConfig     `yaml:"news"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// BaseURL is the externally reachable URL of this server, used for OAuth
	// redirect URIs and for the connect links embedded in error payloads.
	BaseURL string `yaml:"base_url"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LateConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	AuthorizeURL string `yaml:"authorize_url"`
	TokenURL     string `yaml:"token_url"`
	APIBaseURL   string `yaml:"api_base_url"`
	// RequestTimeout bounds every outbound call to the provider, e.g. "30s".
	RequestTimeout string `yaml:"request_timeout"`
}

// Timeout parses RequestTimeout, falling back to 30s.
func (c LateConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

type BillingConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

type NewsConfig struct {
	APIKey string `yaml:"api_key"`
}

// Load reads the optional YAML config file at path, then applies environment
// overrides and defaults. An empty path means env/defaults only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	overrideStr(&cfg.Server.Addr, "LISTEN_ADDR")
	overrideStr(&cfg.Server.BaseURL, "BASE_URL")
	overrideStr(&cfg.Database.Path, "DATABASE_PATH")
	overrideStr(&cfg.Late.ClientID, "LATE_CLIENT_ID")
	overrideStr(&cfg.Late.ClientSecret, "LATE_CLIENT_SECRET")
	overrideStr(&cfg.Late.AuthorizeURL, "LATE_AUTHORIZE_URL")
	overrideStr(&cfg.Late.TokenURL, "LATE_TOKEN_URL")
	overrideStr(&cfg.Late.APIBaseURL, "LATE_API_BASE_URL")
	overrideStr(&cfg.Billing.WebhookSecret, "BILLING_WEBHOOK_SECRET")
	overrideStr(&cfg.News.APIKey, "NEWSAPI_KEY")

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8000"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "buzzposter.db"
	}
	if cfg.Late.AuthorizeURL == "" {
		cfg.Late.AuthorizeURL = DefaultAuthorizeURL
	}
	if cfg.Late.TokenURL == "" {
		cfg.Late.TokenURL = DefaultTokenURL
	}
	if cfg.Late.APIBaseURL == "" {
		cfg.Late.APIBaseURL = DefaultAPIBaseURL
	}
}

func overrideStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
