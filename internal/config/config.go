// Package config loads client settings from the environment.
package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/eshaffer321/pluginhub-go/pkg/pluginhub"
	"github.com/pkg/errors"
)

// Config holds everything a client binary needs to talk to the API
type Config struct {
	BaseURL         string        `env:"PLUGINHUB_API_BASE_URL"     envDefault:"http://localhost:5000/api"`
	Timeout         time.Duration `env:"PLUGINHUB_TIMEOUT"          envDefault:"30s"`
	SessionFile     string        `env:"PLUGINHUB_SESSION_FILE"`
	LogLevel        string        `env:"PLUGINHUB_LOG_LEVEL"        envDefault:"info"`
	LogFormat       string        `env:"PLUGINHUB_LOG_FORMAT"       envDefault:"text"`
	CoalesceRefresh bool          `env:"PLUGINHUB_COALESCE_REFRESH" envDefault:"false"`
	SentryDSN       string        `env:"SENTRY_DSN"`

	Chat ChatConfig
}

// ChatConfig configures the third-party completion API used by the chat widget
type ChatConfig struct {
	URL    string `env:"PLUGINHUB_CHAT_API_URL" envDefault:"https://api.openai.com/v1/chat/completions"`
	APIKey string `env:"PLUGINHUB_CHAT_API_KEY"`
	Model  string `env:"PLUGINHUB_CHAT_MODEL"   envDefault:"gpt-4o-mini"`
}

// Enabled reports whether an API key is configured
func (c ChatConfig) Enabled() bool {
	return c.APIKey != ""
}

// Load reads the configuration from the process environment
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from the given variables only
func LoadFrom(environment map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the environment parser cannot
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return errors.New("PLUGINHUB_API_BASE_URL must not be empty")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return errors.Errorf("PLUGINHUB_API_BASE_URL must be an http(s) URL, got %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return errors.New("PLUGINHUB_TIMEOUT must be positive")
	}
	return nil
}

// ClientOptions converts the configuration into client options
func (c *Config) ClientOptions(logger pluginhub.Logger) *pluginhub.ClientOptions {
	opts := &pluginhub.ClientOptions{
		BaseURL:         c.BaseURL,
		Timeout:         c.Timeout,
		SessionFile:     c.SessionFile,
		CoalesceRefresh: c.CoalesceRefresh,
		SentryDSN:       c.SentryDSN,
		Logger:          logger,
	}
	if c.Chat.Enabled() {
		opts.Chat = &pluginhub.ChatOptions{
			URL:    c.Chat.URL,
			APIKey: c.Chat.APIKey,
			Model:  c.Chat.Model,
		}
	}
	return opts
}
