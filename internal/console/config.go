package console

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the console settings, read from LEXCONSOLE_* variables.
type Config struct {
	APIURL         string        `envconfig:"API_URL" default:"http://localhost:8080"`
	Token          string        `envconfig:"TOKEN"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`
	RetryDelay     time.Duration `envconfig:"RETRY_DELAY" default:"1s"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("LEXCONSOLE", &cfg); err != nil {
		return nil, err
	}
	if cfg.APIURL == "" {
		return nil, errors.New("api url must be provided")
	}
	if cfg.PollInterval <= 0 || cfg.RetryDelay < 0 {
		return nil, errors.New("poll interval must be positive and retry delay non-negative")
	}
	return &cfg, nil
}
