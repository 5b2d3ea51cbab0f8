// Package config holds the gateway runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	jsoncodec "github.com/recordwire/recordgate/internal/gateway/jsoncodec"
)

// Config groups the settings for the HTTP surface, the token endpoint and
// the ambient observability features.
type Config struct {
	// ListenAddress is the address the gateway serves on.
	ListenAddress string `env:"RECORDGATE_LISTEN" envDefault:":8080" json:"listen_address"`

	// ExecutePath is the wire endpoint path (POST execute, GET description).
	ExecutePath string `env:"RECORDGATE_EXECUTE_PATH" envDefault:"/services/execute" json:"execute_path"`

	// MaxBodyBytes caps inbound envelope size. Zero means the default.
	MaxBodyBytes int64 `env:"RECORDGATE_MAX_BODY_BYTES" envDefault:"4194304" json:"max_body_bytes"`

	ReadTimeout  time.Duration `env:"RECORDGATE_READ_TIMEOUT" envDefault:"30s" json:"read_timeout"`
	WriteTimeout time.Duration `env:"RECORDGATE_WRITE_TIMEOUT" envDefault:"30s" json:"write_timeout"`

	// SkipOptionalParams makes malformed declared-optional parameters
	// non-fatal to request decoding.
	SkipOptionalParams bool `env:"RECORDGATE_SKIP_OPTIONAL_PARAMS" json:"skip_optional_params"`

	// TokenSecret signs emulated access tokens. Required when the token
	// endpoint is enabled.
	TokenSecret  string        `env:"RECORDGATE_TOKEN_SECRET" json:"token_secret"`
	TokenTTL     time.Duration `env:"RECORDGATE_TOKEN_TTL" envDefault:"1h" json:"token_ttl"`
	TokenEnabled bool          `env:"RECORDGATE_TOKEN_ENABLED" envDefault:"true" json:"token_enabled"`

	// MetricsEnabled mounts the Prometheus handler on /metrics.
	MetricsEnabled bool `env:"RECORDGATE_METRICS_ENABLED" envDefault:"true" json:"metrics_enabled"`

	// AuditTopic is the in-process topic executed messages are published on.
	AuditTopic string `env:"RECORDGATE_AUDIT_TOPIC" envDefault:"recordgate.executed" json:"audit_topic"`
}

// Load builds a Config from the environment, optionally overridden by a
// JSON file named in RECORDGATE_CONFIG_FILE.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if path := os.Getenv("RECORDGATE_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := jsoncodec.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	return cfg, nil
}

func (c Config) String() string {
	copy := c
	if copy.TokenSecret != "" {
		copy.TokenSecret = "***REDACTED***"
	}
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(copy))
}

// Validate checks the configuration. Returns a joined error describing every
// problem found.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateToken()...)

	return errors.Join(errs...)
}

func (c *Config) validateServer() []error {
	var errs []error
	if c.ListenAddress == "" {
		errs = append(errs, errors.New("server: listen address is required"))
	}
	if c.ExecutePath == "" || c.ExecutePath[0] != '/' {
		errs = append(errs, errors.New("server: execute path must start with /"))
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, errors.New("server: max body bytes cannot be negative"))
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		errs = append(errs, errors.New("server: timeouts cannot be negative"))
	}
	return errs
}

func (c *Config) validateToken() []error {
	var errs []error
	if c.TokenEnabled && c.TokenSecret == "" {
		errs = append(errs, errors.New("token: secret is required when the token endpoint is enabled"))
	}
	if c.TokenTTL < 0 {
		errs = append(errs, errors.New("token: ttl cannot be negative"))
	}
	return errs
}
