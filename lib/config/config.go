// Copyright 2026 The Aegis Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/aegis-c9/aegis/lib/live"
	"github.com/aegis-c9/aegis/lib/matchstate"
	"github.com/aegis-c9/aegis/lib/schema/match"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

const (
	// DefaultBaseURL is the local development backend.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultRetryDelay is the fixed wait between a failed connection
	// and the next attempt. The session owns the value.
	DefaultRetryDelay = live.DefaultRetryDelay

	// BaseURLVariable names the environment variable that supplies the
	// stream base URL.
	BaseURLVariable = "AEGIS_API_URL"

	// ConfigVariable names the environment variable holding the path
	// of the configuration file read by Load.
	ConfigVariable = "AEGIS_CONFIG"
)

// Config is the master configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Stream StreamConfig `yaml:"stream"`

	// RosterFile is a YAML or JSONC roster file. It takes precedence
	// over Roster.
	RosterFile string `yaml:"roster_file"`

	// Roster lists the session's players in feed order. Empty means
	// the built-in roster.
	Roster []matchstate.RosterEntry `yaml:"roster"`

	Log LogConfig `yaml:"log"`

	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains the fields an environment section may override.
type Overrides struct {
	Stream     *StreamConfig `yaml:"stream,omitempty"`
	RosterFile string        `yaml:"roster_file,omitempty"`
	Log        *LogConfig    `yaml:"log,omitempty"`
}

// StreamConfig configures the telemetry stream connection.
type StreamConfig struct {
	// BaseURL is the backend root; the stream is served at
	// {BaseURL}/stream-telemetry.
	BaseURL string `yaml:"base_url"`

	// RetryDelay is the fixed delay before reconnecting after a
	// failure, as a Go duration string.
	// Default: 5s
	RetryDelay string `yaml:"retry_delay"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Format is "auto" (text on a terminal, JSON otherwise), "text",
	// or "json".
	Format string `yaml:"format"`

	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`
}

// Default returns the development configuration used when no file is
// given.
func Default() *Config {
	return &Config{
		Environment: Development,
		Stream: StreamConfig{
			BaseURL:    DefaultBaseURL,
			RetryDelay: DefaultRetryDelay.String(),
		},
		Log: LogConfig{
			Format: "auto",
			Level:  "info",
		},
	}
}

// Load loads the file named by AEGIS_CONFIG. If the variable is unset
// it returns the defaults. The environment base URL is applied in
// both cases.
func Load() (*Config, error) {
	vars, err := readEnvironment()
	if err != nil {
		return nil, err
	}
	if vars.ConfigPath == "" {
		cfg := Default()
		if err := cfg.ApplyEnvironment(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return LoadFile(vars.ConfigPath)
}

// LoadFile loads configuration from path over the defaults, applies
// environment sections, expands variables, and applies the
// environment base URL.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	if err := cfg.ApplyEnvironment(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// environment holds the process environment variables Aegis reads.
type environment struct {
	ConfigPath string `env:"AEGIS_CONFIG"`
	BaseURL    string `env:"AEGIS_API_URL"`
}

func readEnvironment() (environment, error) {
	var vars environment
	if err := env.Parse(&vars); err != nil {
		return environment{}, fmt.Errorf("parse env: %w", err)
	}
	return vars, nil
}

// ApplyEnvironment takes the stream base URL from AEGIS_API_URL when
// the variable is set and non-empty.
func (c *Config) ApplyEnvironment() error {
	vars, err := readEnvironment()
	if err != nil {
		return err
	}
	if vars.BaseURL != "" {
		c.Stream.BaseURL = vars.BaseURL
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Stream != nil {
		if overrides.Stream.BaseURL != "" {
			c.Stream.BaseURL = overrides.Stream.BaseURL
		}
		if overrides.Stream.RetryDelay != "" {
			c.Stream.RetryDelay = overrides.Stream.RetryDelay
		}
	}
	if overrides.RosterFile != "" {
		c.RosterFile = overrides.RosterFile
	}
	if overrides.Log != nil {
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
	}
}

func (c *Config) expandVariables() {
	c.RosterFile = expandVars(c.RosterFile)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the process
// environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// RetryDelayDuration parses Stream.RetryDelay.
func (c *Config) RetryDelayDuration() (time.Duration, error) {
	delay, err := time.ParseDuration(c.Stream.RetryDelay)
	if err != nil {
		return 0, fmt.Errorf("stream.retry_delay: %w", err)
	}
	return delay, nil
}

// Players returns the session roster: the roster file if one is
// named, else the inline roster, else the built-in roster.
func (c *Config) Players() ([]match.PlayerData, error) {
	if c.RosterFile != "" {
		return matchstate.LoadRoster(c.RosterFile)
	}
	if len(c.Roster) > 0 {
		players, err := matchstate.RosterFromEntries(c.Roster)
		if err != nil {
			return nil, fmt.Errorf("roster: %w", err)
		}
		return players, nil
	}
	return matchstate.DefaultRoster(), nil
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Stream.BaseURL == "" {
		errs = append(errs, errors.New("stream.base_url is required"))
	} else if parsed, err := url.Parse(c.Stream.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("stream.base_url: %w", err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, fmt.Errorf("stream.base_url: scheme must be http or https, got %q", parsed.Scheme))
	}

	if delay, err := c.RetryDelayDuration(); err != nil {
		errs = append(errs, err)
	} else if delay <= 0 {
		errs = append(errs, fmt.Errorf("stream.retry_delay must be positive, got %s", delay))
	}

	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be auto, text, or json, got %q", c.Log.Format))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level))
	}

	return errors.Join(errs...)
}
