// Package config loads the redlight server configuration from a YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-redlight/pkg/game"
)

// Defaults.
const (
	DefaultPort     = "8080"
	DefaultLogLevel = "info"
)

// Environment variables that override the file.
const (
	EnvPort       = "REDLIGHT_PORT"
	EnvMode       = "REDLIGHT_MODE"
	EnvDifficulty = "REDLIGHT_DIFFICULTY"
	EnvLogLevel   = "REDLIGHT_LOG_LEVEL"
	EnvSentryDSN  = "SENTRY_DSN"
	EnvSummaryURL = "REDLIGHT_SUMMARY_URL"
)

// Config is the process configuration.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// FeedURL is a tracker bridge to connect out to.
	FeedURL string `yaml:"feed_url"`
	// Record writes a replay of the session to this path.
	Record string `yaml:"record"`
	// StaticDir is served at / by the web server.
	StaticDir string `yaml:"static_dir"`
	// SummaryURL receives a POST for every finished session.
	SummaryURL string `yaml:"summary_url"`
	SentryDSN  string `yaml:"sentry_dsn"`

	Game game.Config `yaml:"game"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Port:     DefaultPort,
		LogLevel: DefaultLogLevel,
		Game:     game.DefaultConfig(),
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvPort); v != "" {
		c.Port = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvSentryDSN); v != "" {
		c.SentryDSN = v
	}
	if v := os.Getenv(EnvSummaryURL); v != "" {
		c.SummaryURL = v
	}
	if v := os.Getenv(EnvMode); v != "" {
		if err := c.SetMode(v); err != nil {
			return fmt.Errorf("config: %s: %w", EnvMode, err)
		}
	}
	if v := os.Getenv(EnvDifficulty); v != "" {
		if err := c.SetDifficulty(v); err != nil {
			return fmt.Errorf("config: %s: %w", EnvDifficulty, err)
		}
	}
	return nil
}

// SetMode switches the game mode by name.
func (c *Config) SetMode(name string) error {
	return c.Game.GameMode.Mode.UnmarshalText([]byte(name))
}

// SetDifficulty switches the difficulty by name.
func (c *Config) SetDifficulty(name string) error {
	return c.Game.Difficulty.UnmarshalText([]byte(name))
}

// Validate checks the process settings and the game config.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("config: port is empty")
	}
	if n, err := strconv.Atoi(c.Port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("config: invalid port %q", c.Port)
	}
	return c.Game.Validate()
}

// Addr returns the listen address for Port.
func (c Config) Addr() string {
	return ":" + c.Port
}
