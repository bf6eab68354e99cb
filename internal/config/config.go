// Package config loads process configuration from NESTWRITE_* environment
// variables. Command-line flags override what is loaded here.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/nestwrite/internal/ir"
)

// Config holds all process configuration.
type Config struct {
	Database DatabaseConfig

	// SchemaDir is the CUE schema directory.
	SchemaDir string `env:"SCHEMA_DIR" envDefault:"schema"`
	// MaxNodes caps the nodes of one request; <= 0 disables the cap.
	MaxNodes int    `env:"MAX_NODES" envDefault:"1000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// BareVerb is the verb for persisted references that carry nothing
	// but their identity: link or update.
	BareVerb string `env:"BARE_VERB" envDefault:"link"`
}

// DatabaseConfig holds storage connection settings.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"nestwrite.db"`
}

// Prefix is prepended to every variable name.
const Prefix = "NESTWRITE_"

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("invalid %sDB_DRIVER %q (want sqlite3 or postgres)", Prefix, c.Database.Driver)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.Verb(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid %sLOG_LEVEL %q: %w", Prefix, c.LogLevel, err)
	}
	return level, nil
}

// Verb returns the bare reference verb.
func (c *Config) Verb() (ir.Verb, error) {
	verb, err := ir.ParseVerb(c.BareVerb)
	if err != nil {
		return ir.VerbUnspecified, fmt.Errorf("invalid %sBARE_VERB: %w", Prefix, err)
	}
	if verb != ir.VerbLink && verb != ir.VerbUpdate {
		return ir.VerbUnspecified, fmt.Errorf("invalid %sBARE_VERB %q (want link or update)", Prefix, c.BareVerb)
	}
	return verb, nil
}
