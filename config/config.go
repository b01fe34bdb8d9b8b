/*
Package config loads the process configuration from the environment.

PURPOSE:
  One place that knows every knob of the server: where to listen, where the
  SQLite file lives, the optional Discord credentials and the room policy.

SOURCES (later wins):
  1. Defaults in the struct tags
  2. A .env file in the working directory, if present
  3. The process environment
  4. Command-line flags (applied by cmd/server on top of Load)

VARIABLES:
  PORT                  HTTP port (default 8080)
  DB_PATH               SQLite file (default ./roster.db)
  ROOM_POLICY_FILE      JSON or YAML room policy, see factory/policy.go
  TICK_INTERVAL         Scheduler interval (default 10m)
  SCHEDULER_ENABLED     Run the scheduler (default true)
  CORS_ORIGINS          Comma separated allowed origins
  LOG_LEVEL             debug, info, warn, error
  LOG_FORMAT            text or json
  DISCORD_TOKEN         Bot token; the bot is off without it
  DISCORD_APP_ID        Application id for slash commands
  DISCORD_GUILD_ID      Register commands in one guild only (faster)

SEE ALSO:
  - cmd/server/main.go: Consumer
*/
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/warp/roster-engine/engine"
	"github.com/warp/roster-engine/factory"
)

type Config struct {
	Port             int           `env:"PORT" envDefault:"8080"`
	DBPath           string        `env:"DB_PATH" envDefault:"./roster.db"`
	PolicyFile       string        `env:"ROOM_POLICY_FILE"`
	TickInterval     time.Duration `env:"TICK_INTERVAL" envDefault:"10m"`
	SchedulerEnabled bool          `env:"SCHEDULER_ENABLED" envDefault:"true"`
	CORSOrigins      []string      `env:"CORS_ORIGINS" envSeparator:","`

	LogLevel  slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text"`

	Discord Discord
}

// Discord holds the bot credentials. The bot runs only with a token.
type Discord struct {
	Token   string `env:"DISCORD_TOKEN"`
	AppID   string `env:"DISCORD_APP_ID"`
	GuildID string `env:"DISCORD_GUILD_ID"`
}

// Enabled reports whether a bot should be started.
func (d Discord) Enabled() bool { return d.Token != "" }

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFrom reads the configuration from the given variables only.
func LoadFrom(vars map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive, got %s", c.TickInterval)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.Discord.Enabled() && c.Discord.AppID == "" {
		return fmt.Errorf("DISCORD_APP_ID is required with DISCORD_TOKEN")
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// Policy returns the room policy: the file if one is configured, the
// default room otherwise.
func (c *Config) Policy() (engine.Policy, error) {
	if c.PolicyFile == "" {
		return engine.DefaultPolicy(), nil
	}
	return factory.NewPolicyFactory().LoadFile(c.PolicyFile)
}

// Logger builds the process logger writing to stderr.
func (c *Config) Logger() *slog.Logger {
	return c.newLogger(os.Stderr)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
