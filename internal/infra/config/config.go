package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	DiscordToken string   `env:"DISCORD_BOT_TOKEN,required,notEmpty"`
	DiscordGuild string   `env:"DISCORD_GUILD_ID,required,notEmpty"`
	AdminRoleIDs []string `env:"ADMIN_ROLE_IDS" envSeparator:","`

	StateDir        string `env:"STATE_DIR" envDefault:"."`
	SnapshotBackend string `env:"SNAPSHOT_BACKEND" envDefault:"file"`
	DatabaseURL     string `env:"DATABASE_URL"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// sólo la usa el janitor
	HistoryRetentionDays int `env:"HISTORY_RETENTION_DAYS" envDefault:"30"`
}

// Load lee .env si existe y después las variables del proceso.
func Load() (Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

// LoadFrom parsea sólo el mapa dado (tests y herramientas).
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.AdminRoleIDs = compact(cfg.AdminRoleIDs)
	cfg.SnapshotBackend = strings.ToLower(strings.TrimSpace(cfg.SnapshotBackend))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.SnapshotBackend {
	case BackendFile:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when SNAPSHOT_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("SNAPSHOT_BACKEND %q: want file or postgres", c.SnapshotBackend))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.HistoryRetentionDays < 1 {
		errs = append(errs, fmt.Errorf("HISTORY_RETENTION_DAYS %d must be >= 1", c.HistoryRetentionDays))
	}
	return errors.Join(errs...)
}

// ParseLevel acepta debug|info|warn|error (y los offsets de slog, p.ej. "info+2").
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q: %w", s, err)
	}
	return l, nil
}

func (c Config) SlogLevel() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
