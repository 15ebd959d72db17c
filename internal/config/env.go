package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings holds process-level options read from the environment.
type Settings struct {
	DSN              string        `env:"DOCFLOW_DSN"`
	Workspace        string        `env:"DOCFLOW_WORKSPACE" envDefault:"."`
	ConfigPath       string        `env:"DOCFLOW_CONFIG"`
	RedisURL         string        `env:"DOCFLOW_REDIS_URL"`
	EventsEnabled    bool          `env:"DOCFLOW_EVENTS_ENABLED" envDefault:"false"`
	StatusCacheTTL   time.Duration `env:"DOCFLOW_STATUS_CACHE_TTL" envDefault:"0s"`
	SettingsCacheTTL time.Duration `env:"DOCFLOW_SETTINGS_CACHE_TTL" envDefault:"30s"`
	LogLevel         string        `env:"DOCFLOW_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadSettings parses Settings from the process environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := ParseEnv(&s); err != nil {
		return Settings{}, err
	}
	if s.ConfigPath == "" {
		s.ConfigPath = Path(s.Workspace)
	}
	return s, nil
}
