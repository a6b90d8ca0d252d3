package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// MinPlayers is the all-ready start threshold. 2 in production; test
	// environments may set 1.
	MinPlayers       int `env:"MIN_PLAYERS" envDefault:"2"`
	MaxPlayers       int `env:"MAX_PLAYERS" envDefault:"10"`
	CountdownSeconds int `env:"COUNTDOWN_SECONDS" envDefault:"5"`

	Logging LoggingConfig
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MinPlayers < 1 {
		return fmt.Errorf("MIN_PLAYERS must be >= 1, got %d", c.MinPlayers)
	}
	if c.MaxPlayers < c.MinPlayers {
		return fmt.Errorf("MAX_PLAYERS (%d) must be >= MIN_PLAYERS (%d)", c.MaxPlayers, c.MinPlayers)
	}
	if c.CountdownSeconds < 0 {
		return fmt.Errorf("COUNTDOWN_SECONDS must be >= 0, got %d", c.CountdownSeconds)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.Logging.Format)
	}
	return nil
}

func (c Config) Countdown() time.Duration {
	return time.Duration(c.CountdownSeconds) * time.Second
}
