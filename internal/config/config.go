package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	DiscordToken   string   `env:"DISCORD_TOKEN,required"`
	StoragePath    string   `env:"STORAGE_PATH" envDefault:"datastore.json"`
	CommandPrefix  string   `env:"COMMAND_PREFIX" envDefault:"~"`
	GuildBlacklist []string `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`

	FadeDelay  time.Duration `env:"FADE_DELAY" envDefault:"7s"`
	FadePeriod time.Duration `env:"FADE_PERIOD" envDefault:"5s"`
	FFmpegPath string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`

	SendRate float64 `env:"SEND_RATE" envDefault:"5"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, falling back to system environment variables")
	}
	return parse(env.Options{})
}

// LoadFrom parses the given variables only.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DiscordToken) == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is not set"))
	}
	if strings.TrimSpace(c.CommandPrefix) == "" {
		errs = append(errs, errors.New("COMMAND_PREFIX must not be blank"))
	}
	if c.FadePeriod <= 0 {
		errs = append(errs, fmt.Errorf("FADE_PERIOD must be positive, got %s", c.FadePeriod))
	}
	if c.FadeDelay < 0 {
		errs = append(errs, fmt.Errorf("FADE_DELAY must not be negative, got %s", c.FadeDelay))
	}
	if c.SendRate <= 0 {
		errs = append(errs, fmt.Errorf("SEND_RATE must be positive, got %v", c.SendRate))
	}
	return errors.Join(errs...)
}

// IsBlacklisted reports whether the bot should ignore the guild.
func (c *Config) IsBlacklisted(guildID string) bool {
	for _, id := range c.GuildBlacklist {
		if strings.TrimSpace(id) == guildID {
			return true
		}
	}
	return false
}
