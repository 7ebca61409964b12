package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration, populated from the environment. A
// .env file in the working directory is loaded first when present.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"data/warden.json"`

	// Prefix is the default command prefix; guilds may override it.
	Prefix string `env:"COMMAND_PREFIX" envDefault:"!"`

	// OwnerIDs are the author ids allowed to run owner-only commands.
	OwnerIDs []string `env:"OWNER_IDS" envSeparator:","`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}
