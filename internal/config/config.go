// internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DefaultConfigFileName = "config.yml"
	DefaultConfigDir      = ".config/hkp"
	DefaultPsqlBinary     = "psql"
)

// Config holds the settings shared by all commands.
// Values come from the optional YAML file and are always overridden by
// environment variables. Secrets are only read from the environment.
type Config struct {
	APIKey string `yaml:"-" env:"HEROKU_API_KEY"`

	APIHost       string `yaml:"api_host" env:"HEROKU_API_HOST" env-default:"api.heroku.com"`
	LongboardHost string `yaml:"longboard_host" env:"HEROKU_LONGBOARD_HOST" env-default:"longboard.heroku.com"`
	MetricsHost   string `yaml:"metrics_host" env:"HEROKU_METRICS_HOST" env-default:"api.metrics.herokai.com"`
	TelexHost     string `yaml:"telex_host" env:"HEROKU_TELEX_HOST" env-default:"telex.heroku.com"`

	HTTPTimeout time.Duration `yaml:"http_timeout" env:"HEROKU_HTTP_TIMEOUT" env-default:"30s"`

	Psql PsqlConfig `yaml:"psql"`

	Debug bool `yaml:"debug" env:"HEROKU_DEBUG" env-default:"false"`
}

// PsqlConfig holds settings for the psql command.
type PsqlConfig struct {
	Binary string `yaml:"binary" env:"HEROKU_PSQL_BINARY" env-default:"psql"`

	// History is the raw HEROKU_PSQL_HISTORY value. Empty means unset.
	History string `yaml:"history" env:"HEROKU_PSQL_HISTORY"`

	// KnownHostsFile enables bastion host key verification when set.
	KnownHostsFile string `yaml:"known_hosts_file" env:"HEROKU_BASTION_KNOWN_HOSTS"`

	DatabaseURL string `yaml:"-" env:"DATABASE_URL"`
}

// Load reads configPath (if it exists) and applies environment overrides.
// An empty configPath uses GetDefaultConfigPath.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		defaultPath, err := GetDefaultConfigPath()
		if err == nil {
			configPath = defaultPath
		}
	}

	cfg := &Config{}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
			}
			return cfg, cfg.validate()
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", configPath, err)
		}
	}

	// Brak pliku - tylko zmienne środowiskowe
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Psql.Binary) == "" {
		c.Psql.Binary = DefaultPsqlBinary
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout must not be negative, got %s", c.HTTPTimeout)
	}
	return nil
}

// RequireAPIKey returns the API key or an error telling the user how to set it.
func (c *Config) RequireAPIKey() (string, error) {
	if c.APIKey == "" {
		return "", errors.New("HEROKU_API_KEY is not set")
	}
	return c.APIKey, nil
}

// GetDefaultConfigPath zwraca ścieżkę do pliku konfiguracyjnego (bez tworzenia katalogu)
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not get home directory: %v", err)
	}
	return filepath.Join(homeDir, DefaultConfigDir, DefaultConfigFileName), nil
}
