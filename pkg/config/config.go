package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pario-ai/respcache/pkg/cache"
	"github.com/pario-ai/respcache/pkg/logging"
)

// EnvPrefix prefixes every environment override, e.g. RESPCACHE_STORE_PATH.
const EnvPrefix = "RESPCACHE_"

// Config holds all respcache configuration.
type Config struct {
	Store   cache.Config   `yaml:"store" envPrefix:"STORE_"`
	Server  ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Log     logging.Config `yaml:"log" envPrefix:"LOG_"`
	Janitor JanitorConfig  `yaml:"janitor" envPrefix:"JANITOR_"`
	OpenAI  OpenAIConfig   `yaml:"openai" envPrefix:"OPENAI_"`
}

// ServerConfig controls the admin HTTP server.
type ServerConfig struct {
	Listen          string        `yaml:"listen" env:"LISTEN"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// JanitorConfig controls periodic eviction of idle entries. A zero MaxIdle
// disables it.
type JanitorConfig struct {
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
	MaxIdle  time.Duration `yaml:"max_idle" env:"MAX_IDLE"`
}

// OpenAIConfig configures the OpenAI model used by the complete command.
type OpenAIConfig struct {
	APIKey     string `yaml:"api_key" env:"API_KEY"`
	BaseURL    string `yaml:"base_url" env:"BASE_URL"`
	MaxRetries int    `yaml:"max_retries" env:"MAX_RETRIES"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Store: cache.Config{
			Driver: cache.DriverSQLite,
			Path:   defaultDBPath(),
		},
		Server: ServerConfig{
			Listen:          ":8080",
			ShutdownTimeout: 5 * time.Second,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "json",
		},
		Janitor: JanitorConfig{
			Interval: time.Hour,
		},
		OpenAI: OpenAIConfig{
			MaxRetries: 2,
		},
	}
}

func defaultDBPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "respcache.db"
	}
	return filepath.Join(dir, "respcache", "cache.db")
}

// Load reads a YAML config file, expands environment variables in it and
// applies RESPCACHE_* environment overrides. A .env file in the working
// directory is loaded first when present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(data)
}

// LoadOrDefault behaves like Load but falls back to defaults plus
// environment overrides when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Default()
	if len(data) > 0 {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
