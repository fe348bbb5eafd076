// Package config loads the arena server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Species sources accepted by SPECIES_SOURCE.
const (
	SpeciesSourcePokeAPI = "pokeapi"
	SpeciesSourceStatic  = "static"
)

// Config holds every runtime setting of the server.
type Config struct {
	Port         int    `env:"PORT" envDefault:"3001"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"arena.db"`
	ServiceName  string `env:"SERVICE_NAME" envDefault:"pokearena"`
	OtelEndpoint string `env:"OTEL_ENDPOINT"`
	Profile      string `env:"TUNING_PROFILE" envDefault:"default"`

	// Providers
	PokeAPIBaseURL     string        `env:"POKEAPI_BASE_URL" envDefault:"https://pokeapi.co/api/v2"`
	SpeciesSource      string        `env:"SPECIES_SOURCE" envDefault:"pokeapi"`
	SpeciesCacheTTL    time.Duration `env:"SPECIES_CACHE_TTL" envDefault:"1h"`
	SpeciesCacheSize   int           `env:"SPECIES_CACHE_SIZE" envDefault:"512"`
	WeatherAPIKey      string        `env:"WEATHER_API_KEY"`
	WeatherAPIURL      string        `env:"WEATHER_API_URL" envDefault:"https://api.openweathermap.org/data/2.5"`
	DefaultLocation    string        `env:"DEFAULT_LOCATION" envDefault:"Paris"`
	HTTPClientTimeout  time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"10s"`
	ProviderMaxRetries uint          `env:"PROVIDER_MAX_RETRIES" envDefault:"3"`

	// Session lifecycle
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	FinishedRetention time.Duration `env:"FINISHED_RETENTION" envDefault:"5m"`
	JanitorInterval   time.Duration `env:"JANITOR_INTERVAL" envDefault:"1m"`
	EventLogCapacity  int           `env:"EVENT_LOG_CAPACITY" envDefault:"10000"`
	RandomSeed        uint64        `env:"RANDOM_SEED" envDefault:"0"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads an optional .env file and then parses the environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load dotenv: %w", err)
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.SpeciesSource != SpeciesSourcePokeAPI && c.SpeciesSource != SpeciesSourceStatic {
		return fmt.Errorf("invalid SPECIES_SOURCE %q", c.SpeciesSource)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.JanitorInterval <= 0 {
		return fmt.Errorf("JANITOR_INTERVAL must be positive")
	}
	if c.SpeciesCacheSize <= 0 {
		return fmt.Errorf("SPECIES_CACHE_SIZE must be positive")
	}
	return nil
}

// Tuning returns the tuning profile named by TUNING_PROFILE.
func (c *Config) Tuning() *Tuning {
	if c.Profile == "low" {
		return LowResourceTuning()
	}
	return DefaultTuning()
}
