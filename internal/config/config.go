package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Weather   WeatherConfig   `koanf:"weather"`
	History   HistoryConfig   `koanf:"history"`
	Log       LogConfig       `koanf:"log"`

	// Version is set from the build, not from configuration sources
	Version string `koanf:"-"`
}

// ServerConfig configures the HTTP boundary
type ServerConfig struct {
	Host               string        `koanf:"host"`
	Port               int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout        time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout       time.Duration `koanf:"write_timeout" validate:"gt=0"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute" validate:"min=0"`
	CORSOrigins        []string      `koanf:"cors_origins"`
}

// ArtifactsConfig points at the fitted model and encoder files
type ArtifactsConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// WeatherConfig configures the weather lookup
type WeatherConfig struct {
	BaseURL         string        `koanf:"base_url" validate:"required,url"`
	APIKey          string        `koanf:"api_key"`
	Country         string        `koanf:"country"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	CacheTTL        time.Duration `koanf:"cache_ttl" validate:"min=0"`
	CacheSize       int           `koanf:"cache_size" validate:"min=0"`
	FallbackOnError bool          `koanf:"fallback_on_error"`
}

// HistoryConfig configures the sqlite prediction log
type HistoryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path" validate:"required_if=Enabled true"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns the configuration used when no file or environment
// overrides are present
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               5000,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       60 * time.Second,
			RateLimitPerMinute: 120,
			CORSOrigins:        []string{"*"},
		},
		Artifacts: ArtifactsConfig{
			Dir: "./models",
		},
		Weather: WeatherConfig{
			BaseURL:         "https://api.openweathermap.org",
			Country:         "IN",
			Timeout:         3 * time.Second,
			CacheTTL:        10 * time.Minute,
			CacheSize:       256,
			FallbackOnError: true,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "./database/harvestlink.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Addr returns the listen address
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks the configuration against its struct constraints
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
