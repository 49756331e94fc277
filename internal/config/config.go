// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./lantern.yaml)
//  3. Default values
//
// Validation is fail-fast: Load returns an error for any configuration the
// rest of the system would treat as a startup-fatal condition (unknown
// retrieval profile, unknown tokenizer, overlap >= chunk size, vector
// dimension mismatch).
package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration failures. All of them are fatal at
// startup and never retried.
var (
	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrUnknownProfile indicates the active retrieval profile name is not defined.
	ErrUnknownProfile = errors.New("unknown retrieval profile")

	// ErrInvalidChunking indicates chunk_size/overlap_size cannot make progress.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidDimension indicates the embedding dimension does not match
	// the profile's vector column.
	ErrInvalidDimension = errors.New("invalid embedding dimension")

	// ErrInvalidPostgres indicates the PostgreSQL connection settings are unusable.
	ErrInvalidPostgres = errors.New("invalid PostgreSQL configuration")

	// ErrInvalidHistoryWindow indicates the conversation history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")
)

// Config stores application configuration.
type Config struct {
	// Active retrieval profile name ("openai" or "ollama").
	Profile string `mapstructure:"profile"`

	// Provider credentials and endpoints.
	OpenAIAPIKey string `mapstructure:"openai_api_key"` // SENSITIVE: never logged
	OllamaHost   string `mapstructure:"ollama_host"`

	// Retrieval behavior.
	RetrievalLimit    int     `mapstructure:"retrieval_limit"`
	DistanceThreshold float64 `mapstructure:"distance_threshold"`
	HistoryWindow     int     `mapstructure:"history_window"`

	// Ingestion worker pool.
	WorkerCount int `mapstructure:"worker_count"`

	// HTTP server.
	ServerAddr string `mapstructure:"server_addr"`

	// Storage configuration.
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE: never logged
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`
}

// Load loads configuration with priority: env > config file > defaults.
// The returned Config has already been validated.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("lantern")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/lantern")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", ProfileOpenAI)
	v.SetDefault("ollama_host", "http://localhost:11434")

	v.SetDefault("retrieval_limit", 3)
	v.SetDefault("distance_threshold", 0.7)
	v.SetDefault("history_window", 20)
	v.SetDefault("worker_count", 4)

	v.SetDefault("server_addr", ":8080")

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "lantern")
	v.SetDefault("postgres_password", "lantern_dev_password")
	v.SetDefault("postgres_db_name", "lantern")
	v.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment variables explicitly.
// Secrets are env-only; they have no config-file default.
func bindEnvVariables(v *viper.Viper) {
	_ = v.BindEnv("profile", "LANTERN_PROFILE")
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("ollama_host", "OLLAMA_HOST")
	_ = v.BindEnv("server_addr", "LANTERN_ADDR")
	_ = v.BindEnv("postgres_host", "LANTERN_POSTGRES_HOST")
	_ = v.BindEnv("postgres_port", "LANTERN_POSTGRES_PORT")
	_ = v.BindEnv("postgres_user", "LANTERN_POSTGRES_USER")
	_ = v.BindEnv("postgres_password", "LANTERN_POSTGRES_PASSWORD")
	_ = v.BindEnv("postgres_db_name", "LANTERN_POSTGRES_DB")
	_ = v.BindEnv("postgres_ssl_mode", "LANTERN_POSTGRES_SSL_MODE")
}

// ActiveProfile resolves the configured retrieval profile.
// Unknown names were rejected by Validate, so this cannot fail after Load.
func (c *Config) ActiveProfile() (Profile, error) {
	p, ok := profiles[c.Profile]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, c.Profile)
	}
	return p, nil
}

// PostgresURL returns a postgres:// URL for migrations.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// PostgresConnectionString returns a keyword/value connection string for pgx.
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword,
		c.PostgresDBName, c.PostgresSSLMode)
}
