// Package config reads server configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
)

// Config holds application configuration. The durable cache tier (MinIO +
// Postgres) is optional: leaving its variables unset runs the server in
// local fallback mode, rendering previews without persistence.
type Config struct {
	Port               string
	CORSAllowedOrigins []string

	OpenMeteoBaseURL string
	AemetAPIKey      string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool

	PostgresURL string
}

type ErrMissingRequiredEnvVar struct {
	Name string
}

func (e *ErrMissingRequiredEnvVar) Error() string {
	return fmt.Sprintf("required environment variable %q is not set", e.Name)
}

// Load reads configuration from environment variables. Returns an error when
// a partially configured durable tier would fail at first use.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		OpenMeteoBaseURL: getEnv("OPEN_METEO_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		AemetAPIKey:      os.Getenv("AEMET_API_KEY"),
		MinIOEndpoint:    os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey:   os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey:   os.Getenv("MINIO_SECRET_KEY"),
		MinIOUseSSL:      os.Getenv("MINIO_USE_SSL") == "true",
		PostgresURL:      os.Getenv("POSTGRES_URL"),
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSAllowedOrigins = strings.Split(origins, ",")
	}

	// An endpoint without credentials is a misconfiguration, not fallback.
	if cfg.MinIOEndpoint != "" {
		if cfg.MinIOAccessKey == "" {
			return nil, &ErrMissingRequiredEnvVar{Name: "MINIO_ACCESS_KEY"}
		}
		if cfg.MinIOSecretKey == "" {
			return nil, &ErrMissingRequiredEnvVar{Name: "MINIO_SECRET_KEY"}
		}
	}

	return cfg, nil
}

// DurableTierEnabled reports whether both halves of the durable cache are
// configured.
func (c *Config) DurableTierEnabled() bool {
	return c.MinIOEndpoint != "" && c.PostgresURL != ""
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
