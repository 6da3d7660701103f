package database

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/eventscout/eventscout/pkg/config"
)

// LoadConfigFromEnv loads database configuration from environment
// variables. Yaml values, when present, take precedence over the env
// defaults via FromYAML.
func LoadConfigFromEnv() (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpen, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_OPEN_CONNS", "10"))
	maxIdle, _ := strconv.Atoi(getEnvOrDefault("DB_MAX_IDLE_CONNS", "5"))

	return Config{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("DB_USER", "eventscout"),
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        getEnvOrDefault("DB_NAME", "eventscout"),
		SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}, nil
}

// FromYAML overlays the yaml database section on the env-derived
// config. Zero yaml fields keep the env value.
func FromYAML(base Config, y *config.DatabaseYAML) Config {
	if y == nil {
		return base
	}
	if y.Host != "" {
		base.Host = y.Host
	}
	if y.Port != 0 {
		base.Port = y.Port
	}
	if y.User != "" {
		base.User = y.User
	}
	if y.Password != "" {
		base.Password = y.Password
	}
	if y.Database != "" {
		base.Database = y.Database
	}
	if y.SSLMode != "" {
		base.SSLMode = y.SSLMode
	}
	return base
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
