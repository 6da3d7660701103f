package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventscout/eventscout/pkg/config"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "eventscout", cfg.User)
	assert.Equal(t, "eventscout", cfg.Database)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
}

func TestLoadConfigFromEnv_Custom(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_USER", "scout")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "events")
	t.Setenv("DB_SSLMODE", "require")

	cfg, err := LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 5433, cfg.Port)
	assert.Equal(t, "scout", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "events", cfg.Database)
	assert.Equal(t, "require", cfg.SSLMode)
}

func TestLoadConfigFromEnv_InvalidPort(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")

	_, err := LoadConfigFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid DB_PORT")
}

func TestFromYAML_Overlay(t *testing.T) {
	base := Config{Host: "localhost", Port: 5432, User: "eventscout", Database: "eventscout", SSLMode: "disable"}

	merged := FromYAML(base, &config.DatabaseYAML{Host: "pg.prod", Port: 6432, Password: "hunter2"})

	assert.Equal(t, "pg.prod", merged.Host)
	assert.Equal(t, 6432, merged.Port)
	assert.Equal(t, "hunter2", merged.Password)
	// Yaml zero values keep env-derived settings.
	assert.Equal(t, "eventscout", merged.User)
	assert.Equal(t, "disable", merged.SSLMode)
}

func TestFromYAML_NilKeepsBase(t *testing.T) {
	base := Config{Host: "localhost"}
	assert.Equal(t, base, FromYAML(base, nil))
}
