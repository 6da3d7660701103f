package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the single configuration file loaded from the
// config directory. A missing file is not an error: the built-in
// defaults are used as-is.
const ConfigFileName = "eventscout.yaml"

// Initialize loads, merges, and validates configuration.
//
// Steps performed:
//  1. Read eventscout.yaml from configDir (optional)
//  2. Expand {{.ENV_VAR}} references
//  3. Parse YAML
//  4. Merge user config over built-in defaults
//  5. Validate
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"templates", len(cfg.Templates),
		"max_candidates", cfg.Limits.MaxCandidates,
		"max_extractions", cfg.Limits.MaxExtractions,
		"auto_expand", cfg.Search.AllowAutoExpand)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	cfg := builtinDefaults()

	path := filepath.Join(configDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Info("No config file found, using built-in defaults", "path", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	data = ExpandEnv(data)

	user := &Config{}
	if err := yaml.Unmarshal(data, user); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// User values override defaults; unset keys keep their default.
	if err := mergo.Merge(cfg, user, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}

	return cfg, nil
}
