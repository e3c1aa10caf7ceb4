// Package config loads cyclelog configuration.
//
// Precedence, lowest first: built-in defaults, an optional YAML file,
// CYCLELOG_* environment variables, then command-line flags (applied by the
// cli package).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "CYCLELOG_"

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Database              string `yaml:"database" env:"DATABASE"`
	LogLevel              string `yaml:"logLevel" env:"LOG_LEVEL"`
	LogFormat             string `yaml:"logFormat" env:"LOG_FORMAT"`
	MigrationBatchSize    int    `yaml:"migrationBatchSize" env:"MIGRATION_BATCH_SIZE"`
	SnapshotIncludeLegacy bool   `yaml:"snapshotIncludeLegacy" env:"SNAPSHOT_INCLUDE_LEGACY"`
	MetricsFile           string `yaml:"metricsFile" env:"METRICS_FILE"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Database:           "cyclelog.db",
		LogLevel:           "info",
		LogFormat:          "text",
		MigrationBatchSize: 100,
	}
}

// Load returns defaults overlaid with the YAML file at path (if any) and the
// environment, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		defer f.Close()
		if err := decodeYAML(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := FromEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// FromEnv overlays CYCLELOG_* environment variables onto cfg.
// Unset variables leave the corresponding field untouched.
func FromEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks field values.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database) == "" {
		errs = append(errs, errors.New("database must not be empty"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logFormat must be text or json, got %q", c.LogFormat))
	}
	if c.MigrationBatchSize < 1 {
		errs = append(errs, fmt.Errorf("migrationBatchSize must be at least 1, got %d", c.MigrationBatchSize))
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("logLevel: %w", err)
	}
	return level, nil
}
