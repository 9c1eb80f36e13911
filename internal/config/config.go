// Package config loads docbridge configuration.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DOCBRIDGE_*)
//  2. Configuration file
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`

	// Grants lists the tree segments the store accepts. Empty grants all.
	Grants []string `mapstructure:"grants" yaml:"grants"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format is auto, text or json. Auto picks text on a terminal.
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=auto text json"`

	// Output is stderr, stdout or a file path.
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// StoreConfig selects the document provider.
type StoreConfig struct {
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=local object"`

	// Local holds local provider options (root).
	Local map[string]any `mapstructure:"local" yaml:"local"`

	Object ObjectConfig `mapstructure:"object" yaml:"object"`
}

// ObjectConfig configures the object store provider. Only the section named
// by Backend is read.
type ObjectConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" validate:"omitempty,oneof=s3 postgres mongodb badger memory"`

	// SpoolDir holds the temporary copies served to readers.
	SpoolDir string `mapstructure:"spool_dir" yaml:"spool_dir"`

	S3       map[string]any `mapstructure:"s3" yaml:"s3"`
	Postgres map[string]any `mapstructure:"postgres" yaml:"postgres"`
	MongoDB  map[string]any `mapstructure:"mongodb" yaml:"mongodb"`
	Badger   map[string]any `mapstructure:"badger" yaml:"badger"`
}

// Load reads configuration from configPath (or the default location),
// applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	// DOCBRIDGE_LOGGING_LEVEL=debug overrides logging.level
	v.SetEnvPrefix("DOCBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{"logging.level", "logging.format", "logging.output", "store.type", "store.object.backend", "store.object.spool_dir"} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(GetConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/docbridge, ~/.config/docbridge or ".".
func GetConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "docbridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "docbridge")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}
