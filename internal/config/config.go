// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads process-scoped settings once at start. The resulting
// Config is passed explicitly to the components that need it.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/bartekus/skillkit/internal/envelope"
)

// EnvPrefix is prepended to every environment override, e.g.
// SKILLKIT_KNOWLEDGE_ROOT or SKILLKIT_LOG_LEVEL.
const EnvPrefix = "SKILLKIT"

// Log configuration
type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
	Path  string `mapstructure:"path" yaml:"path"`
	Debug bool   `mapstructure:"debug" yaml:"debug"`
}

// Metrics configuration
type Metrics struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// State configuration
type State struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// Guard configuration
type Guard struct {
	// Sovereign blocks envelopes that echo tokens from personal/confidential files.
	Sovereign bool `mapstructure:"sovereign" yaml:"sovereign"`
	// Markers logs a warning when rendered output trips the marker scanner.
	Markers bool `mapstructure:"markers" yaml:"markers"`
}

// Skills configuration
type Skills struct {
	// Dir optionally holds <skill>/SKILL.md overrides for the built-in manifests.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Config represents the application configuration
type Config struct {
	KnowledgeRoot string          `mapstructure:"knowledge_root" yaml:"knowledge_root"`
	Format        envelope.Format `mapstructure:"format" yaml:"format"`
	Color         bool            `mapstructure:"color" yaml:"color"`
	MissionID     string          `mapstructure:"mission_id" yaml:"mission_id"`
	Log           Log             `mapstructure:"log" yaml:"log"`
	Metrics       Metrics         `mapstructure:"metrics" yaml:"metrics"`
	State         State           `mapstructure:"state" yaml:"state"`
	Guard         Guard           `mapstructure:"guard" yaml:"guard"`
	Skills        Skills          `mapstructure:"skills" yaml:"skills"`
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("knowledge_root", "knowledge")
	v.SetDefault("format", string(envelope.FormatJSON))
	v.SetDefault("color", false)
	v.SetDefault("log.level", "WARN")
	v.SetDefault("log.path", "")
	v.SetDefault("log.debug", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.dir", filepath.Join("work", "metrics"))
	v.SetDefault("state.enabled", false)
	v.SetDefault("state.dir", filepath.Join("work", "runs"))
	v.SetDefault("guard.sovereign", true)
	v.SetDefault("guard.markers", false)
	v.SetDefault("skills.dir", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("mission_id", "MISSION_ID", EnvPrefix+"_MISSION_ID")

	return v
}

// ReadFile reads configuration from path, or searches ./skillkit.yaml and
// ./configs/skillkit.yaml when path is empty. A missing file is not an error
// in search mode. It returns the file used, if any.
func ReadFile(v *viper.Viper, path string) (string, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigType("yaml")
		v.SetConfigName("skillkit")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return "", nil
		}
		return "", fmt.Errorf("reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load unmarshals v into a Config and normalises it. The knowledge root is
// resolved to an absolute path here, once.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	format, err := envelope.ParseFormat(string(cfg.Format))
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	if cfg.KnowledgeRoot == "" {
		cfg.KnowledgeRoot = "knowledge"
	}
	root, err := filepath.Abs(cfg.KnowledgeRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving knowledge root: %w", err)
	}
	cfg.KnowledgeRoot = root

	if cfg.Log.Level == "" {
		cfg.Log.Level = "WARN"
	}
	return cfg, nil
}
