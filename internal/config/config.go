// Copyright (c) 2026 rhpak team
// rhpak - content-addressed ROM hack package pipeline
// This source code is licensed under the MIT license found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the operator-facing configuration for the pipeline. Every
// value can come from rhpak.yaml, the RHPAK_* environment, or a CLI
// flag, in ascending precedence.
type Config struct {
	DB struct {
		Type string `mapstructure:"type" yaml:"type"`
		DSN  string `mapstructure:"dsn" yaml:"dsn"`
	} `mapstructure:"db" yaml:"db"`
	Tool struct {
		Path      string `mapstructure:"path" yaml:"path"`
		BaseAsset string `mapstructure:"base_asset" yaml:"base_asset"`
		MinOutput int64  `mapstructure:"min_output" yaml:"min_output"`
		MaxOutput int64  `mapstructure:"max_output" yaml:"max_output"`
	} `mapstructure:"tool" yaml:"tool"`
	StageDir string `mapstructure:"stage_dir" yaml:"stage_dir"`
	Debug    bool   `mapstructure:"debug" yaml:"debug"`
}

// Defaults returns the baseline configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"db.type":   "sqlite",
		"db.dsn":    "file:rhpak.db",
		"stage_dir": "stage",
		"debug":     false,
	}
}

// getConfigPath returns the full path for the configuration file.
func getConfigPath(system bool) (string, error) {
	var configDir string
	var err error

	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Rhpak")
		default: // Linux, macOS, etc.
			configDir = "/etc/rhpak"
		}
	} else {
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "rhpak")
	}

	return filepath.Join(configDir, "rhpak.yaml"), nil
}

// LoadConfig merges defaults, config files, environment and bound CLI
// flags into one Config. An absent config file is fine; a malformed one
// is fatal.
func LoadConfig(cmd *cobra.Command, explicitPath string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName("rhpak")
	v.SetConfigType("yaml")
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	}
	if userConfigPath, err := getConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := getConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("rhpak")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}

// WriteConfigFile persists the configuration to the user or system
// location.
func WriteConfigFile(c *Config, system bool) error {
	path, err := getConfigPath(system)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}

	// 0600 because the DSN may carry credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return err
	}
	return nil
}
