// Package config loads the stabackend configuration file. The file is TOML and names
// the backend to use together with its connection parameters.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/tansive/sensorthings/internal/backend"
)

// ConfigFormatVersion is the format version written by this release.
const ConfigFormatVersion = "0.1.0"

// supportedFormats is the range of format versions this release can read.
const supportedFormats = ">= 0.1.0, < 0.2.0"

// DefaultConfigFile is the file name looked up in the user config directory.
const DefaultConfigFile = "stabackend.conf"

// BackendConfig holds the backend type and its connection parameters.
type BackendConfig struct {
	Type               string `toml:"type"`
	URL                string `toml:"url"`
	APIKey             string `toml:"api_key"`
	Timeout            string `toml:"timeout"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
}

// Defs returns the connection parameters in the form backend.New expects.
func (b *BackendConfig) Defs() map[string]any {
	defs := map[string]any{
		"url":                  b.URL,
		"insecure_skip_verify": b.InsecureSkipVerify,
	}
	if b.APIKey != "" {
		defs["api_key"] = b.APIKey
	}
	if b.Timeout != "" {
		defs["timeout"] = b.Timeout
	}
	return defs
}

// ConfigParam is the content of a configuration file.
type ConfigParam struct {
	FormatVersion string        `toml:"format_version"`
	LogLevel      string        `toml:"log_level"`
	Backend       BackendConfig `toml:"backend"`
}

var cfg *ConfigParam

// Config returns the configuration loaded by the last successful LoadConfig.
func Config() *ConfigParam {
	return cfg
}

// GetDefaultConfigPath returns <user config dir>/tansive/stabackend.conf.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "tansive", DefaultConfigFile), nil
}

// LoadConfig reads, validates and installs the configuration in filename.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	c, err := ParseConfig(content)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// ParseConfig decodes and validates TOML content.
func ParseConfig(content []byte) (*ConfigParam, error) {
	c := &ConfigParam{}
	md, err := toml.Decode(string(content), c)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := ValidateConfig(c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}
	return c, nil
}

// ValidateConfig checks c and fills in defaults.
func ValidateConfig(c *ConfigParam) error {
	if c.FormatVersion == "" {
		return fmt.Errorf("format_version is required")
	}
	v, err := semver.NewVersion(c.FormatVersion)
	if err != nil {
		return fmt.Errorf("invalid format_version %q: %v", c.FormatVersion, err)
	}
	constraint, err := semver.NewConstraint(supportedFormats)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("unsupported config file format version: %s", c.FormatVersion)
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Backend.Type == "" {
		c.Backend.Type = "SensorThings"
	}
	// The url may come from the command line, so the full parameter set is checked
	// when the backend is built.
	if c.Backend.URL != "" {
		if _, err := backend.DecodeConnectionParams(c.Backend.Defs()); err != nil {
			return fmt.Errorf("backend: %v", err)
		}
	} else if c.Backend.Timeout != "" {
		d, err := time.ParseDuration(c.Backend.Timeout)
		if err != nil {
			return fmt.Errorf("backend: invalid timeout %q: %v", c.Backend.Timeout, err)
		}
		if d < 0 {
			return fmt.Errorf("backend: timeout must not be negative")
		}
	}
	return nil
}

// WriteConfig writes c to file, creating the directory if needed.
func (c *ConfigParam) WriteConfig(file string) error {
	if file == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}
	return nil
}
