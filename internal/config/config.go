// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package config

import (
	"errors"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
)

// Config is the top-level cohort configuration.
type Config struct {
	Networking NetworkingConfig `mapstructure:"networking"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Roster     RosterConfig     `mapstructure:"roster"`
	Embedder   EmbedderConfig   `mapstructure:"embedder"`
}

// NetworkingConfig controls how the server listens for connections.
type NetworkingConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// StorageConfig locates persistent state: the override stores and the
// precomputed vector snapshot database.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// RosterConfig locates the input spreadsheets. StaffPath is optional; an
// empty value disables the staff dataset.
type RosterConfig struct {
	Path      string `mapstructure:"path"`
	StaffPath string `mapstructure:"staff_path"`
}

// EmbedderConfig selects the embedding model endpoint. Provider "none"
// disables live encoding; similarity then degrades to precomputed vectors
// and substring matching. APIKey may be a keyring://service/key URI.
type EmbedderConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// SetDefaults installs default values on a Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("networking.listen", "127.0.0.1:8600")
	v.SetDefault("storage.data_dir", "data")
	v.SetDefault("roster.path", "roster.xlsx")
	v.SetDefault("roster.staff_path", "")
	v.SetDefault("embedder.provider", "openai")
	v.SetDefault("embedder.model", "text-embedding-3-small")
}

// SetupEnv binds environment variables with prefix COHORT_ (dots become
// underscores, e.g. COHORT_NETWORKING_LISTEN).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("COHORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults when path is
// empty) with environment overrides, then validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, cohorterr.Errorf(cohorterr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cohorterr.Errorf(cohorterr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, cohorterr.New(cohorterr.CodeConfigValidateInvalidValue, "networking.listen must not be empty"))
	} else if err := validateListen(c.Networking.Listen); err != nil {
		errs = append(errs, err)
	}

	switch c.Embedder.Provider {
	case "openai", "none":
	default:
		errs = append(errs, cohorterr.Errorf(cohorterr.CodeConfigValidateInvalidValue,
			"embedder.provider must be \"openai\" or \"none\", got %q", c.Embedder.Provider))
	}

	if c.Roster.Path == "" {
		errs = append(errs, cohorterr.New(cohorterr.CodeConfigValidateInvalidValue, "roster.path must not be empty"))
	}

	return errors.Join(errs...)
}

func validateListen(listen string) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return cohorterr.Errorf(cohorterr.CodeConfigValidateInvalidValue, "networking.listen %q is not host:port: %w", listen, err)
	}
	if host == "" {
		return cohorterr.Errorf(cohorterr.CodeConfigValidateInvalidValue, "networking.listen %q has no host", listen)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return cohorterr.Errorf(cohorterr.CodeConfigValidateInvalidValue, "networking.listen %q has invalid port", listen)
	}
	return nil
}

// ValidatedPath is the persisted validation-flag store.
func (c *Config) ValidatedPath() string {
	return filepath.Join(c.Storage.DataDir, "validated.json")
}

// OverridesPath is the persisted field-override store.
func (c *Config) OverridesPath() string {
	return filepath.Join(c.Storage.DataDir, "overrides.json")
}

// ColumnMapPath is the persisted column-mapping override store.
func (c *Config) ColumnMapPath() string {
	return filepath.Join(c.Storage.DataDir, "column_map.json")
}

// SnapshotDBPath is the precomputed-vector snapshot database.
func (c *Config) SnapshotDBPath() string {
	return filepath.Join(c.Storage.DataDir, "vectors.db")
}
