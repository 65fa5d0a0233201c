// Package config loads docstruct settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/sqkimofficial/ai-research-platform-sub000/logging"
	"github.com/sqkimofficial/ai-research-platform-sub000/types"
)

// Backend names accepted in the backend field.
const (
	BackendVault  = "vault"
	BackendSQLite = "sqlite"
)

// Config is the docstruct configuration file.
type Config struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`
	ReadOnly bool   `yaml:"read_only"`

	// Watch reloads vault files changed by other processes.
	Watch bool `yaml:"watch"`

	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`

	Summary struct {
		MaxDepth int `yaml:"max_depth"`
	} `yaml:"summary"`

	// CustomTypes declares element types beyond the built-in set.
	CustomTypes []types.CustomType `yaml:"custom_types"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{
		Backend: BackendVault,
		Path:    "./documents",
	}
	c.Log.Level = "info"
	c.Summary.MaxDepth = 10
	return c
}

// Load reads a YAML file over the defaults, then applies DOCSTRUCT_BACKEND,
// DOCSTRUCT_PATH, DOCSTRUCT_READ_ONLY, DOCSTRUCT_WATCH and DOCSTRUCT_LOG_LEVEL from the
// environment. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, c); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv("DOCSTRUCT_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("DOCSTRUCT_PATH"); v != "" {
		c.Path = v
	}
	if v := os.Getenv("DOCSTRUCT_READ_ONLY"); v != "" {
		ro, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("DOCSTRUCT_READ_ONLY: %w", err)
		}
		c.ReadOnly = ro
	}
	if v := os.Getenv("DOCSTRUCT_WATCH"); v != "" {
		w, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("DOCSTRUCT_WATCH: %w", err)
		}
		c.Watch = w
	}
	if v := os.Getenv("DOCSTRUCT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	if c.Summary.MaxDepth <= 0 {
		c.Summary.MaxDepth = 10
	}

	return c, c.Validate()
}

// Validate rejects unknown backends, log levels and unnamed custom types.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendVault, BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendVault, BackendSQLite)
	}
	if c.Path == "" {
		return errors.New("path is required")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	for i, ct := range c.CustomTypes {
		if ct.Name == "" {
			return fmt.Errorf("custom_types[%d]: name is required", i)
		}
		if !ct.Name.IsCustom() {
			return fmt.Errorf("custom_types[%d]: %q is a built-in type", i, ct.Name)
		}
	}
	return nil
}

// Logger builds the logger described by the log section.
func (c *Config) Logger(service string) *slog.Logger {
	level, _ := logging.ParseLevel(c.Log.Level)
	return logging.New(logging.Config{Level: level, JSON: c.Log.JSON, Service: service})
}
