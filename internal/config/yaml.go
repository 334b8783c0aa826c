package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const redacted = "********"

// LoadFile reads a YAML configuration file without consulting the
// environment. Environment variables referenced as ${VAR_NAME} in the file
// are expanded before parsing; keys missing from the file keep their
// defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Redacted returns a copy of cfg with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	if out.TruckMate.APIKey != "" {
		out.TruckMate.APIKey = redacted
	}
	if out.Auth.JWTSecret != "" {
		out.Auth.JWTSecret = redacted
	}
	return &out
}

// WriteDefaultConfig writes the default configuration to a YAML file. It
// refuses to overwrite an existing file.
func WriteDefaultConfig(path string) error {
	data, err := Marshal(Default())
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
