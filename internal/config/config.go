// Package config loads FleetMate settings from fleetmate.yaml, the
// environment (FLEETMATE_*) and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// FLEETMATE_TRUCKMATE_API_KEY for truckmate.api_key.
const EnvPrefix = "FLEETMATE"

// Config is the complete FleetMate configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	TruckMate TruckMateConfig `mapstructure:"truckmate" yaml:"truckmate"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	MCP       MCPConfig       `mapstructure:"mcp" yaml:"mcp"`
	// Demo serves the built-in fixture dataset instead of TruckMate.
	Demo bool `mapstructure:"demo" yaml:"demo"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host" validate:"required"`
	Port            int           `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	RateLimit       int           `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"` // requests per minute per IP, 0 disables
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
	MaxBodySize     int64         `mapstructure:"max_body_size" yaml:"max_body_size" validate:"gt=0"`
}

// TruckMateConfig points FleetMate at a TruckMate REST API.
type TruckMateConfig struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
}

// AuthConfig enables bearer-token verification of API callers. Tokens are
// issued by the identity provider; FleetMate only checks them.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string `mapstructure:"issuer" yaml:"issuer"`
}

// Enabled reports whether requests must carry a valid token.
func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

// LogConfig controls log output.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=console json"`
}

// MCPConfig controls the MCP server.
type MCPConfig struct {
	Transport string `mapstructure:"transport" yaml:"transport" validate:"oneof=stdio http"`
	Port      int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			CORSOrigins:     []string{"*"},
			RateLimit:       600,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     1 << 20,
		},
		TruckMate: TruckMateConfig{
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RequestsPerSecond: 10,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Port:      3001,
		},
	}
}

// SetDefaults registers every default with v so environment overrides
// apply to keys missing from the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_size", d.Server.MaxBodySize)
	v.SetDefault("truckmate.base_url", d.TruckMate.BaseURL)
	v.SetDefault("truckmate.api_key", d.TruckMate.APIKey)
	v.SetDefault("truckmate.timeout", d.TruckMate.Timeout)
	v.SetDefault("truckmate.max_retries", d.TruckMate.MaxRetries)
	v.SetDefault("truckmate.requests_per_second", d.TruckMate.RequestsPerSecond)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.issuer", d.Auth.Issuer)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("mcp.transport", d.MCP.Transport)
	v.SetDefault("mcp.port", d.MCP.Port)
	v.SetDefault("demo", d.Demo)
}

// Setup prepares v to read configuration: the given file or fleetmate.yaml
// in the working directory or ~/.fleetmate, environment variables with the
// FLEETMATE_ prefix, and variables from envFile when it exists.
func Setup(v *viper.Viper, file, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("fleetmate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.fleetmate")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks every section. The error lists each offending key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		problems = append(problems, fmt.Sprintf("%s fails %q (got %v)", key, fe.Tag(), fe.Value()))
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}
