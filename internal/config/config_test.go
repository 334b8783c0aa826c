package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func load(t *testing.T, file, envFile string) (*Config, error) {
	t.Helper()
	v := viper.New()
	if err := Setup(v, file, envFile); err != nil {
		return nil, err
	}
	return Load(v)
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := load(t, "", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.Server.Port != want.Server.Port || cfg.TruckMate.Timeout != want.TruckMate.Timeout || cfg.Log.Format != "console" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Auth.Enabled() {
		t.Error("auth should be disabled without a secret")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, "fleetmate.yaml", `
server:
  port: 9090
  shutdown_timeout: 5s
truckmate:
  base_url: https://tm.example.com/tm/api
  timeout: 12s
log:
  level: debug
demo: true
`)
	t.Setenv("FLEETMATE_TRUCKMATE_API_KEY", "from-env")
	t.Setenv("FLEETMATE_SERVER_PORT", "9191")

	cfg, err := load(t, path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, env must win over file", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second || cfg.TruckMate.Timeout != 12*time.Second {
		t.Errorf("durations = %v, %v", cfg.Server.ShutdownTimeout, cfg.TruckMate.Timeout)
	}
	if cfg.TruckMate.BaseURL != "https://tm.example.com/tm/api" || cfg.TruckMate.APIKey != "from-env" {
		t.Errorf("truckmate = %+v", cfg.TruckMate)
	}
	if cfg.Log.Level != "debug" || !cfg.Demo {
		t.Errorf("log=%+v demo=%v", cfg.Log, cfg.Demo)
	}
	if cfg.TruckMate.MaxRetries != 3 {
		t.Errorf("max_retries default lost: %d", cfg.TruckMate.MaxRetries)
	}
}

func TestLoadDotEnv(t *testing.T) {
	envFile := writeFile(t, ".env", "FLEETMATE_AUTH_JWT_SECRET=shh\nFLEETMATE_AUTH_ISSUER=idp.example.com\n")
	t.Setenv("FLEETMATE_AUTH_JWT_SECRET", "")
	os.Unsetenv("FLEETMATE_AUTH_JWT_SECRET")
	t.Cleanup(func() { os.Unsetenv("FLEETMATE_AUTH_ISSUER") })

	cfg, err := load(t, writeFile(t, "c.yaml", "log:\n  format: json\n"), envFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWTSecret != "shh" || cfg.Auth.Issuer != "idp.example.com" || !cfg.Auth.Enabled() {
		t.Errorf("auth = %+v", cfg.Auth)
	}
}

func TestMissingEnvFileIsIgnored(t *testing.T) {
	v := viper.New()
	if err := Setup(v, writeFile(t, "c.yaml", "demo: false\n"), filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Errorf("Setup: %v", err)
	}
}

func TestExplicitFileMustExist(t *testing.T) {
	v := viper.New()
	if err := Setup(v, filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad url", func(c *Config) { c.TruckMate.BaseURL = "not a url" }, "truckmate.base_url"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad transport", func(c *Config) { c.MCP.Transport = "carrier-pigeon" }, "mcp.transport"},
		{"negative rps", func(c *Config) { c.TruckMate.RequestsPerSecond = -1 }, "truckmate.requests_per_second"},
		{"too many retries", func(c *Config) { c.TruckMate.MaxRetries = 50 }, "truckmate.max_retries"},
		{"zero timeout", func(c *Config) { c.TruckMate.Timeout = 0 }, "truckmate.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.key) {
				t.Errorf("error %q does not name %s", err.Error(), tt.key)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

// ---------------------------------------------------------------------------
// YAML
// ---------------------------------------------------------------------------

func TestWriteDefaultConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetmate.yaml")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}
	if err := WriteDefaultConfig(path); err == nil {
		t.Error("second write should refuse to overwrite")
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "shutdown_timeout: 30s") {
		t.Errorf("durations should be human readable:\n%s", data)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second || cfg.MCP.Port != 3001 {
		t.Errorf("round trip = %+v", cfg)
	}

	viaViper, err := load(t, path, "")
	if err != nil {
		t.Fatalf("Load written file: %v", err)
	}
	if viaViper.Server.MaxBodySize != Default().Server.MaxBodySize {
		t.Errorf("max_body_size = %d", viaViper.Server.MaxBodySize)
	}
}

func TestLoadFileExpandsEnv(t *testing.T) {
	t.Setenv("TM_KEY", "expanded")
	cfg, err := LoadFile(writeFile(t, "c.yaml", "truckmate:\n  api_key: ${TM_KEY}\n"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.TruckMate.APIKey != "expanded" {
		t.Errorf("api_key = %q", cfg.TruckMate.APIKey)
	}
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.TruckMate.APIKey = "key"
	cfg.Auth.JWTSecret = "secret"

	out, err := Marshal(cfg.Redacted())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(out), "api_key: key") || strings.Contains(string(out), "jwt_secret: secret") {
		t.Errorf("secrets leaked:\n%s", out)
	}
	if cfg.TruckMate.APIKey != "key" {
		t.Error("Redacted modified the original")
	}
}
