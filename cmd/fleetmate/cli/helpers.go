package cli

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/smartgistics/fleetmate-sub000/internal/backend"
	"github.com/smartgistics/fleetmate-sub000/internal/backend/fixture"
	"github.com/smartgistics/fleetmate-sub000/internal/backend/truckmate"
	"github.com/smartgistics/fleetmate-sub000/internal/config"
	"github.com/smartgistics/fleetmate-sub000/internal/logger"
	"github.com/smartgistics/fleetmate-sub000/internal/model"
)

// loadConfig returns the validated configuration assembled by initConfig.
func loadConfig() (*config.Config, error) {
	if initErr != nil {
		return nil, initErr
	}
	return config.Load(viper.GetViper())
}

// newLogger builds the root logger from the log section.
func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: "fleetmate",
	})
}

// newRegistry creates a backend registry with every supported driver registered.
func newRegistry() *backend.Registry {
	registry := backend.NewRegistry()
	registry.Register(truckmate.Driver, truckmate.Open)
	registry.Register(fixture.Driver, fixture.Open)
	return registry
}

// backendConfig maps the configuration onto driver settings. Demo mode
// selects the fixture dataset.
func backendConfig(cfg *config.Config, log zerolog.Logger) backend.Config {
	bc := backend.Config{
		Driver:            truckmate.Driver,
		BaseURL:           cfg.TruckMate.BaseURL,
		APIKey:            cfg.TruckMate.APIKey,
		UserAgent:         "fleetmate/" + versionString(),
		Timeout:           cfg.TruckMate.Timeout,
		MaxRetries:        cfg.TruckMate.MaxRetries,
		RequestsPerSecond: cfg.TruckMate.RequestsPerSecond,
		Logger:            logger.Named(log, "backend"),
	}
	if cfg.Demo {
		bc.Driver = fixture.Driver
		bc.Rows = fixture.DefaultRows
	}
	return bc
}

// openBackend opens the backend the configuration selects. An unconfigured
// TruckMate backend still opens; its calls fail with a clear message.
func openBackend(cfg *config.Config, log zerolog.Logger) (backend.Backend, error) {
	b, err := newRegistry().Open(backendConfig(cfg, log))
	if err != nil {
		return nil, err
	}
	if !cfg.Demo && cfg.TruckMate.BaseURL == "" {
		log.Warn().Msg("truckmate.base_url is not set; every list will fail until it is configured (or run with --demo)")
	}
	return b, nil
}

// lookupEntity resolves an entity argument.
func lookupEntity(name string) (model.Entity, error) {
	e, ok := model.LookupEntity(strings.ToLower(name))
	if !ok {
		return model.Entity{}, fmt.Errorf("unknown entity %q (available: %s)", name, strings.Join(model.EntityNames(), ", "))
	}
	return e, nil
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
