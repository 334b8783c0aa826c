package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartgistics/fleetmate-sub000/internal/logger"
	"github.com/smartgistics/fleetmate-sub000/internal/server"
)

const banner = `
 ___ _           _   __  __       _
| __| |___ ___| |_|  \/  |__ _| |_ ___
| _|| / -_) -_)  _| |\/| / _' |  _/ -_)
|_| |_\___\___|\__|_|  |_\__,_|\__\___|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the FleetMate API server",
		Long: `Start the HTTP server that serves every TruckMate entity as a paged list,
with detail and create endpoints, live websocket list sessions and an OpenAPI document.`,
		Example: `  fleetmate serve                 # against the configured TruckMate API
  fleetmate serve --demo -p 9090  # mock dataset on port 9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	b, err := openBackend(cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	srvCfg := server.ConfigFrom(cfg, versionString())
	srv := server.New(srvCfg, b, logger.Named(log, "http"))

	host := cfg.Server.Host
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	fmt.Print(banner)
	fmt.Println()
	fmt.Printf("→ FleetMate %s\n", versionString())
	fmt.Printf("→ Backend:    %s\n", b.Name())
	fmt.Printf("→ Listening on http://%s:%d/api/v1\n", host, cfg.Server.Port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", host, cfg.Server.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", host, cfg.Server.Port)
	if cfg.Auth.Enabled() {
		fmt.Println("→ Auth:       bearer tokens required on /api/v1")
	}
	fmt.Println()

	return srv.ListenAndServe()
}
