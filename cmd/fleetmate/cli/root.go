package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartgistics/fleetmate-sub000/internal/config"
)

var (
	cfgFile    string
	envFile    string
	demo       bool
	appVersion string // set in Execute, reported by serve, mcp and the OpenAPI document

	// initErr holds a config file problem found by initConfig; commands
	// that need configuration report it through loadConfig.
	initErr error
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleetmate",
		Short: "Paged, sorted and filtered TruckMate lists for the transportation dashboard",
		Long: `FleetMate serves TruckMate customers, carriers, orders, trips and shipments as
server-paginated lists: sorting, filtering and paging happen on the TruckMate side,
and every list keeps only the newest response when requests overlap.

It exposes the lists as a REST API with live websocket sessions, as MCP tools for
AI agents, and as a terminal browser.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./fleetmate.yaml)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with FLEETMATE_* variables")
	cmd.PersistentFlags().BoolVar(&demo, "demo", false, "serve the built-in mock dataset instead of TruckMate")
	viper.BindPFlag("demo", cmd.PersistentFlags().Lookup("demo"))

	cobra.OnInitialize(initConfig)

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newBrowseCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	initErr = config.Setup(viper.GetViper(), cfgFile, envFile)
}
