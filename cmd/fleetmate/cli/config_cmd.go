package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartgistics/fleetmate-sub000/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage FleetMate configuration",
		Long:  "Initialize a default configuration file or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default fleetmate.yaml configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeConfigFile(cmd.OutOrStdout(), path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")
	cmd.Flags().StringVarP(&path, "output", "o", "fleetmate.yaml", "Path of the file to create")

	return cmd
}

// writeConfigFile writes the default configuration to path. An existing
// file is only replaced with force.
func writeConfigFile(w io.Writer, path string, force bool) error {
	if _, err := os.Stat(path); err == nil {
		if !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	if err := config.WriteDefaultConfig(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(w, "Wrote %s.\nNext: set truckmate.base_url and truckmate.api_key (or FLEETMATE_TRUCKMATE_API_KEY) and run 'fleetmate serve'.\n", path)
	return nil
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration with secrets masked",
		Long:  "Print the configuration after merging the config file, .env and FLEETMATE_* variables. Secrets are masked.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return showConfig(cmd.OutOrStdout(), cfg, viper.ConfigFileUsed())
		},
	}
}

func showConfig(w io.Writer, cfg *config.Config, source string) error {
	if source == "" {
		source = "(no file, defaults and environment only)"
	}
	out, err := config.Marshal(cfg.Redacted())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "# source: %s\n%s", source, out)
	return err
}
