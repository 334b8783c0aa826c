package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartgistics/fleetmate-sub000/internal/model"
	"github.com/smartgistics/fleetmate-sub000/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		baseURL    string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "openapi [entity...]",
		Short: "Generate the OpenAPI specification",
		Long: `Generate the OpenAPI 3.1 specification of the FleetMate API: list, detail and
create operations for every entity, or only for the entities given.`,
		Example: `  fleetmate openapi                          # every entity
  fleetmate openapi orders trips             # selected entities
  fleetmate openapi --base-url https://fm.example.com -o spec.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpenAPI(args, baseURL, outputFile)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL advertised in the document")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write spec to file instead of stdout")

	return cmd
}

func runOpenAPI(names []string, baseURL, outputFile string) error {
	entities := model.Entities()
	if len(names) > 0 {
		entities = entities[:0:0]
		for _, name := range names {
			e, err := lookupEntity(name)
			if err != nil {
				return err
			}
			entities = append(entities, e)
		}
	}

	auth := false
	if cfg, err := loadConfig(); err == nil {
		auth = cfg.Auth.Enabled()
	}

	spec := openapi.Generate(entities, openapi.Options{
		BaseURL: baseURL,
		Version: versionString(),
		Auth:    auth,
	})
	jsonBytes, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}

	if outputFile == "" {
		fmt.Println(string(jsonBytes))
		return nil
	}
	if err := os.WriteFile(outputFile, append(jsonBytes, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputFile, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s (%d entities)\n", outputFile, len(entities))
	return nil
}
