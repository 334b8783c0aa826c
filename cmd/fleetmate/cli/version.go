package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

type buildInfo struct {
	Version string   `json:"version"`
	Commit  string   `json:"commit"`
	Built   string   `json:"built"`
	Go      string   `json:"go_version"`
	OS      string   `json:"os"`
	Arch    string   `json:"arch"`
	Drivers []string `json:"drivers"`
}

func currentBuild(commit, date string) buildInfo {
	return buildInfo{
		Version: versionString(),
		Commit:  commit,
		Built:   date,
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		Drivers: newRegistry().Drivers(),
	}
}

func (b buildInfo) write(w io.Writer, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	}
	_, err := fmt.Fprintf(w, "fleetmate %s (%s, built %s)\n  %s %s/%s, backends: %s\n",
		b.Version, b.Commit, b.Built, b.Go, b.OS, b.Arch, strings.Join(b.Drivers, ", "))
	return err
}

func newVersionCmd(_, commit, date string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return currentBuild(commit, date).write(cmd.OutOrStdout(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	return cmd
}
