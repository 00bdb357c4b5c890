// Command bridge-probe loads the syncbridge configuration, checks the health
// path of every configured upstream concurrently and prints one line per
// upstream with the client statistics. It exits non-zero when any upstream
// is unhealthy.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // set during build

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &probeOptions{}

	cmd := &cobra.Command{
		Use:   "bridge-probe",
		Short: "Probe the health of every configured syncbridge upstream",
		Example: `  # Probe using ./config.yaml and SYNCBRIDGE_* overrides
  bridge-probe

  # Probe with an explicit file and JSON output
  bridge-probe -c /etc/syncbridge/config.yaml -o json`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProbe(cmd.Context(), opts, stdout, stderr)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to the YAML config file (default ./config.yaml if present)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", outputTable, "Output format: table or json")
	cmd.Flags().DurationVarP(&opts.Timeout, "timeout", "t", defaultProbeTimeout, "Overall deadline for all probes")

	return cmd
}
