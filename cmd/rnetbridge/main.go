// RNet Bridge - Russound RNet to MQTT gateway.
//
// rnetbridge talks to a Russound multi-zone audio controller over its RNet
// serial protocol (directly or through a TCP serial server), publishes zone
// state to MQTT and accepts zone commands from MQTT and HTTP.
//
// See 'rnetbridge --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rnetbridge",
		Short: "Russound RNet to MQTT bridge",
		Long: `Bridges a Russound controller's RNet bus to MQTT.

The serve command runs the bridge daemon. The send command writes a single
command to the bus and exits, which is useful for wiring checks.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: `  # Run the bridge
  rnetbridge serve --config /etc/rnetbridge/config.yaml

  # Turn on zone 4 of controller 1 over a TCP serial server
  rnetbridge send --connection /tcp/192.168.1.50:9999 --controller 1 --zone 4 --command power --value 1`,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newServeCmd(), newSendCmd())
	return root
}
