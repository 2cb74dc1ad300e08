package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-rnet/internal/bridge"
	"github.com/nerrad567/gray-logic-rnet/internal/rnet"
)

// sendOptions are the flags of the send command.
type sendOptions struct {
	connection string
	controller int
	zone       int
	command    string
	value      *int
	timeout    time.Duration
}

func newSendCmd() *cobra.Command {
	var (
		opts  sendOptions
		value int
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one command to a zone and exit",
		Long: `Connects to the RNet bus, sends a single logical command and disconnects.

Commands: volume, power, source, bass, zone_info, all_on, all_off.
Values are raw protocol bytes (0-127; power is 0 or 1).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("value") {
				opts.value = &value
			}
			frame, err := sendCommand(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", frame)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.connection, "connection", os.Getenv("RNETBRIDGE_RNET_CONNECTION"),
		`serial device or "/tcp/<host>:<port>"`)
	flags.IntVar(&opts.controller, "controller", 1, "controller number (1-based)")
	flags.IntVar(&opts.zone, "zone", 1, "zone number (1-based)")
	flags.StringVar(&opts.command, "command", "", "command name")
	flags.IntVar(&value, "value", 0, "command value")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "connect and send timeout")
	_ = cmd.MarkFlagRequired("command")

	return cmd
}

// sendCommand connects, sends one command and disconnects. It returns the
// frame that was written.
func sendCommand(ctx context.Context, opts sendOptions) (rnet.Frame, error) {
	cmd, err := bridge.ResolveCommand(opts.command, opts.controller, opts.zone, opts.value)
	if err != nil {
		return nil, err
	}
	frame, err := rnet.BuildCommand(cmd.Kind, cmd.Zone, cmd.Value)
	if err != nil {
		return nil, err
	}

	manager, err := rnet.NewManager(rnet.ManagerConfig{
		Connection:     opts.connection,
		ConnectTimeout: opts.timeout,
		WriteTimeout:   opts.timeout,
	}, nil)
	if err != nil {
		return nil, err
	}
	defer manager.Disconnect() //nolint:errcheck // one-shot command

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	manager.Connect(ctx)
	if !manager.IsConnected() {
		return nil, fmt.Errorf("%w: %s", rnet.ErrConnectionFailed, manager.Endpoint())
	}
	if err := manager.SendCommand(ctx, frame); err != nil {
		return nil, err
	}
	return rnet.Frame(frame), nil
}
