package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/doorkeeper/intercom/pkg/connector/ble"
)

func newScanCmd() *cobra.Command {
	var doorID string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan for a door's advertised BLE beacon without connecting",
		Long: `Scans for the iBeacon/local-name advertisement a door advertises
(pkg/connector/ble.LocalName(door-id)) and reports it without performing the GATT connect and
authentication handshake 'unlock' does. Useful for confirming a door is in range and advertising
before attempting a full unlock.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if doorID == "" {
				return fmt.Errorf("scan: -door-id is required")
			}
			adapter, err := newAdapter()
			if err != nil {
				return err
			}
			defer adapter.Close()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			beacon, err := ble.ScanIntercomBeacon(ctx, doorID, adapter)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "address=%s local_name=%s rssi=%d connectable=%t\n",
				beacon.Address, beacon.LocalName, beacon.RSSI, beacon.Connectable)
			return nil
		},
	}
	cmd.Flags().StringVar(&doorID, "door-id", "", "door identifier to scan for")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to scan before giving up")
	return cmd
}
