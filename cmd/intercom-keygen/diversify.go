package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doorkeeper/intercom/internal/crypto"
)

func newDiversifyCmd() *cobra.Command {
	var masterKeyFile, deviceIDHex string
	cmd := &cobra.Command{
		Use:   "diversify",
		Short: "Derive a per-device diversified key from a site master key",
		Long: `Derives DK = diversify_key(master, device_uid) for one device UID, matching
spec.md §4.2/§4.4's key-diversification scheme. Use this to pre-provision a peripheral's
pkg/protocol.StaticKeyProvider when the master key itself should never reach the reader.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if masterKeyFile == "" || deviceIDHex == "" {
				return fmt.Errorf("diversify: -master-key-file and -device-id are required")
			}
			master, err := os.ReadFile(masterKeyFile)
			if err != nil {
				return fmt.Errorf("reading master key: %w", err)
			}
			deviceID, err := hex.DecodeString(deviceIDHex)
			if err != nil {
				return fmt.Errorf("decoding -device-id: %w", err)
			}
			deviceKey, err := crypto.DiversifyKey(master, deviceID)
			if err != nil {
				return fmt.Errorf("diversifying key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%x\n", deviceKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&masterKeyFile, "master-key-file", "", "file containing the site master key")
	cmd.Flags().StringVar(&deviceIDHex, "device-id", "", "hex-encoded device UID to diversify for")
	return cmd
}
