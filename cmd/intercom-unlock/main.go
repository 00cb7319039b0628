// Command intercom-unlock is the mobile side of the protocol: it scans for a door's advertised
// beacon and drives one of pkg/central.Central's three variant handshakes to completion.
// Modeled on the teacher's examples/unlock, generalized from "authenticate with Tesla's account
// servers, fetch a vehicle, then authenticate directly to the car" into a single local BLE flow,
// and restructured onto cobra's subcommand tree (scan, unlock) per this tool's broader mandate.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "intercom-unlock",
		Short: "Scan for and unlock a doorkeeper intercom over BLE",
	}
	root.AddCommand(
		newScanCmd(),
		newUnlockCmd(),
		newVerifyAttestationCmd(),
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
