package main

import (
	"fmt"

	"github.com/doorkeeper/intercom/pkg/connector/ble"
)

// newAdapter returns the concrete ble.Adapter this CLI scans and connects through. No platform
// Bluetooth stack ships in this repo — the BLE radio layer is explicitly out of scope — so the
// default build has nothing to return; a deployment compiles in a real central-role adapter
// (CoreBluetooth, BlueZ, WinRT) and swaps this function out, mirroring
// cmd/intercom-peripheral/adapter.go on the other side of the link.
func newAdapter() (ble.Adapter, error) {
	return nil, fmt.Errorf("intercom-unlock: no BLE adapter compiled in; provide one via pkg/connector/ble.Adapter")
}
