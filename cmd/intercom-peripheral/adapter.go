package main

import (
	"fmt"

	"github.com/doorkeeper/intercom/pkg/connector/ble"
)

// newPeripheralAdapter returns the concrete ble.PeripheralAdapter this daemon advertises through.
// No platform GATT-server backend ships in this repo — the BLE radio stack is explicitly out of
// scope — so the default build has nothing to return. A deployment compiles in a real adapter
// (BlueZ, CoreBluetooth, a BLE MCU's SoftDevice) and swaps this function out, the same way the
// teacher's cmd/tesla-control left its OS-specific Adapter construction to a build-tagged file.
func newPeripheralAdapter() (ble.PeripheralAdapter, error) {
	return nil, fmt.Errorf("intercom-peripheral: no BLE peripheral adapter compiled in; provide one via pkg/connector/ble.PeripheralAdapter")
}
