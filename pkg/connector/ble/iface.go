// Package ble wires the intercom's GATT characteristics atop a small, OS-independent adapter
// contract. The contract itself — Adapter/Device/Service/Writer — is kept verbatim from the
// teacher's BLE transport layer; only the concrete OS-specific adapters (CoreBluetooth, BlueZ,
// WinRT) are out of scope here, since spec.md §1 excludes the BLE radio stack. An integrator
// supplies their own Adapter implementation; this package only needs the interface.
package ble

import (
	"context"
	"io"
)

// ScanResult describes one advertising peripheral observed during a scan.
type ScanResult struct {
	Address     string
	LocalName   string
	RSSI        int16
	Connectable bool
}

// Adapter is the minimal radio-level contract this package depends on. A real implementation
// wraps a platform Bluetooth stack; pkg/central's tests exercise a go.uber.org/mock mock of the
// higher-level central.Transport interface instead, since pkg/central never touches Adapter
// directly.
type Adapter interface {
	ScanBeacon(ctx context.Context, name string) (*ScanResult, error)
	Connect(ctx context.Context, beacon *ScanResult) (Device, error)
	Close() error
}

// Device is a connected GATT peer.
type Device interface {
	Service(ctx context.Context, uuid string) (Service, error)
	Close() error
}

// Service is one GATT service on a Device.
type Service interface {
	// Rx subscribes to notifications on the characteristic identified by uuid.
	Rx(uuid string, callback func(buf []byte)) error
	// Tx returns a Writer for the characteristic identified by uuid.
	Tx(uuid string) (Writer, error)
}

// Writer sends bytes to a GATT characteristic and reports the negotiated MTU.
type Writer interface {
	io.Writer
	MTU(rxMTU int) (txMTU int, err error)
}

// PeripheralAdapter is the server-role counterpart of Adapter: the minimal radio-level contract a
// GATT-server implementation must satisfy to advertise the intercom service and accept central
// connections. Like Adapter, it has no concrete implementation in this repo — the BLE radio stack
// is out of scope (spec.md §1) — but the interface lets cmd/intercom-peripheral's connection-accept
// loop be written, and tested against a fake, independent of any platform's GATT server library.
type PeripheralAdapter interface {
	// Advertise begins iBeacon + GATT advertising under localName and blocks until ctx is done,
	// invoking onConnect once per central that completes a GATT connection.
	Advertise(ctx context.Context, localName string, onConnect func(PeripheralConn)) error
	Close() error
}

// PeripheralConn is one central connected to the intercom's GATT service, from the peripheral's
// point of view.
type PeripheralConn interface {
	// OnAuthWrite registers the callback invoked with each write to AuthCharUUID.
	OnAuthWrite(callback func(buf []byte))
	// NotifyResponse writes buf as a notification on ResponseCharUUID.
	NotifyResponse(buf []byte) error
	// NotifyChallenge writes nonce as a notification on ChallengeCharUUID.
	NotifyChallenge(nonce []byte) error
	// MTU returns the negotiated outbound MTU, or 0 if unknown.
	MTU() int
	Close()
}
