// Package connector defines the transport-agnostic boundary between the protocol engine and
// whatever carries raw frames between a mobile central and the intercom peripheral. BLE is the
// only transport in scope (spec.md §1), but the interface itself stays carrier-agnostic so tests
// can substitute an in-process loopback without touching pkg/central.
package connector

import (
	"context"
	"time"
)

// BufferSize is the capacity of a connection's inbound frame queue; a frame that arrives while the
// queue is full is dropped.
const BufferSize = 5

// MaxFrameBytes caps the byte-length of a single frame connectors must support end to end.
const MaxFrameBytes = 512

// Connector sends and receives raw frame bytes between a mobile central and one intercom.
//
// A Connector represents a single, already-established logical connection: scanning and GATT
// discovery happen before a Connector exists (see pkg/connector/ble.NewConnection), mirroring the
// teacher's own split between address resolution and the wire.
type Connector interface {
	// Receive returns a read-only channel of frames emitted by the peer. Implementations must be
	// thread safe.
	Receive() <-chan []byte

	// Send transmits a frame to the peer. Depending on the error, the peer may already have acted
	// on the message — for example, a context deadline exceeded while waiting for a GATT write
	// acknowledgement doesn't tell the caller whether the door already unlocked. Implementations
	// must be thread safe.
	Send(ctx context.Context, frame []byte) error

	// Close terminates the connection. Repeated calls must be idempotent.
	Close()

	// RetryInterval is the recommended wait between transmission attempts.
	RetryInterval() time.Duration
}

// ChallengeSource exposes the peripheral's Challenge-characteristic notifications. A central must
// read N_c from this channel before it can build an Auth frame — spec.md's GATT profile (§6)
// keeps challenge delivery on its own characteristic, separate from the Auth/Response pair a
// Connector carries.
type ChallengeSource interface {
	// Challenge returns a channel of raw nonce values as the peripheral (re)issues them.
	Challenge() <-chan []byte
}

