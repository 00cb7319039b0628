package ble

import (
	"context"
	"crypto/sha1"
	"fmt"
	"sync"
	"time"

	"github.com/doorkeeper/intercom/internal/log"
	"github.com/doorkeeper/intercom/pkg/connector"
	"github.com/doorkeeper/intercom/pkg/protocol"
)

var (
	// ErrMaxConnectionsExceeded mirrors the peripheral's own errorcode.ErrBusy at the transport
	// layer: the advertised beacon is marked non-connectable while a session is already active
	// (spec §4.3's "exactly one live session").
	ErrMaxConnectionsExceeded = protocol.NewError("intercom is already connected to another central", false, false)
)

const (
	defaultMTU        = 23
	maxBLEMTUSize     = 512 + 3
	maxBLEMessageSize = connector.MaxFrameBytes

	rxTimeout  = time.Second     // gap between chunks of the same frame before the buffer resets
	maxLatency = 4 * time.Second // longest allowed delay before a nonce is considered stale in transit
)

const (
	// IntercomServiceUUID is the GATT service exposing the Challenge/Auth/Response characteristics.
	IntercomServiceUUID = "0000a100-7562-6c65-2d64-6f6f726b6579"
	// AuthCharUUID is the central-write characteristic carrying Auth/AuthRequest/Credential frames.
	AuthCharUUID = "0000a101-7562-6c65-2d64-6f6f726b6579"
	// ResponseCharUUID is the notify characteristic carrying Response/AuthChallenge/Credential-
	// response frames back to the central.
	ResponseCharUUID = "0000a102-7562-6c65-2d64-6f6f726b6579"
	// ChallengeCharUUID notifies the raw session nonce N_c, independent of the framed Auth/Response
	// pair, per spec.md §6's GATT profile.
	ChallengeCharUUID = "0000a103-7562-6c65-2d64-6f6f726b6579"
)

// LocalName derives the BLE advertising local name for doorID, so a central can filter scan
// results without connecting to every nearby peripheral.
func LocalName(doorID string) string {
	digest := sha1.Sum([]byte(doorID))
	return fmt.Sprintf("DK-%02x", digest[:8])
}

// Connection implements connector.Connector over a GATT link established via an Adapter.
type Connection struct {
	doorID      string
	inbox       chan []byte
	challengeCh chan []byte
	device      Device
	writer      Writer

	blockLength int
	inputBuffer []byte
	lastRx      time.Time
	lock        sync.Mutex
}

// Challenge implements connector.ChallengeSource.
func (c *Connection) Challenge() <-chan []byte {
	return c.challengeCh
}

// ScanIntercomBeacon scans for the peripheral advertising doorID's LocalName.
func ScanIntercomBeacon(ctx context.Context, doorID string, adapter Adapter) (*ScanResult, error) {
	return adapter.ScanBeacon(ctx, LocalName(doorID))
}

// NewConnection scans for and connects to the intercom identified by doorID.
func NewConnection(ctx context.Context, doorID string, adapter Adapter) (*Connection, error) {
	beacon, err := adapter.ScanBeacon(ctx, LocalName(doorID))
	if err != nil {
		return nil, err
	}
	return NewConnectionFromBeacon(ctx, doorID, beacon, adapter)
}

// NewConnectionFromBeacon connects to an already-discovered beacon.
func NewConnectionFromBeacon(ctx context.Context, doorID string, beacon *ScanResult, adapter Adapter) (*Connection, error) {
	var lastError error

	if beacon.LocalName != LocalName(doorID) {
		return nil, fmt.Errorf("ble: beacon with unexpected local name: '%s'", beacon.LocalName)
	}
	if !beacon.Connectable {
		return nil, ErrMaxConnectionsExceeded
	}

	for {
		conn, err := tryToConnect(ctx, doorID, beacon, adapter)
		if err == nil {
			return conn, nil
		}
		log.Warning("BLE connection attempt failed: %+v", err)
		if err := ctx.Err(); err != nil {
			if lastError != nil {
				return nil, lastError
			}
			return nil, err
		}
		lastError = err
	}
}

func tryToConnect(ctx context.Context, doorID string, beacon *ScanResult, adapter Adapter) (*Connection, error) {
	device, err := adapter.Connect(ctx, beacon)
	if err != nil {
		return nil, err
	}

	service, err := device.Service(ctx, IntercomServiceUUID)
	if err != nil {
		return nil, err
	}

	writer, err := service.Tx(AuthCharUUID)
	if err != nil {
		return nil, err
	}

	txMtu, err := writer.MTU(maxBLEMTUSize)
	if err != nil {
		txMtu = defaultMTU - 3
	} else {
		txMtu = min(txMtu, maxBLEMessageSize) - 3
	}

	conn := &Connection{
		doorID:      doorID,
		inbox:       make(chan []byte, connector.BufferSize),
		challengeCh: make(chan []byte, connector.BufferSize),
		device:      device,
		writer:      writer,
		blockLength: txMtu,
	}

	if err := service.Rx(ResponseCharUUID, conn.rx); err != nil {
		return nil, err
	}
	if err := service.Rx(ChallengeCharUUID, conn.rxChallenge); err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Connection) rxChallenge(nonce []byte) {
	select {
	case c.challengeCh <- append([]byte{}, nonce...):
	default:
	}
}

// Receive implements connector.Connector.
func (c *Connection) Receive() <-chan []byte {
	return c.inbox
}

// Send implements connector.Connector, chunking buffer to the negotiated MTU behind a 2-byte
// big-endian length prefix — the same scheme the response side decodes in flush().
func (c *Connection) Send(ctx context.Context, buffer []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	var out []byte
	log.Debug("TX: %d bytes", len(buffer))
	out = append(out, uint8(len(buffer)>>8), uint8(len(buffer)))
	out = append(out, buffer...)
	blockLength := c.blockLength
	for len(out) > 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if blockLength > len(out) {
			blockLength = len(out)
		}
		n, err := c.writer.Write(out[:blockLength])
		if err != nil {
			return err
		} else if n != blockLength {
			return fmt.Errorf("ble: failed to write %d bytes", blockLength)
		}
		out = out[blockLength:]
	}
	return nil
}

// Close implements connector.Connector.
func (c *Connection) Close() {
	if err := c.device.Close(); err != nil {
		log.Warning("ble: failed to close device: %s", err)
	}
}

// RetryInterval implements connector.Connector.
func (c *Connection) RetryInterval() time.Duration {
	return time.Second
}

// AllowedLatency is the longest delay pkg/central should tolerate between sending the Auth frame
// and receiving a Response before treating the nonce as likely expired peripheral-side.
func (c *Connection) AllowedLatency() time.Duration {
	return maxLatency
}

func (c *Connection) rx(p []byte) {
	if time.Since(c.lastRx) > rxTimeout {
		c.inputBuffer = []byte{}
	}
	c.lastRx = time.Now()
	c.inputBuffer = append(c.inputBuffer, p...)
	for c.flush() {
	}
}

func (c *Connection) flush() bool {
	if len(c.inputBuffer) >= 2 {
		msgLength := 256*int(c.inputBuffer[0]) + int(c.inputBuffer[1])
		if msgLength > maxBLEMessageSize {
			c.inputBuffer = []byte{}
			return false
		}
		if len(c.inputBuffer) >= 2+msgLength {
			buffer := c.inputBuffer[2 : 2+msgLength]
			log.Debug("RX: %d bytes", len(buffer))
			c.inputBuffer = c.inputBuffer[2+msgLength:]
			select {
			case c.inbox <- buffer:
			default:
				return false
			}
			return true
		}
	}
	return false
}
