package ble

import (
	"sync"
	"time"

	"github.com/doorkeeper/intercom/internal/log"
	"github.com/doorkeeper/intercom/pkg/connector"
)

// PeripheralConnection reassembles length-prefixed Auth-characteristic writes from one connected
// central into complete frames, and chunks outbound Response frames the same way — the mirror
// image of Connection's rx/flush/Send, with the writer/reader roles swapped since this end is the
// GATT server rather than the GATT client.
type PeripheralConnection struct {
	conn PeripheralConn

	inbox chan []byte

	blockLength int
	inputBuffer []byte
	lastRx      time.Time
	lock        sync.Mutex
}

// NewPeripheralConnection wraps conn, subscribing to its Auth-characteristic writes.
func NewPeripheralConnection(conn PeripheralConn) *PeripheralConnection {
	blockLength := conn.MTU()
	if blockLength <= 0 {
		blockLength = defaultMTU - 3
	}
	p := &PeripheralConnection{
		conn:        conn,
		inbox:       make(chan []byte, connector.BufferSize),
		blockLength: blockLength,
	}
	conn.OnAuthWrite(p.rx)
	return p
}

// Receive returns the channel of reassembled Auth-characteristic frames.
func (p *PeripheralConnection) Receive() <-chan []byte {
	return p.inbox
}

// SendResponse chunks buffer behind a 2-byte big-endian length prefix and writes it to the
// Response characteristic as a sequence of notifications, the same framing Connection.Send uses
// on the central side.
func (p *PeripheralConnection) SendResponse(buffer []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	var out []byte
	log.Debug("TX: %d bytes", len(buffer))
	out = append(out, uint8(len(buffer)>>8), uint8(len(buffer)))
	out = append(out, buffer...)
	blockLength := p.blockLength
	for len(out) > 0 {
		n := blockLength
		if n > len(out) {
			n = len(out)
		}
		if err := p.conn.NotifyResponse(out[:n]); err != nil {
			return err
		}
		out = out[n:]
	}
	return nil
}

// SendChallenge notifies nonce on the Challenge characteristic, unframed (spec.md §6: the
// Challenge characteristic carries the raw nonce, not a length-prefixed frame).
func (p *PeripheralConnection) SendChallenge(nonce []byte) error {
	return p.conn.NotifyChallenge(nonce)
}

// Close tears down the underlying GATT connection.
func (p *PeripheralConnection) Close() {
	p.conn.Close()
}

func (p *PeripheralConnection) rx(buf []byte) {
	if time.Since(p.lastRx) > rxTimeout {
		p.inputBuffer = []byte{}
	}
	p.lastRx = time.Now()
	p.inputBuffer = append(p.inputBuffer, buf...)
	for p.flush() {
	}
}

func (p *PeripheralConnection) flush() bool {
	if len(p.inputBuffer) >= 2 {
		msgLength := 256*int(p.inputBuffer[0]) + int(p.inputBuffer[1])
		if msgLength > maxBLEMessageSize {
			p.inputBuffer = []byte{}
			return false
		}
		if len(p.inputBuffer) >= 2+msgLength {
			frame := p.inputBuffer[2 : 2+msgLength]
			log.Debug("RX: %d bytes", len(frame))
			p.inputBuffer = p.inputBuffer[2+msgLength:]
			select {
			case p.inbox <- frame:
			default:
				return false
			}
			return true
		}
	}
	return false
}
