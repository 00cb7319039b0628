package ble

import (
	"testing"
)

type fakePeripheralConn struct {
	onWrite   func([]byte)
	responses [][]byte
	challenge [][]byte
	closed    bool
}

func (f *fakePeripheralConn) OnAuthWrite(callback func(buf []byte)) { f.onWrite = callback }
func (f *fakePeripheralConn) NotifyResponse(buf []byte) error {
	f.responses = append(f.responses, append([]byte{}, buf...))
	return nil
}
func (f *fakePeripheralConn) NotifyChallenge(nonce []byte) error {
	f.challenge = append(f.challenge, append([]byte{}, nonce...))
	return nil
}
func (f *fakePeripheralConn) MTU() int { return 20 }
func (f *fakePeripheralConn) Close()   { f.closed = true }

func TestPeripheralConnectionReassemblesChunkedFrame(t *testing.T) {
	fake := &fakePeripheralConn{}
	p := NewPeripheralConnection(fake)

	frame := make([]byte, 50)
	for i := range frame {
		frame[i] = byte(i)
	}
	chunked := append([]byte{0, byte(len(frame))}, frame...)
	for len(chunked) > 0 {
		n := 10
		if n > len(chunked) {
			n = len(chunked)
		}
		fake.onWrite(chunked[:n])
		chunked = chunked[n:]
	}

	select {
	case got := <-p.Receive():
		if string(got) != string(frame) {
			t.Fatalf("reassembled frame mismatch: got %v want %v", got, frame)
		}
	default:
		t.Fatal("expected a reassembled frame on Receive()")
	}
}

func TestPeripheralConnectionSendResponseChunks(t *testing.T) {
	fake := &fakePeripheralConn{}
	p := NewPeripheralConnection(fake)

	payload := make([]byte, 45)
	if err := p.SendResponse(payload); err != nil {
		t.Fatalf("SendResponse: %v", err)
	}
	var reassembled []byte
	for _, chunk := range fake.responses {
		reassembled = append(reassembled, chunk...)
	}
	if len(reassembled) < 2 {
		t.Fatalf("expected at least a length prefix, got %d bytes", len(reassembled))
	}
	msgLength := 256*int(reassembled[0]) + int(reassembled[1])
	if msgLength != len(payload) {
		t.Fatalf("length prefix mismatch: got %d want %d", msgLength, len(payload))
	}
}

func TestPeripheralConnectionSendChallenge(t *testing.T) {
	fake := &fakePeripheralConn{}
	p := NewPeripheralConnection(fake)

	nonce := []byte{1, 2, 3, 4}
	if err := p.SendChallenge(nonce); err != nil {
		t.Fatalf("SendChallenge: %v", err)
	}
	if len(fake.challenge) != 1 || string(fake.challenge[0]) != string(nonce) {
		t.Fatalf("expected nonce to be notified verbatim, got %v", fake.challenge)
	}
}

func TestPeripheralConnectionClose(t *testing.T) {
	fake := &fakePeripheralConn{}
	p := NewPeripheralConnection(fake)
	p.Close()
	if !fake.closed {
		t.Fatal("expected underlying connection to be closed")
	}
}
