package frame

import (
	"bytes"
	"testing"
)

func validPubM() []byte {
	pub := make([]byte, pubMSize)
	pub[0] = 0x04
	for i := 1; i < len(pub); i++ {
		pub[i] = byte(i)
	}
	return pub
}

func TestAuthFrameRoundTrip(t *testing.T) {
	f := AuthFrame{
		Version:    0x01,
		PubM:       validPubM(),
		NonceM:     bytes.Repeat([]byte{0x10}, nonceMSize),
		Ciphertext: bytes.Repeat([]byte{0xAB}, 20),
		Tag:        bytes.Repeat([]byte{0xCD}, gcmTagSize),
	}
	encoded, err := EncodeAuthFrame(f)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeAuthFrame(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Version != f.Version || !bytes.Equal(decoded.PubM, f.PubM) ||
		!bytes.Equal(decoded.NonceM, f.NonceM) || !bytes.Equal(decoded.Ciphertext, f.Ciphertext) ||
		!bytes.Equal(decoded.Tag, f.Tag) {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, f)
	}
}

func TestAuthFrameRejectsBadPubMPrefix(t *testing.T) {
	pub := validPubM()
	pub[0] = 0x02
	f := AuthFrame{
		Version:    0x01,
		PubM:       pub,
		NonceM:     bytes.Repeat([]byte{0x10}, nonceMSize),
		Ciphertext: bytes.Repeat([]byte{0xAB}, 20),
		Tag:        bytes.Repeat([]byte{0xCD}, gcmTagSize),
	}
	encoded, err := EncodeAuthFrame(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeAuthFrame(encoded); err == nil {
		t.Fatal("expected decode to reject non-uncompressed PubM")
	}
}

func TestAuthFrameRejectsOutOfRangeLength(t *testing.T) {
	if _, err := DecodeAuthFrame(bytes.Repeat([]byte{0x00}, 10)); err == nil {
		t.Fatal("expected decode to reject undersized frame")
	}
	if _, err := DecodeAuthFrame(bytes.Repeat([]byte{0x00}, authFrameMaxSize+1)); err == nil {
		t.Fatal("expected decode to reject oversized frame")
	}
}

func TestResponseFrameRoundTrip(t *testing.T) {
	f := ResponseFrame{
		NonceI:     bytes.Repeat([]byte{0x20}, nonceISize),
		Ciphertext: bytes.Repeat([]byte{0x30}, 10),
		Tag:        bytes.Repeat([]byte{0x40}, gcmTagSize),
	}
	encoded, err := EncodeResponseFrame(f, 0)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeResponseFrame(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded.NonceI, f.NonceI) || !bytes.Equal(decoded.Ciphertext, f.Ciphertext) ||
		!bytes.Equal(decoded.Tag, f.Tag) {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, f)
	}
}

func TestEncodeResponseFrameRejectsMtuExceeded(t *testing.T) {
	f := ResponseFrame{
		NonceI:     bytes.Repeat([]byte{0x20}, nonceISize),
		Ciphertext: bytes.Repeat([]byte{0x30}, 10),
		Tag:        bytes.Repeat([]byte{0x40}, gcmTagSize),
	}
	if _, err := EncodeResponseFrame(f, 20); err == nil {
		t.Fatal("expected MtuExceeded for a tiny negotiated MTU")
	}
}

func TestResponseBodyRoundTrip(t *testing.T) {
	b := ResponseBody{Status: 0x00, DoorState: 0x02, Extended: []byte("ok")}
	encoded := EncodeResponseBody(b)
	decoded, err := DecodeResponseBody(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Status != b.Status || decoded.DoorState != b.DoorState || !bytes.Equal(decoded.Extended, b.Extended) {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, b)
	}
}
