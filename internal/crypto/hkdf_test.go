package crypto

import "testing"
import "bytes"

func TestDeriveSessionKeysDeterministic(t *testing.T) {
	secret := bytes.Repeat([]byte{0x11}, SharedSecretSize)
	nonceC := []byte("nonce-c-fixture-")

	m2i1, i2m1, err := DeriveSessionKeys(secret, nonceC)
	if err != nil {
		t.Fatal(err)
	}
	m2i2, i2m2, err := DeriveSessionKeys(secret, nonceC)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(m2i1, m2i2) || !bytes.Equal(i2m1, i2m2) {
		t.Fatal("expected deterministic derivation for identical inputs")
	}
	if bytes.Equal(m2i1, i2m1) {
		t.Fatal("directional keys must differ")
	}
	if len(m2i1) != SessionKeySize || len(i2m1) != SessionKeySize {
		t.Fatalf("expected %d byte keys", SessionKeySize)
	}
}

func TestDeriveSessionKeysNonceBinding(t *testing.T) {
	secret := bytes.Repeat([]byte{0x22}, SharedSecretSize)

	m2iA, _, err := DeriveSessionKeys(secret, []byte("nonce-c-aaaaaaaa"))
	if err != nil {
		t.Fatal(err)
	}
	m2iB, _, err := DeriveSessionKeys(secret, []byte("nonce-c-bbbbbbbb"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(m2iA, m2iB) {
		t.Fatal("expected different session nonces to yield different keys")
	}
}

func TestDiversifyKeyLength(t *testing.T) {
	master := bytes.Repeat([]byte{0x33}, 32)
	deviceID := []byte("device-0001")

	key, err := DiversifyKey(master, deviceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(key) != 16 {
		t.Fatalf("expected 16 byte diversified key, got %d", len(key))
	}

	other, err := DiversifyKey(master, []byte("device-0002"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(key, other) {
		t.Fatal("expected distinct devices to diversify to distinct keys")
	}
}
