package crypto

// Why not crypto/ecdh?
//
// crypto/ecdh's P256 implementation rejects non-canonically-encoded points and hides the raw
// shared x-coordinate behind a KDF the protocol doesn't want (it's not safe to use with an HSM that
// must never divulge the scalar to the host anyway). We stay on crypto/elliptic, matching the
// teacher's own rationale for doing the same.

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"os"
)

// SharedSecretSize is the length of the raw ECDH shared secret (the P-256 shared x-coordinate).
const SharedSecretSize = 32

// PublicKeySize is the length of an uncompressed P-256 public key (0x04 || X || Y).
const PublicKeySize = 65

// ECDHPrivateKey is a long-lived local P-256 identity key. Exchange never returns the private
// scalar, so an implementation backed by an HSM could satisfy this interface without divulging
// long-term secrets to the host.
type ECDHPrivateKey interface {
	// Exchange computes the raw ECDH shared secret with a peer's uncompressed public key.
	Exchange(peerPublicBytes []byte) ([]byte, error)
	// PublicBytes returns this key's uncompressed public key (65 bytes, leading 0x04).
	PublicBytes() []byte
}

// P256Key implements ECDHPrivateKey using crypto/ecdsa's P-256 implementation.
type P256Key struct {
	*ecdsa.PrivateKey
}

// GenerateP256Key creates a new random P-256 identity key.
func GenerateP256Key(rng io.Reader) (*P256Key, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rng)
	if err != nil {
		return nil, err
	}
	return &P256Key{key}, nil
}

// Exchange implements ECDHPrivateKey.
func (k *P256Key) Exchange(peerPublicBytes []byte) ([]byte, error) {
	x, y := elliptic.Unmarshal(elliptic.P256(), peerPublicBytes)
	if x == nil {
		return nil, ErrInvalidPoint
	}
	sharedX, sharedY := elliptic.P256().ScalarMult(x, y, k.D.Bytes())
	if sharedX.Sign() == 0 && sharedY.Sign() == 0 {
		return nil, ErrInvalidPrivateKey
	}
	secret := make([]byte, SharedSecretSize)
	sharedX.FillBytes(secret)
	return secret, nil
}

// PublicBytes implements ECDHPrivateKey.
func (k *P256Key) PublicBytes() []byte {
	return elliptic.Marshal(elliptic.P256(), k.PublicKey.X, k.PublicKey.Y)
}

// ValidPublicKey reports whether b is a well-formed, on-curve uncompressed P-256 public key.
// Per spec, PubM must be rejected before any expensive crypto if the leading byte isn't the
// uncompressed-point indicator 0x04.
func ValidPublicKey(b []byte) bool {
	if len(b) != PublicKeySize || b[0] != 0x04 {
		return false
	}
	x, y := elliptic.Unmarshal(elliptic.P256(), b)
	return x != nil && y != nil
}

// LoadP256PrivateKey reads a PEM-encoded EC private key (SEC1 or PKCS8) from filename.
func LoadP256PrivateKey(filename string) (*P256Key, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("crypto: expected PEM encoding")
	}

	var ecKey *ecdsa.PrivateKey
	switch block.Type {
	case "EC PRIVATE KEY":
		ecKey, err = x509.ParseECPrivateKey(block.Bytes)
	default:
		var parsed interface{}
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err == nil {
			var ok bool
			ecKey, ok = parsed.(*ecdsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("crypto: only EC keys are supported")
			}
		}
	}
	if err != nil {
		return nil, err
	}
	if ecKey.Curve != elliptic.P256() {
		return nil, fmt.Errorf("crypto: only NIST P-256 keys are supported")
	}
	return &P256Key{ecKey}, nil
}

// SaveP256PrivateKey writes key to filename as a SEC1 PEM file.
func SaveP256PrivateKey(key *P256Key, filename string) error {
	der, err := x509.MarshalECPrivateKey(key.PrivateKey)
	if err != nil {
		return err
	}
	block := pem.Block{Type: "EC PRIVATE KEY", Bytes: der}
	return os.WriteFile(filename, pem.EncodeToMemory(&block), 0600)
}

// UnmarshalP256PrivateKey reconstructs a private key from a raw 32-byte scalar.
func UnmarshalP256PrivateKey(scalar []byte) (*P256Key, error) {
	if len(scalar) != 32 {
		return nil, ErrInvalidPrivateKey
	}
	var d big.Int
	d.SetBytes(scalar)
	if d.Sign() == 0 || d.Cmp(elliptic.P256().Params().N) >= 0 {
		return nil, ErrInvalidPrivateKey
	}
	key := &P256Key{&ecdsa.PrivateKey{PublicKey: ecdsa.PublicKey{Curve: elliptic.P256()}}}
	key.D = &d
	key.PublicKey.X, key.PublicKey.Y = elliptic.P256().ScalarBaseMult(scalar)
	return key, nil
}

// UnmarshalP256PublicKey parses a raw uncompressed P-256 point (0x04 || X || Y) into an
// *ecdsa.PublicKey, for verifying signatures under an authority key shipped as raw bytes (spec's
// Variant A signer public key) rather than a PEM file.
func UnmarshalP256PublicKey(b []byte) (*ecdsa.PublicKey, error) {
	if !ValidPublicKey(b) {
		return nil, ErrInvalidPoint
	}
	x, y := elliptic.Unmarshal(elliptic.P256(), b)
	return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
}

// RandomBytes returns n cryptographically random bytes from the OS CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
