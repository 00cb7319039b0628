package protocol

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"os"

	"github.com/doorkeeper/intercom/internal/crypto"
)

// ECDHPrivateKey is re-exported from internal/crypto so callers outside this module's internal
// tree (cmd/*, integrators) can hold an identity key without importing an internal package.
type ECDHPrivateKey = crypto.ECDHPrivateKey

// LoadPrivateKey loads a P-256 EC private key from a PEM file.
func LoadPrivateKey(filename string) (ECDHPrivateKey, error) {
	return crypto.LoadP256PrivateKey(filename)
}

// SavePrivateKey writes skey to filename as a SEC1 PEM file.
func SavePrivateKey(skey ECDHPrivateKey, filename string) error {
	p256, ok := skey.(*crypto.P256Key)
	if !ok {
		return fmt.Errorf("protocol: key is not exportable")
	}
	return crypto.SaveP256PrivateKey(p256, filename)
}

// UnmarshalECDHPrivateKey reconstructs a private key from a raw 32-byte scalar.
func UnmarshalECDHPrivateKey(keyBytes []byte) (ECDHPrivateKey, error) {
	return crypto.UnmarshalP256PrivateKey(keyBytes)
}

// LoadPublicKey loads a P256 EC public key from a file.
//
// The function is flexible, supporting the following formats (note that this list includes
// private key files, for convenience):
//   - PKIX PEM ("BEGIN PUBLIC KEY")
//   - Non-password protected PKCS8 PEM ("BEGIN PRIVATE KEY")
//   - SEC1 ("BEGIN EC PRIVATE KEY")
//   - Binary uncompressed SEC1 curve point (0x04, ..., 65 bytes)
//   - Hex-encoded uncompressed SEC1 curve point (04..., 130 bytes)
func LoadPublicKey(filename string) (*ecdh.PublicKey, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	pemBlock, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	if len(pemBlock) == 65 {
		return ecdh.P256().NewPublicKey(pemBlock)
	}
	// Check for hex-encoded curve point. Allow for trailing "\n".
	if len(pemBlock) == 130 || len(pemBlock) == 131 {
		var decoded [65]byte
		if _, err = hex.Decode(decoded[:], pemBlock[:130]); err == nil {
			return ecdh.P256().NewPublicKey(decoded[:])
		}
	}

	block, _ := pem.Decode(pemBlock)
	if block == nil {
		return nil, ErrInvalidPublicKey
	}

	var pkey *ecdh.PublicKey
	switch block.Type {
	case "EC PRIVATE KEY":
		skey, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		if pkey, err = skey.PublicKey.ECDH(); err != nil {
			return nil, err
		}
	case "PRIVATE KEY":
		skey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		ecdsaPrivateKey, ok := skey.(*ecdsa.PrivateKey)
		if !ok {
			return nil, ErrInvalidPublicKey
		}
		if pkey, err = ecdsaPrivateKey.PublicKey.ECDH(); err != nil {
			return nil, err
		}
	case "PUBLIC KEY":
		publicKey, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		ecdsaPublicKey, ok := publicKey.(*ecdsa.PublicKey)
		if !ok {
			return nil, ErrInvalidPublicKey
		}
		if pkey, err = ecdsaPublicKey.ECDH(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unrecognized PEM block type %s", block.Type)
	}
	if pkey.Curve() != ecdh.P256() {
		return nil, ErrInvalidPublicKey
	}
	return pkey, nil
}

// PublicKeyBytesFromHex verifies h encodes a valid public key and returns the parsed point.
func PublicKeyBytesFromHex(h string) (*ecdh.PublicKey, error) {
	publicKeyBytes, err := hex.DecodeString(h)
	if err != nil {
		return nil, err
	}
	return ecdh.P256().NewPublicKey(publicKeyBytes)
}

// ErrInvalidPublicKey indicates a key file or hex string did not decode to a valid P-256 point.
var ErrInvalidPublicKey = NewError("invalid public key", false, false)
