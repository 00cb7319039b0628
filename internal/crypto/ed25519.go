package crypto

import (
	"crypto/ed25519"
)

// VerifyEd25519 checks an Ed25519 signature over message under publicKey. It is used only by the
// simple demo variant's backend-signed credential, where the backend trust anchor is a bare
// Ed25519 key rather than the ES256 JWT chain Variant A uses.
func VerifyEd25519(publicKey, message, signature []byte) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return ErrInvalidPoint
	}
	if !ed25519.Verify(ed25519.PublicKey(publicKey), message, signature) {
		return ErrInvalidSignature
	}
	return nil
}
