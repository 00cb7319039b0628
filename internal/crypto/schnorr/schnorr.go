// Package schnorr implements Schnorr signatures over NIST P-256 with SHA-256.
//
// internal/attestation signs key-provenance attestations with this scheme instead of ECDSA so the
// signing key can double as the same ECDH/P256 identity key used for Variant A key agreement,
// without the two schemes interacting. See RFC 8235 for the underlying construction.
package schnorr

import (
	"crypto/elliptic"
	"crypto/sha256"
	"errors"
	"io"
	"math/big"
)

const ScalarLength = 32

var p256 = elliptic.P256()

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidPublicKey = errors.New("invalid public key")
)

func writeLengthValue(w io.Writer, buf []byte) {
	v := uint32(len(buf))
	w.Write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
	w.Write(buf)
}

func challenge(publicNonce, senderPublicBytes, message []byte) []byte {
	h := sha256.New()
	writeLengthValue(h, elliptic.Marshal(p256, p256.Params().Gx, p256.Params().Gy))
	writeLengthValue(h, publicNonce)
	writeLengthValue(h, senderPublicBytes)
	writeLengthValue(h, message)
	return h.Sum(nil)
}

// Verify checks that signature is a valid Schnorr signature over message under publicKeyBytes
// (an uncompressed P-256 point).
func Verify(publicKeyBytes, message, signature []byte) error {
	pX, pY := elliptic.Unmarshal(p256, publicKeyBytes)
	if pX == nil {
		return ErrInvalidPublicKey
	}
	if len(signature) != 3*ScalarLength {
		return ErrInvalidSignature
	}
	var vX, vY big.Int
	vX.SetBytes(signature[0:ScalarLength])
	vY.SetBytes(signature[ScalarLength : 2*ScalarLength])
	r := signature[2*ScalarLength:]
	c := challenge(append([]byte{0x04}, signature[:2*ScalarLength]...), publicKeyBytes, message)
	pX, pY = p256.ScalarMult(pX, pY, c)
	tempX, tempY := p256.ScalarBaseMult(r)
	pX, pY = p256.Add(tempX, tempY, pX, pY)
	if pX.Cmp(&vX) == 0 && pY.Cmp(&vY) == 0 {
		return nil
	}
	return ErrInvalidSignature
}
