// Package attestation signs and verifies the out-of-band key attestation cmd/intercom-keygen
// issues and cmd/intercom-unlock's verify-attestation subcommand checks: proof that an intercom's identity
// public key, as distributed through some channel the protocol itself never touches (a
// provisioning sheet, a QR code on the device), actually came from the device that holds the
// matching private key.
package attestation

import (
	"encoding/binary"
	"time"

	"github.com/doorkeeper/intercom/internal/crypto/schnorr"
)

// Message is the exact byte sequence an attestation signs: door_id || public_key ||
// issued_at(unix,8BE). It is never itself sent over the BLE link — the protocol's Variant A
// credential already binds a device public key to a door with its own ES256 signature
// (internal/credential.Claims) — this is a separate, offline check of the public key's
// provenance before it's ever typed into a credential-issuance workflow.
func Message(doorID string, publicKey []byte, issuedAt time.Time) []byte {
	msg := append([]byte(doorID), publicKey...)
	return binary.BigEndian.AppendUint64(msg, uint64(issuedAt.Unix()))
}

// Sign produces a Schnorr signature over Message(doorID, publicKey, issuedAt) under the identity
// key's raw 32-byte private scalar. The nonce is deterministic (RFC 6979, see
// internal/crypto/schnorr), not drawn from an RNG: this scalar doubles as the intercom's long-term
// ECDH identity key, so attestation signing shouldn't add a second dependency on RNG quality.
func Sign(privateScalar, publicKey []byte, doorID string, issuedAt time.Time) ([]byte, error) {
	return schnorr.Sign(privateScalar, publicKey, Message(doorID, publicKey, issuedAt))
}

// Verify checks a Schnorr attestation signature against the reconstructed message.
func Verify(publicKey []byte, doorID string, issuedAt time.Time, signature []byte) error {
	return schnorr.Verify(publicKey, Message(doorID, publicKey, issuedAt), signature)
}
