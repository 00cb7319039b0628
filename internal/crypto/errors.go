package crypto

import "errors"

// Errors returned by this package are sentinel values so callers (internal/challenge,
// internal/credential) can map them onto the wire-level StatusCode without string matching.
var (
	// ErrInvalidPoint indicates a peer-supplied public key is not a valid point on the curve, or is
	// the point at infinity.
	ErrInvalidPoint = errors.New("crypto: invalid or non-canonical curve point")

	// ErrInvalidPrivateKey indicates a local private key scalar is out of range, or an ECDH
	// exchange produced the point at infinity (which can only happen with a maliciously chosen
	// peer key).
	ErrInvalidPrivateKey = errors.New("crypto: invalid private key")

	// ErrTagInvalid indicates AEAD authentication failed. Per the AEAD-authenticity invariant, no
	// plaintext is ever returned alongside this error.
	ErrTagInvalid = errors.New("crypto: AEAD tag verification failed")

	// ErrBadPadding indicates CBC decryption produced invalid PKCS#7 padding.
	ErrBadPadding = errors.New("crypto: invalid padding")

	// ErrNotBlockAligned indicates CBC input length isn't a multiple of the AES block size.
	ErrNotBlockAligned = errors.New("crypto: input is not a multiple of the block size")

	// ErrInvalidSignature indicates a signature failed verification.
	ErrInvalidSignature = errors.New("crypto: invalid signature")
)
