package credential

import (
	"encoding/binary"
	"time"

	"github.com/doorkeeper/intercom/internal/crypto"
	"github.com/doorkeeper/intercom/internal/errorcode"
)

// DemoCredential is the simple Ed25519-signed credential used by the Symmetric-Key demo variant:
// a flat struct rather than a JWT, since the demo variant has no backend issuance flow to share a
// claims format with.
type DemoCredential struct {
	DeviceID  []byte // 16 bytes
	NotBefore time.Time
	NotAfter  time.Time
	Signature []byte // Ed25519, 64 bytes, over CanonicalBytes()
}

// CanonicalBytes is the exact byte sequence the authority signs: DeviceID || NotBefore(unix,8BE) ||
// NotAfter(unix,8BE).
func (d DemoCredential) CanonicalBytes() []byte {
	out := make([]byte, 0, len(d.DeviceID)+16)
	out = append(out, d.DeviceID...)
	out = binary.BigEndian.AppendUint64(out, uint64(d.NotBefore.Unix()))
	out = binary.BigEndian.AppendUint64(out, uint64(d.NotAfter.Unix()))
	return out
}

// VerifyDemoCredential checks the Ed25519 signature and the validity window.
func VerifyDemoCredential(d DemoCredential, authorityPub []byte, now time.Time) error {
	if err := crypto.VerifyEd25519(authorityPub, d.CanonicalBytes(), d.Signature); err != nil {
		return errorcode.ErrSignatureInvalid
	}
	if now.Before(d.NotBefore) {
		return errorcode.ErrCredNotYetValid
	}
	if now.After(d.NotAfter) {
		return errorcode.ErrCredExpired
	}
	return nil
}

// demoCredentialWireSize is DeviceID(16) || NotBefore(8) || NotAfter(8) || Signature(64), chosen to
// land on a 96-byte, block-aligned size so it fits directly in the Symmetric-Key variant's
// AES-128-CBC-framed Credential message without further padding bookkeeping.
const demoCredentialWireSize = 16 + 8 + 8 + 64

// EncodeDemoCredential serializes d to its fixed-size wire form.
func EncodeDemoCredential(d DemoCredential) ([]byte, error) {
	if len(d.DeviceID) != 16 || len(d.Signature) != 64 {
		return nil, errorcode.ErrInvalidCredential
	}
	out := make([]byte, 0, demoCredentialWireSize)
	out = append(out, d.DeviceID...)
	out = binary.BigEndian.AppendUint64(out, uint64(d.NotBefore.Unix()))
	out = binary.BigEndian.AppendUint64(out, uint64(d.NotAfter.Unix()))
	out = append(out, d.Signature...)
	return out, nil
}

// DecodeDemoCredential parses the fixed-size wire form produced by EncodeDemoCredential.
func DecodeDemoCredential(data []byte) (DemoCredential, error) {
	if len(data) != demoCredentialWireSize {
		return DemoCredential{}, errorcode.ErrInvalidCredential
	}
	offset := 0
	deviceID := append([]byte{}, data[offset:offset+16]...)
	offset += 16
	notBefore := time.Unix(int64(binary.BigEndian.Uint64(data[offset:offset+8])), 0).UTC()
	offset += 8
	notAfter := time.Unix(int64(binary.BigEndian.Uint64(data[offset:offset+8])), 0).UTC()
	offset += 8
	signature := append([]byte{}, data[offset:offset+64]...)
	return DemoCredential{DeviceID: deviceID, NotBefore: notBefore, NotAfter: notAfter, Signature: signature}, nil
}
