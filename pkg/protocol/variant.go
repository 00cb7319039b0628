package protocol

import (
	"github.com/doorkeeper/intercom/internal/crypto"
)

// KeyProvider resolves a per-device diversified key for Variant B, abstracting over the two
// deployment architectures spec.md's Open Question 4 leaves undecided: a reader that holds the
// site master key and diversifies on demand, or a reader pre-provisioned with one key per
// authorized device UID. Both are valid KeyProvider implementations; which one a deployment uses
// is a constructor argument to DiversifiedCbc, not a compile-time choice.
type KeyProvider interface {
	// DeviceKey returns the 16-byte diversified key for deviceID, or an error if the device is
	// unknown to this provider.
	DeviceKey(deviceID []byte) ([]byte, error)
}

// MasterKeyProvider derives DK = diversify_key(master, uid) on every call, per spec §4.2/§4.4.
type MasterKeyProvider struct {
	MasterKey []byte
}

// DeviceKey implements KeyProvider by deriving the key from the master key and deviceID.
func (p *MasterKeyProvider) DeviceKey(deviceID []byte) ([]byte, error) {
	return crypto.DiversifyKey(p.MasterKey, deviceID)
}

// StaticKeyProvider holds one pre-provisioned diversified key per authorized device UID, for
// deployments that never expose the master key to the reader itself.
type StaticKeyProvider struct {
	keys map[string][]byte
}

// NewStaticKeyProvider builds a StaticKeyProvider from a map keyed by the raw device ID bytes
// (converted to a string), as DeviceKey looks them up.
func NewStaticKeyProvider(keys map[string][]byte) *StaticKeyProvider {
	copied := make(map[string][]byte, len(keys))
	for id, key := range keys {
		copied[id] = append([]byte{}, key...)
	}
	return &StaticKeyProvider{keys: copied}
}

// DeviceKey implements KeyProvider by looking up the pre-provisioned key for deviceID.
func (p *StaticKeyProvider) DeviceKey(deviceID []byte) ([]byte, error) {
	key, ok := p.keys[string(deviceID)]
	if !ok {
		return nil, ErrUnknownDeviceID
	}
	return append([]byte{}, key...), nil
}

// ErrUnknownDeviceID indicates a StaticKeyProvider has no entry for the requested device.
var ErrUnknownDeviceID = NewError("unknown device id", false, false)

// Variant is the tagged sum spec.md §9 calls for, replacing the protocol's original
// polymorphism-across-variants class hierarchy with one closed set of cases dispatched in
// internal/challenge's HandleAuth.
type Variant struct {
	kind        variantKind
	ecdhGCM     *EcdhGCM
	diversified *DiversifiedCbc
	symmetric   *SymmetricDemo
}

type variantKind int

const (
	kindEcdhGCM variantKind = iota
	kindDiversifiedCbc
	kindSymmetricDemo
)

// EcdhGCM is Variant A: per-session ECDH(P-256) + HKDF-SHA-256 + AES-256-GCM with a backend-signed
// JWT credential.
type EcdhGCM struct {
	PrivateKey crypto.ECDHPrivateKey
	SignerPub  []byte // authority public key verifying the credential's ES256 signature
}

// NewEcdhGCM constructs a Variant-A Variant value.
func NewEcdhGCM(privateKey crypto.ECDHPrivateKey, signerPub []byte) Variant {
	return Variant{kind: kindEcdhGCM, ecdhGCM: &EcdhGCM{PrivateKey: privateKey, SignerPub: signerPub}}
}

// DiversifiedCbc is Variant B: NXP AN10922-style diversified symmetric key with two-round
// challenge-response and AES-128-CBC framing.
type DiversifiedCbc struct {
	KeyProvider KeyProvider
}

// NewDiversifiedCbc constructs a Variant-B Variant value.
func NewDiversifiedCbc(keyProvider KeyProvider) Variant {
	return Variant{kind: kindDiversifiedCbc, diversified: &DiversifiedCbc{KeyProvider: keyProvider}}
}

// SymmetricDemo is the simpler Symmetric-Key variant: single-round nonce echo, Ed25519-signed
// credential, device key derived via HKDF-SHA-256 from one master key.
type SymmetricDemo struct {
	MasterKey []byte
	SignerPub []byte // Ed25519 authority public key
}

// NewSymmetricDemo constructs a Symmetric-Key-variant Variant value.
func NewSymmetricDemo(masterKey, signerPub []byte) Variant {
	return Variant{kind: kindSymmetricDemo, symmetric: &SymmetricDemo{MasterKey: masterKey, SignerPub: signerPub}}
}

// EcdhGCM returns the Variant-A payload and true if v holds one.
func (v Variant) EcdhGCM() (*EcdhGCM, bool) { return v.ecdhGCM, v.kind == kindEcdhGCM }

// DiversifiedCbc returns the Variant-B payload and true if v holds one.
func (v Variant) DiversifiedCbc() (*DiversifiedCbc, bool) {
	return v.diversified, v.kind == kindDiversifiedCbc
}

// SymmetricDemo returns the Symmetric-Key-variant payload and true if v holds one.
func (v Variant) SymmetricDemo() (*SymmetricDemo, bool) {
	return v.symmetric, v.kind == kindSymmetricDemo
}
