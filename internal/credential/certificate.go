package credential

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"

	intercrypto "github.com/doorkeeper/intercom/internal/crypto"
	"github.com/doorkeeper/intercom/internal/errorcode"
)

// Variant B's Credential record (spec §3): length(2) | identifier(2) | device_uid(8) | token(32) |
// value(330, encrypted with KCD). valueSize is fixed at 330 regardless of the plaintext it
// encrypts; the value is AES-CTR ciphertext, as long as its plaintext, so callers pad/truncate
// the plaintext to 330 bytes.
const (
	certLengthFieldSize = 2
	certIdentifierSize  = 2
	certDeviceUIDSize   = 8
	certTokenSize       = 32
	certValueSize       = 330

	// CertificateRFUSize is the length of the Transaction Certificate's trailing rfu[48] field,
	// resolved (per the spec's Open Question) to an HMAC-SHA-384 tag — SHA-384's 48-byte digest is
	// the only standard HMAC construction that fills the field exactly, without truncation.
	CertificateRFUSize = 48

	// CertificateSize is the total encoded length: the 374-byte Credential record plus the rfu tag.
	CertificateSize = certLengthFieldSize + certIdentifierSize + certDeviceUIDSize + certTokenSize + certValueSize + CertificateRFUSize
)

// TransactionCertificate is a peripheral-signed/packed record proving a transaction occurred
// (Variant B, spec Glossary). RFU is treated as a MAC per the spec's Open Question: "implementers
// MUST assume it does until proven otherwise."
type TransactionCertificate struct {
	Identifier uint16
	DeviceUID  []byte // 8 bytes
	Token      []byte // 32 bytes
	Value      []byte // 330 bytes, AES-128-CTR ciphertext under the device's diversified key
	RFU        []byte // 48 bytes, HMAC-SHA-384 over the preceding fields
}

// Encode serializes and MACs t under deviceKey, filling in Length and RFU.
func Encode(t TransactionCertificate, deviceKey []byte) ([]byte, error) {
	if len(t.DeviceUID) != certDeviceUIDSize || len(t.Token) != certTokenSize || len(t.Value) != certValueSize {
		return nil, errorcode.ErrInvalidCredential
	}
	body := make([]byte, 0, CertificateSize-CertificateRFUSize)
	length := uint16(certIdentifierSize + certDeviceUIDSize + certTokenSize + certValueSize)
	body = binary.BigEndian.AppendUint16(body, length)
	body = binary.BigEndian.AppendUint16(body, t.Identifier)
	body = append(body, t.DeviceUID...)
	body = append(body, t.Token...)
	body = append(body, t.Value...)

	tag := macCertificate(deviceKey, body)
	return append(body, tag...), nil
}

// Parse decodes and verifies a Transaction Certificate's rfu MAC under deviceKey.
func Parse(data, deviceKey []byte) (TransactionCertificate, error) {
	if len(data) != CertificateSize {
		return TransactionCertificate{}, errorcode.ErrInvalidCredential
	}
	body := data[:CertificateSize-CertificateRFUSize]
	rfu := data[CertificateSize-CertificateRFUSize:]

	expected := macCertificate(deviceKey, body)
	if !hmac.Equal(expected, rfu) {
		return TransactionCertificate{}, errorcode.ErrSignatureInvalid
	}

	offset := certLengthFieldSize
	identifier := binary.BigEndian.Uint16(body[offset : offset+certIdentifierSize])
	offset += certIdentifierSize
	deviceUID := body[offset : offset+certDeviceUIDSize]
	offset += certDeviceUIDSize
	token := body[offset : offset+certTokenSize]
	offset += certTokenSize
	value := body[offset : offset+certValueSize]

	return TransactionCertificate{
		Identifier: identifier,
		DeviceUID:  append([]byte{}, deviceUID...),
		Token:      append([]byte{}, token...),
		Value:      append([]byte{}, value...),
		RFU:        append([]byte{}, rfu...),
	}, nil
}

func macCertificate(deviceKey, body []byte) []byte {
	mac := hmac.New(sha512.New384, deviceKey)
	mac.Write(body)
	return mac.Sum(nil)
}

// IssueTransactionCertificate builds and MACs a new Transaction Certificate proving a completed
// Variant B transaction. The fixed-size Value field isn't block-aligned (330 bytes), so it's
// produced with AES-CTR rather than the session's CBC framing — CTR's keystream XOR tolerates any
// plaintext length, and the per-record IV lives in the first 16 bytes of Token, with the remaining
// 16 bytes of Token a random record identifier.
func IssueTransactionCertificate(deviceKey, deviceUID []byte, identifier uint16, payload []byte) (TransactionCertificate, error) {
	if len(deviceUID) != certDeviceUIDSize {
		return TransactionCertificate{}, errorcode.ErrInvalidCredential
	}
	iv, err := intercrypto.RandomBytes(intercrypto.BlockSize)
	if err != nil {
		return TransactionCertificate{}, err
	}
	recordID, err := intercrypto.RandomBytes(16)
	if err != nil {
		return TransactionCertificate{}, err
	}
	plaintext := make([]byte, certValueSize)
	copy(plaintext, payload)

	value, err := intercrypto.CTR(deviceKey, iv, plaintext)
	if err != nil {
		return TransactionCertificate{}, err
	}

	return TransactionCertificate{
		Identifier: identifier,
		DeviceUID:  append([]byte{}, deviceUID...),
		Token:      append(append([]byte{}, iv...), recordID...),
		Value:      value,
	}, nil
}

// OpenTransactionCertificateValue recovers the plaintext payload sealed by
// IssueTransactionCertificate, using the IV carried in the certificate's Token.
func OpenTransactionCertificateValue(t TransactionCertificate, deviceKey []byte) ([]byte, error) {
	if len(t.Token) < intercrypto.BlockSize {
		return nil, errorcode.ErrInvalidCredential
	}
	iv := t.Token[:intercrypto.BlockSize]
	return intercrypto.CTR(deviceKey, iv, t.Value)
}

// VerifyChallengeResponse checks the Variant B mutual-authentication round (spec §4.4 steps 2-4):
// response must equal AES-ECB(key, challenge).
func VerifyChallengeResponse(key, challenge, response []byte) error {
	expected, err := intercrypto.EncryptECBBlock(key, challenge)
	if err != nil {
		return err
	}
	if !bytes.Equal(expected, response) {
		return errorcode.ErrSignatureInvalid
	}
	return nil
}
