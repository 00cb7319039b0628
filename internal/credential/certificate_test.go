package credential

import (
	"bytes"
	"testing"

	intercrypto "github.com/doorkeeper/intercom/internal/crypto"
)

func testCertificate() TransactionCertificate {
	return TransactionCertificate{
		Identifier: 0x1234,
		DeviceUID:  bytes.Repeat([]byte{0xAB}, certDeviceUIDSize),
		Token:      bytes.Repeat([]byte{0xCD}, certTokenSize),
		Value:      bytes.Repeat([]byte{0xEF}, certValueSize),
	}
}

func TestCertificateEncodeParseRoundTrip(t *testing.T) {
	deviceKey := bytes.Repeat([]byte{0x01}, 16)
	cert := testCertificate()

	encoded, err := Encode(cert, deviceKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(encoded) != CertificateSize {
		t.Fatalf("expected %d bytes, got %d", CertificateSize, len(encoded))
	}

	decoded, err := Parse(encoded, deviceKey)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Identifier != cert.Identifier {
		t.Fatalf("identifier mismatch: %x != %x", decoded.Identifier, cert.Identifier)
	}
	if !bytes.Equal(decoded.DeviceUID, cert.DeviceUID) {
		t.Fatal("device UID mismatch")
	}
	if !bytes.Equal(decoded.Token, cert.Token) {
		t.Fatal("token mismatch")
	}
	if !bytes.Equal(decoded.Value, cert.Value) {
		t.Fatal("value mismatch")
	}
}

func TestCertificateRejectsTamperedRFU(t *testing.T) {
	deviceKey := bytes.Repeat([]byte{0x01}, 16)
	encoded, err := Encode(testCertificate(), deviceKey)
	if err != nil {
		t.Fatal(err)
	}
	encoded[len(encoded)-1] ^= 0xFF

	if _, err := Parse(encoded, deviceKey); err == nil {
		t.Fatal("expected tampered RFU to be rejected")
	}
}

func TestCertificateRejectsTamperedBody(t *testing.T) {
	deviceKey := bytes.Repeat([]byte{0x01}, 16)
	encoded, err := Encode(testCertificate(), deviceKey)
	if err != nil {
		t.Fatal(err)
	}
	encoded[10] ^= 0xFF

	if _, err := Parse(encoded, deviceKey); err == nil {
		t.Fatal("expected tampered body to be rejected")
	}
}

func TestCertificateRejectsWrongKey(t *testing.T) {
	encoded, err := Encode(testCertificate(), bytes.Repeat([]byte{0x01}, 16))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(encoded, bytes.Repeat([]byte{0x02}, 16)); err == nil {
		t.Fatal("expected decoding under the wrong key to fail")
	}
}

func TestCertificateRejectsBadLength(t *testing.T) {
	if _, err := Parse([]byte("too short"), bytes.Repeat([]byte{0x01}, 16)); err == nil {
		t.Fatal("expected short input to be rejected")
	}
}

func TestVerifyChallengeResponseAccepts(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 16)
	challenge := bytes.Repeat([]byte{0x11}, 16)

	response, err := intercrypto.EncryptECBBlock(key, challenge)
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyChallengeResponse(key, challenge, response); err != nil {
		t.Fatalf("expected matching response to verify, got %v", err)
	}
}

func TestIssueAndOpenTransactionCertificateRoundTrip(t *testing.T) {
	deviceKey := bytes.Repeat([]byte{0x07}, 16)
	deviceUID := bytes.Repeat([]byte{0x09}, certDeviceUIDSize)
	payload := []byte("door unlocked at transaction time")

	cert, err := IssueTransactionCertificate(deviceKey, deviceUID, 0x0042, payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(cert.Value) != certValueSize {
		t.Fatalf("expected %d byte Value, got %d", certValueSize, len(cert.Value))
	}

	encoded, err := Encode(cert, deviceKey)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Parse(encoded, deviceKey)
	if err != nil {
		t.Fatal(err)
	}

	recovered, err := OpenTransactionCertificateValue(decoded, deviceKey)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(recovered[:len(payload)], payload) {
		t.Fatal("expected recovered plaintext to start with the original payload")
	}
}

func TestVerifyChallengeResponseRejectsBitFlip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 16)
	challenge := bytes.Repeat([]byte{0x11}, 16)

	response, err := intercrypto.EncryptECBBlock(key, challenge)
	if err != nil {
		t.Fatal(err)
	}
	response[0] ^= 0x01

	if err := VerifyChallengeResponse(key, challenge, response); err == nil {
		t.Fatal("expected a single bit-flip in the response to cause rejection")
	}
}
