package challenge

import (
	"bytes"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/doorkeeper/intercom/internal/credential"
	intercrypto "github.com/doorkeeper/intercom/internal/crypto"
	"github.com/doorkeeper/intercom/internal/errorcode"
	"github.com/doorkeeper/intercom/internal/frame"
	"github.com/doorkeeper/intercom/internal/session"
	"github.com/doorkeeper/intercom/pkg/protocol"
)

func newSymmetricTestEngine(t *testing.T, actuator Actuator, masterKey []byte, signerPub ed25519.PublicKey) (*Engine, *protocol.SymmetricDemo, *session.Session) {
	t.Helper()
	engine := NewEngine(DoorConfig{DoorID: "door-1"}, actuator)
	v := protocol.NewSymmetricDemo(masterKey, []byte(signerPub))
	symmetricDemo, _ := v.SymmetricDemo()

	mgr := session.NewManager(session.Limits{PerPeerRate: 100, PerPeerBurst: 100, GlobalRate: 100, GlobalBurst: 100})
	sess, err := mgr.Connect("peer-s", 512)
	if err != nil {
		t.Fatal(err)
	}
	return engine, symmetricDemo, sess
}

func doSymmetricAuthRequest(t *testing.T, engine *Engine, v *protocol.SymmetricDemo, sess *session.Session, masterKey, deviceID, nonceM []byte) (dk []byte, nonceR []byte) {
	t.Helper()
	dk, err := intercrypto.DiversifyKey(masterKey, deviceID)
	if err != nil {
		t.Fatal(err)
	}
	iv, err := intercrypto.RandomBytes(16)
	if err != nil {
		t.Fatal(err)
	}
	encNonce, err := intercrypto.EncryptCBCNoPad(dk, iv, nonceM)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := frame.EncodeAuthRequest(frame.AuthRequestMsg{DeviceID: deviceID, IV: iv, EncryptedNonce: encNonce})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := engine.handleSymmetricDemo(sess, v, raw, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	msgType, body, err := frame.DecodeMessageType(resp)
	if err != nil {
		t.Fatal(err)
	}
	if msgType != frame.MsgAuthResponse {
		t.Fatalf("expected MsgAuthResponse, got %x", msgType)
	}
	respMsg, err := frame.DecodeAuthResponse(body)
	if err != nil {
		t.Fatal(err)
	}
	plaintext, err := intercrypto.DecryptCBCNoPad(dk, respMsg.IV, respMsg.EncryptedNonces)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(plaintext[:16], nonceM) {
		t.Fatal("expected the response to echo Nonce_M")
	}
	return dk, plaintext[16:]
}

func buildSignedDemoCredential(t *testing.T, priv ed25519.PrivateKey, deviceID []byte, now time.Time) credential.DemoCredential {
	t.Helper()
	d := credential.DemoCredential{
		DeviceID:  deviceID,
		NotBefore: now.Add(-time.Minute),
		NotAfter:  now.Add(time.Hour),
	}
	d.Signature = ed25519.Sign(priv, d.CanonicalBytes())
	return d
}

func sendSymmetricCredential(t *testing.T, engine *Engine, v *protocol.SymmetricDemo, sess *session.Session, dk []byte, d credential.DemoCredential) ([]byte, error) {
	t.Helper()
	encoded, err := credential.EncodeDemoCredential(d)
	if err != nil {
		t.Fatal(err)
	}
	iv, err := intercrypto.RandomBytes(16)
	if err != nil {
		t.Fatal(err)
	}
	encPayload, err := intercrypto.EncryptCBC(dk, iv, encoded)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := frame.EncodeCredential(frame.CredentialMsg{IV: iv, EncryptedPayload: encPayload})
	if err != nil {
		t.Fatal(err)
	}
	return engine.handleSymmetricDemo(sess, v, raw, time.Now())
}

func decodeCredentialResponse(t *testing.T, raw []byte) frame.CredentialResponseMsg {
	t.Helper()
	msgType, body, err := frame.DecodeMessageType(raw)
	if err != nil {
		t.Fatal(err)
	}
	if msgType != frame.MsgCredentialResponse {
		t.Fatalf("expected MsgCredentialResponse, got %x", msgType)
	}
	resp, err := frame.DecodeCredentialResponse(body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHandleSymmetricDemoHappyPath(t *testing.T) {
	masterKey := bytes.Repeat([]byte{0x21}, 32)
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	deviceID := []byte("0123456789ABCDEF")
	actuator := &fakeActuator{state: errorcode.DoorUnlocked}
	engine, v, sess := newSymmetricTestEngine(t, actuator, masterKey, pub)

	nonceM := bytes.Repeat([]byte{0x31}, 16)
	dk, _ := doSymmetricAuthRequest(t, engine, v, sess, masterKey, deviceID, nonceM)
	if sess.Phase() != session.NonceIssued {
		t.Fatalf("expected NonceIssued, got %v", sess.Phase())
	}

	cred := buildSignedDemoCredential(t, priv, deviceID, time.Now())
	resp, err := sendSymmetricCredential(t, engine, v, sess, dk, cred)
	if err != nil {
		t.Fatal(err)
	}
	if decodeCredentialResponse(t, resp).Status != frame.CredentialSuccess {
		t.Fatal("expected CredentialSuccess")
	}
	if actuator.calls != 1 {
		t.Fatalf("expected actuator to be called once, got %d", actuator.calls)
	}
	if sess.Phase() != session.CredentialAccepted {
		t.Fatalf("expected CredentialAccepted, got %v", sess.Phase())
	}
}

func TestHandleSymmetricDemoRejectsExpiredCredential(t *testing.T) {
	masterKey := bytes.Repeat([]byte{0x22}, 32)
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	deviceID := []byte("0123456789ABCDEF")
	actuator := &fakeActuator{state: errorcode.DoorUnlocked}
	engine, v, sess := newSymmetricTestEngine(t, actuator, masterKey, pub)

	nonceM := bytes.Repeat([]byte{0x32}, 16)
	dk, _ := doSymmetricAuthRequest(t, engine, v, sess, masterKey, deviceID, nonceM)

	cred := credential.DemoCredential{
		DeviceID:  deviceID,
		NotBefore: time.Now().Add(-2 * time.Hour),
		NotAfter:  time.Now().Add(-time.Hour),
	}
	cred.Signature = ed25519.Sign(priv, cred.CanonicalBytes())

	resp, err := sendSymmetricCredential(t, engine, v, sess, dk, cred)
	if err != errorcode.ErrCredExpired {
		t.Fatalf("expected ErrCredExpired, got %v", err)
	}
	if decodeCredentialResponse(t, resp).Status != frame.CredentialExpired {
		t.Fatal("expected CredentialExpired status")
	}
	if actuator.calls != 0 {
		t.Fatal("actuator must not be called when the credential is expired")
	}
}

func TestHandleSymmetricDemoRejectsTamperedSignature(t *testing.T) {
	masterKey := bytes.Repeat([]byte{0x23}, 32)
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	deviceID := []byte("0123456789ABCDEF")
	actuator := &fakeActuator{state: errorcode.DoorUnlocked}
	engine, v, sess := newSymmetricTestEngine(t, actuator, masterKey, pub)

	nonceM := bytes.Repeat([]byte{0x33}, 16)
	dk, _ := doSymmetricAuthRequest(t, engine, v, sess, masterKey, deviceID, nonceM)

	cred := buildSignedDemoCredential(t, priv, deviceID, time.Now())
	cred.Signature[0] ^= 0xFF

	resp, err := sendSymmetricCredential(t, engine, v, sess, dk, cred)
	if err == nil {
		t.Fatal("expected tampered signature to be rejected")
	}
	if decodeCredentialResponse(t, resp).Status != frame.CredentialRejected {
		t.Fatal("expected CredentialRejected status")
	}
}

func TestHandleSymmetricDemoRejectsDeviceIDMismatch(t *testing.T) {
	masterKey := bytes.Repeat([]byte{0x24}, 32)
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	deviceID := []byte("0123456789ABCDEF")
	otherDeviceID := []byte("FEDCBA9876543210")
	actuator := &fakeActuator{state: errorcode.DoorUnlocked}
	engine, v, sess := newSymmetricTestEngine(t, actuator, masterKey, pub)

	nonceM := bytes.Repeat([]byte{0x34}, 16)
	dk, _ := doSymmetricAuthRequest(t, engine, v, sess, masterKey, deviceID, nonceM)

	cred := buildSignedDemoCredential(t, priv, otherDeviceID, time.Now())
	resp, err := sendSymmetricCredential(t, engine, v, sess, dk, cred)
	if err != errorcode.ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if decodeCredentialResponse(t, resp).Status != frame.CredentialRejected {
		t.Fatal("expected CredentialRejected status")
	}
	if actuator.calls != 0 {
		t.Fatal("actuator must not be called when the credential's DeviceID doesn't match the session")
	}
}

func TestHandleSymmetricDemoRejectsCredentialBeforeAuthRequest(t *testing.T) {
	masterKey := bytes.Repeat([]byte{0x25}, 32)
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	actuator := &fakeActuator{state: errorcode.DoorUnlocked}
	engine, v, sess := newSymmetricTestEngine(t, actuator, masterKey, pub)

	raw, err := frame.EncodeCredential(frame.CredentialMsg{
		IV:               bytes.Repeat([]byte{0x01}, 16),
		EncryptedPayload: bytes.Repeat([]byte{0x02}, 96),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.handleSymmetricDemo(sess, v, raw, time.Now()); err != errorcode.ErrInvalidState {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}
