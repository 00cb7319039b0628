package challenge

import (
	"bytes"
	"testing"

	"github.com/doorkeeper/intercom/internal/credential"
	intercrypto "github.com/doorkeeper/intercom/internal/crypto"
	"github.com/doorkeeper/intercom/internal/errorcode"
	"github.com/doorkeeper/intercom/internal/frame"
	"github.com/doorkeeper/intercom/internal/session"
	"github.com/doorkeeper/intercom/pkg/protocol"
)

func newVariantBTestEngine(t *testing.T, actuator Actuator, deviceUID, key []byte) (*Engine, *protocol.DiversifiedCbc, *session.Session) {
	t.Helper()
	provider := protocol.NewStaticKeyProvider(map[string][]byte{string(deviceUID): key})
	engine := NewEngine(DoorConfig{DoorID: "door-1"}, actuator)
	v := protocol.NewDiversifiedCbc(provider)
	variantB, _ := v.DiversifiedCbc()

	mgr := session.NewManager(session.Limits{PerPeerRate: 100, PerPeerBurst: 100, GlobalRate: 100, GlobalBurst: 100})
	sess, err := mgr.Connect("peer-b", 512)
	if err != nil {
		t.Fatal(err)
	}
	return engine, variantB, sess
}

func sendAuthRequest(t *testing.T, engine *Engine, variantB *protocol.DiversifiedCbc, sess *session.Session, deviceUID, ra []byte, seq byte) ([]byte, error) {
	t.Helper()
	value, err := frame.EncodeAuthRequestValue(frame.AuthRequestValue{DeviceUID: deviceUID, Ra: ra})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := frame.EncodeVariantBFrame(frame.VariantBFrame{Start: frame.StartPlain, Tag: frame.TagAuthRequest, Seq: seq, Value: value}, 0)
	if err != nil {
		t.Fatal(err)
	}
	return engine.handleVariantB(sess, variantB, raw)
}

func sendAuthConfirm(t *testing.T, engine *Engine, variantB *protocol.DiversifiedCbc, sess *session.Session, rbPrime []byte, seq byte) ([]byte, error) {
	t.Helper()
	value, err := frame.EncodeAuthConfirmValue(frame.AuthConfirmValue{RbPrime: rbPrime})
	if err != nil {
		t.Fatal(err)
	}
	raw, err := frame.EncodeVariantBFrame(frame.VariantBFrame{Start: frame.StartPlain, Tag: frame.TagAuthConfirm, Seq: seq, Value: value}, 0)
	if err != nil {
		t.Fatal(err)
	}
	return engine.handleVariantB(sess, variantB, raw)
}

func TestHandleVariantBHappyPath(t *testing.T) {
	deviceUID := bytes.Repeat([]byte{0xAB}, 8)
	key := bytes.Repeat([]byte{0x55}, 16)
	actuator := &fakeActuator{state: errorcode.DoorUnlocked}
	engine, variantB, sess := newVariantBTestEngine(t, actuator, deviceUID, key)

	ra := bytes.Repeat([]byte{0x11}, 16)
	resp, err := sendAuthRequest(t, engine, variantB, sess, deviceUID, ra, 0)
	if err != nil {
		t.Fatal(err)
	}
	challengeFrame, err := frame.DecodeVariantBFrame(resp)
	if err != nil {
		t.Fatal(err)
	}
	if challengeFrame.Tag != frame.TagAuthChallenge {
		t.Fatalf("expected TagAuthChallenge, got %x", challengeFrame.Tag)
	}
	challenge, err := frame.DecodeAuthChallengeValue(challengeFrame.Value)
	if err != nil {
		t.Fatal(err)
	}
	wantRaPrime, err := intercrypto.EncryptECBBlock(key, ra)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(challenge.RaPrime, wantRaPrime) {
		t.Fatal("Ra' does not match AES-ECB(key, Ra)")
	}
	if sess.Phase() != session.AwaitAuth {
		t.Fatalf("expected AwaitAuth, got %v", sess.Phase())
	}

	rbPrime, err := intercrypto.EncryptECBBlock(key, challenge.Rb)
	if err != nil {
		t.Fatal(err)
	}
	confirmResp, err := sendAuthConfirm(t, engine, variantB, sess, rbPrime, 1)
	if err != nil {
		t.Fatal(err)
	}
	if actuator.calls != 1 {
		t.Fatalf("expected actuator to be called once, got %d", actuator.calls)
	}
	if sess.Phase() != session.CredentialAccepted {
		t.Fatalf("expected CredentialAccepted, got %v", sess.Phase())
	}

	resultFrame, err := frame.DecodeVariantBFrame(confirmResp)
	if err != nil {
		t.Fatal(err)
	}
	if resultFrame.Start != frame.StartEncrypted {
		t.Fatalf("expected StartEncrypted, got %x", resultFrame.Start)
	}
	cert, err := credential.Parse(resultFrame.Value, key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(cert.DeviceUID, deviceUID) {
		t.Fatal("Transaction Certificate DeviceUID mismatch")
	}
}

func TestHandleVariantBRejectsDuplicateAuthRequest(t *testing.T) {
	deviceUID := bytes.Repeat([]byte{0xAC}, 8)
	key := bytes.Repeat([]byte{0x56}, 16)
	actuator := &fakeActuator{state: errorcode.DoorUnlocked}
	engine, variantB, sess := newVariantBTestEngine(t, actuator, deviceUID, key)

	ra := bytes.Repeat([]byte{0x11}, 16)
	if _, err := sendAuthRequest(t, engine, variantB, sess, deviceUID, ra, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := sendAuthRequest(t, engine, variantB, sess, deviceUID, ra, 1); err != errorcode.ErrInvalidState {
		t.Fatalf("expected ErrInvalidState for duplicate AUTH_REQUEST, got %v", err)
	}
}

func TestHandleVariantBRejectsSequenceViolation(t *testing.T) {
	deviceUID := bytes.Repeat([]byte{0xAD}, 8)
	key := bytes.Repeat([]byte{0x57}, 16)
	actuator := &fakeActuator{state: errorcode.DoorUnlocked}
	engine, variantB, sess := newVariantBTestEngine(t, actuator, deviceUID, key)

	ra := bytes.Repeat([]byte{0x11}, 16)
	if _, err := sendAuthRequest(t, engine, variantB, sess, deviceUID, ra, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := sendAuthConfirm(t, engine, variantB, sess, bytes.Repeat([]byte{0}, 16), 7); err != errorcode.ErrSequenceViolation {
		t.Fatalf("expected ErrSequenceViolation, got %v", err)
	}
}

func sendIVReset(t *testing.T, engine *Engine, variantB *protocol.DiversifiedCbc, sess *session.Session, seq byte) ([]byte, error) {
	t.Helper()
	raw, err := frame.EncodeVariantBFrame(frame.VariantBFrame{Start: frame.StartPlain, Tag: frame.TagIVReset, Seq: seq}, 0)
	if err != nil {
		t.Fatal(err)
	}
	return engine.handleVariantB(sess, variantB, raw)
}

func TestHandleVariantBIVResetClearsSequenceBaseline(t *testing.T) {
	deviceUID := bytes.Repeat([]byte{0xAF}, 8)
	key := bytes.Repeat([]byte{0x59}, 16)
	actuator := &fakeActuator{state: errorcode.DoorUnlocked}
	engine, variantB, sess := newVariantBTestEngine(t, actuator, deviceUID, key)

	ra := bytes.Repeat([]byte{0x11}, 16)
	if _, err := sendAuthRequest(t, engine, variantB, sess, deviceUID, ra, 0); err != nil {
		t.Fatal(err)
	}

	resp, err := sendIVReset(t, engine, variantB, sess, 1)
	if err != nil {
		t.Fatal(err)
	}
	resetFrame, err := frame.DecodeVariantBFrame(resp)
	if err != nil {
		t.Fatal(err)
	}
	if resetFrame.Tag != frame.TagIVReset {
		t.Fatalf("expected TagIVReset, got %x", resetFrame.Tag)
	}

	// The ivreset frame itself still had to satisfy normal sequence discipline (seq 1 follows seq
	// 0 above), but having processed it, the baseline is cleared: an arbitrary next sequence
	// number, 42 here, must be accepted as the new starting point rather than rejected for not
	// following seq 1.
	if _, err := sendAuthConfirm(t, engine, variantB, sess, bytes.Repeat([]byte{0}, 16), 42); err == errorcode.ErrSequenceViolation {
		t.Fatal("expected sequence baseline to be cleared by ivreset, got ErrSequenceViolation")
	}
}

func TestHandleVariantBIVResetStillEnforcesSequence(t *testing.T) {
	deviceUID := bytes.Repeat([]byte{0xB0}, 8)
	key := bytes.Repeat([]byte{0x5A}, 16)
	actuator := &fakeActuator{state: errorcode.DoorUnlocked}
	engine, variantB, sess := newVariantBTestEngine(t, actuator, deviceUID, key)

	ra := bytes.Repeat([]byte{0x11}, 16)
	if _, err := sendAuthRequest(t, engine, variantB, sess, deviceUID, ra, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := sendIVReset(t, engine, variantB, sess, 9); err != errorcode.ErrSequenceViolation {
		t.Fatalf("expected ErrSequenceViolation for an out-of-sequence ivreset frame, got %v", err)
	}
}

func TestHandleVariantBRejectsRbPrimeBitFlip(t *testing.T) {
	deviceUID := bytes.Repeat([]byte{0xAE}, 8)
	key := bytes.Repeat([]byte{0x58}, 16)
	actuator := &fakeActuator{state: errorcode.DoorUnlocked}
	engine, variantB, sess := newVariantBTestEngine(t, actuator, deviceUID, key)

	ra := bytes.Repeat([]byte{0x11}, 16)
	resp, err := sendAuthRequest(t, engine, variantB, sess, deviceUID, ra, 0)
	if err != nil {
		t.Fatal(err)
	}
	challengeFrame, err := frame.DecodeVariantBFrame(resp)
	if err != nil {
		t.Fatal(err)
	}
	challenge, err := frame.DecodeAuthChallengeValue(challengeFrame.Value)
	if err != nil {
		t.Fatal(err)
	}
	rbPrime, err := intercrypto.EncryptECBBlock(key, challenge.Rb)
	if err != nil {
		t.Fatal(err)
	}
	rbPrime[0] ^= 0x01

	if _, err := sendAuthConfirm(t, engine, variantB, sess, rbPrime, 1); err != errorcode.ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if actuator.calls != 0 {
		t.Fatal("actuator must not be called when Rb' fails verification")
	}
	if sess.Phase() != session.Done {
		t.Fatalf("expected Done, got %v", sess.Phase())
	}
}
