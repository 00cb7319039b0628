package challenge

import (
	"bytes"
	"fmt"
	"time"

	"github.com/doorkeeper/intercom/internal/credential"
	intercrypto "github.com/doorkeeper/intercom/internal/crypto"
	"github.com/doorkeeper/intercom/internal/errorcode"
	"github.com/doorkeeper/intercom/internal/frame"
	"github.com/doorkeeper/intercom/internal/session"
	"github.com/doorkeeper/intercom/pkg/protocol"
)

// handleSymmetricDemo implements the Symmetric-Key variant's simpler two-round handshake: an
// AUTH_REQUEST/AUTH_RESPONSE nonce exchange proving both sides hold the diversified device key,
// followed by a plaintext-framed but CBC-encrypted credential write. Unlike Variant A/B, response
// messages here are never themselves encrypted — CredentialResponse and Error are bare status bytes,
// matching the variant's "demo" scope.
func (e *Engine) handleSymmetricDemo(sess *session.Session, v *protocol.SymmetricDemo, raw []byte, now time.Time) ([]byte, error) {
	msgType, body, err := frame.DecodeMessageType(raw)
	if err != nil {
		return nil, err
	}

	switch msgType {
	case frame.MsgAuthRequest:
		return e.handleSymmetricAuthRequest(sess, v, body)
	case frame.MsgCredential:
		return e.handleSymmetricCredential(sess, v, body, now)
	default:
		return nil, errorcode.ErrMalformedFrame
	}
}

func (e *Engine) handleSymmetricAuthRequest(sess *session.Session, v *protocol.SymmetricDemo, body []byte) ([]byte, error) {
	if sess.Phase() != session.Idle {
		return nil, errorcode.ErrInvalidState
	}
	msg, err := frame.DecodeAuthRequest(body)
	if err != nil {
		return nil, err
	}
	dk, err := intercrypto.DiversifyKey(v.MasterKey, msg.DeviceID)
	if err != nil {
		return nil, errorcode.ErrInternal
	}
	nonceM, err := intercrypto.DecryptCBCNoPad(dk, msg.IV, msg.EncryptedNonce)
	if err != nil {
		return nil, errorcode.ErrAuthFailed
	}

	nonceR, err := intercrypto.RandomBytes(16)
	if err != nil {
		return nil, errorcode.ErrInternal
	}
	respIV, err := intercrypto.RandomBytes(16)
	if err != nil {
		return nil, errorcode.ErrInternal
	}
	encNonces, err := intercrypto.EncryptCBCNoPad(dk, respIV, append(append([]byte{}, nonceM...), nonceR...))
	if err != nil {
		return nil, errorcode.ErrInternal
	}

	sess.SetKeys(session.Keys{Diversified: dk})
	sess.SetPeerPublicKey(msg.DeviceID)
	sess.SetPhase(session.NonceIssued)

	return frame.EncodeAuthResponse(frame.AuthResponseMsg{IV: respIV, EncryptedNonces: encNonces})
}

func (e *Engine) handleSymmetricCredential(sess *session.Session, v *protocol.SymmetricDemo, body []byte, now time.Time) ([]byte, error) {
	if sess.Phase() != session.NonceIssued {
		return nil, errorcode.ErrInvalidState
	}
	msg, err := frame.DecodeCredential(body)
	if err != nil {
		return nil, err
	}
	dk := sess.Keys().Diversified
	deviceID := sess.PeerPublicKey()
	if dk == nil {
		return nil, errorcode.ErrInvalidState
	}

	peerID := fmt.Sprintf("%x", deviceID)
	plaintext, err := intercrypto.DecryptCBC(dk, msg.IV, msg.EncryptedPayload)
	if err != nil {
		sess.SetPhase(session.Done)
		e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "symmetric_demo", PeerID: peerID, Decision: credential.Denied, Reason: "bad padding"})
		return frame.EncodeCredentialResponse(frame.CredentialResponseMsg{Status: frame.CredentialInvalidFormat}), errorcode.ErrAuthFailed
	}
	cred, err := credential.DecodeDemoCredential(plaintext)
	if err != nil {
		sess.SetPhase(session.Done)
		e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "symmetric_demo", PeerID: peerID, Decision: credential.Denied, Reason: "malformed credential"})
		return frame.EncodeCredentialResponse(frame.CredentialResponseMsg{Status: frame.CredentialInvalidFormat}), err
	}
	if !bytes.Equal(cred.DeviceID, deviceID) {
		sess.SetPhase(session.Done)
		e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "symmetric_demo", PeerID: peerID, Decision: credential.Denied, Reason: "device id mismatch"})
		return frame.EncodeCredentialResponse(frame.CredentialResponseMsg{Status: frame.CredentialRejected}), errorcode.ErrAuthFailed
	}

	if verifyErr := credential.VerifyDemoCredential(cred, v.SignerPub, now); verifyErr != nil {
		sess.SetPhase(session.Done)
		e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "symmetric_demo", PeerID: peerID, Decision: credential.Denied, Reason: verifyErr.Error()})
		return frame.EncodeCredentialResponse(frame.CredentialResponseMsg{Status: demoCredentialStatus(verifyErr)}), verifyErr
	}

	if _, unlockErr := e.Actuator.Unlock(); unlockErr != nil {
		sess.SetPhase(session.Done)
		e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "symmetric_demo", PeerID: peerID, Decision: credential.Denied, Reason: "actuator fault"})
		return frame.EncodeCredentialResponse(frame.CredentialResponseMsg{Status: frame.CredentialRejected}), errorcode.ErrActuatorFault
	}

	e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "symmetric_demo", PeerID: peerID, Decision: credential.Granted, Reason: "verified"})
	sess.SetPhase(session.CredentialAccepted)
	return frame.EncodeCredentialResponse(frame.CredentialResponseMsg{Status: frame.CredentialSuccess}), nil
}

func demoCredentialStatus(err error) frame.CredentialStatus {
	switch err {
	case errorcode.ErrCredExpired:
		return frame.CredentialExpired
	case errorcode.ErrCredRevoked:
		return frame.CredentialRevoked
	default:
		return frame.CredentialRejected
	}
}
