package challenge

import (
	"time"

	"github.com/doorkeeper/intercom/internal/credential"
	intercrypto "github.com/doorkeeper/intercom/internal/crypto"
	"github.com/doorkeeper/intercom/internal/errorcode"
	"github.com/doorkeeper/intercom/internal/frame"
	"github.com/doorkeeper/intercom/internal/session"
	"github.com/doorkeeper/intercom/pkg/protocol"
)

// handleVariantA implements spec §4.4's Variant A (ECDH + AES-GCM) round-trip, steps 1-9.
func (e *Engine) handleVariantA(sess *session.Session, v *protocol.EcdhGCM, raw []byte, now time.Time) ([]byte, error) {
	if sess.Phase() != session.NonceIssued {
		return nil, errorcode.ErrInvalidState
	}

	f, err := frame.DecodeAuthFrame(raw)
	if err != nil {
		return nil, err
	}
	if !intercrypto.ValidPublicKey(f.PubM) {
		return nil, errorcode.ErrAuthFailed
	}

	// Step 3: consult the rate bucket before any expensive crypto. A pre-crypto rejection keeps
	// the nonce live, per spec's explicit permission to do so.
	if err := sess.Allow(); err != nil {
		return nil, err
	}

	nonceC := sess.CurrentNonce()
	if nonceC == nil {
		return nil, errorcode.ErrChallengeExpired
	}

	shared, err := v.PrivateKey.Exchange(f.PubM)
	if err != nil {
		sess.InvalidateNonce()
		sess.SetPhase(session.Done)
		return nil, errorcode.ErrAuthFailed
	}
	km2i, ki2m, err := intercrypto.DeriveSessionKeys(shared, nonceC)
	if err != nil {
		sess.InvalidateNonce()
		sess.SetPhase(session.Done)
		return nil, errorcode.ErrInternal
	}

	sealed := append(append([]byte{}, f.Ciphertext...), f.Tag...)
	plaintext, err := intercrypto.Open(km2i, f.NonceM, sealed, []byte{f.Version})
	if err != nil {
		sess.InvalidateNonce()
		sess.SetPhase(session.Done)
		return e.sealFailure(ki2m, errorcode.ErrAuthFailed)
	}

	payload, err := frame.DecodeAuthRequestPayload(plaintext)
	if err != nil {
		sess.InvalidateNonce()
		sess.SetPhase(session.Done)
		return e.sealFailure(ki2m, err)
	}

	sess.SetPeerPublicKey(f.PubM)
	doorState, grantErr := e.grantVariantA(sess, v, payload, now)

	sess.InvalidateNonce()
	if grantErr == nil {
		sess.SetPhase(session.CredentialAccepted)
		return e.sealResponse(ki2m, errorcode.Success, doorState, nil)
	}
	sess.SetPhase(session.Done)
	return e.sealFailure(ki2m, grantErr)
}

// grantVariantA runs the credential verifier and, on success, actuates the door. A non-nil error
// is always an *errorcode.Error carrying the StatusCode to report back.
func (e *Engine) grantVariantA(sess *session.Session, v *protocol.EcdhGCM, payload frame.AuthRequestPayload, now time.Time) (errorcode.DoorState, error) {
	authorityPub, err := intercrypto.UnmarshalP256PublicKey(v.SignerPub)
	if err != nil {
		e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "ecdh_gcm", Decision: credential.Denied, Reason: "invalid authority key"})
		return errorcode.DoorUnknown, errorcode.ErrInternal
	}
	cred, err := credential.ParseCredential(payload.Credential, authorityPub)
	if err != nil {
		e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "ecdh_gcm", Decision: credential.Denied, Reason: err.Error()})
		return errorcode.DoorUnknown, err
	}
	err = cred.Verify(credential.VerifyOptions{
		Now:               now,
		DoorID:            e.Door.DoorID,
		DoorAliases:       e.Door.DoorAliases,
		SessionPubM:       sess.PeerPublicKey(),
		Revocation:        e.Door.Revocation,
		PermissionAllowed: e.Door.PermissionAllowed,
	})
	if err != nil {
		e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "ecdh_gcm", CredentialID: cred.Claims.ID, Decision: credential.Denied, Reason: err.Error()})
		return errorcode.DoorUnknown, err
	}

	doorState, err := e.Actuator.Unlock()
	if err != nil {
		e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "ecdh_gcm", CredentialID: cred.Claims.ID, Decision: credential.Denied, Reason: "actuator fault"})
		return doorState, errorcode.ErrActuatorFault
	}
	e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "ecdh_gcm", CredentialID: cred.Claims.ID, Decision: credential.Granted, Reason: "verified"})
	return doorState, nil
}

// sealResponse encrypts a ResponseBody under ki2m with a fresh Nonce_I, per spec §4.4 step 9's
// "encrypt and send ... encrypted under K_i2m with a fresh Nonce_I".
func (e *Engine) sealResponse(ki2m []byte, status errorcode.StatusCode, doorState errorcode.DoorState, extended []byte) ([]byte, error) {
	nonceI, err := intercrypto.RandomBytes(intercrypto.NonceSize)
	if err != nil {
		return nil, errorcode.ErrInternal
	}
	plaintext := frame.EncodeResponseBody(frame.ResponseBody{
		Status:    byte(status),
		DoorState: byte(doorState),
		Extended:  extended,
	})
	sealed, err := intercrypto.Seal(ki2m, nonceI, plaintext, nil)
	if err != nil {
		return nil, errorcode.ErrInternal
	}
	ciphertext := sealed[:len(sealed)-intercrypto.TagSize]
	tag := sealed[len(sealed)-intercrypto.TagSize:]
	return frame.EncodeResponseFrame(frame.ResponseFrame{NonceI: nonceI, Ciphertext: ciphertext, Tag: tag}, 0)
}

// sealFailure encrypts a failure ResponseBody carrying cause's StatusCode, then returns both the
// response frame and cause so the caller both sends the frame and terminates the session — spec
// §7's "produces a typed, encrypted failure response and terminates the session".
func (e *Engine) sealFailure(ki2m []byte, cause error) ([]byte, error) {
	status := errorcode.AuthFailed
	if ce, ok := cause.(*errorcode.Error); ok {
		status = ce.Status
	}
	out, sealErr := e.sealResponse(ki2m, status, errorcode.DoorUnknown, nil)
	if sealErr != nil {
		return nil, sealErr
	}
	return out, cause
}
