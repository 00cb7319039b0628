package challenge

import (
	"fmt"

	"github.com/doorkeeper/intercom/internal/credential"
	intercrypto "github.com/doorkeeper/intercom/internal/crypto"
	"github.com/doorkeeper/intercom/internal/errorcode"
	"github.com/doorkeeper/intercom/internal/frame"
	"github.com/doorkeeper/intercom/internal/session"
	"github.com/doorkeeper/intercom/pkg/protocol"
)

// handleVariantB implements spec §4.4's Variant B (Diversified Symmetric) mutual-auth machine:
// central_challenge -> authenticated -> mutual_auth -> transfer -> done.
func (e *Engine) handleVariantB(sess *session.Session, v *protocol.DiversifiedCbc, raw []byte) ([]byte, error) {
	f, err := frame.DecodeVariantBFrame(raw)
	if err != nil {
		return nil, err
	}
	if err := sess.CheckSequence(f.Seq); err != nil {
		return nil, err
	}

	switch f.Tag {
	case frame.TagAuthRequest:
		return e.handleVariantBAuthRequest(sess, v, f)
	case frame.TagAuthConfirm:
		return e.handleVariantBAuthConfirm(sess, f)
	case frame.TagIVReset:
		return e.handleVariantBIVReset(sess, f)
	default:
		return nil, errorcode.ErrMalformedFrame
	}
}

// handleVariantBAuthRequest is spec §4.4 step 1-2: the mobile's opening DUID+Ra, answered with
// Ra' (proof the peripheral holds K) plus the peripheral's own challenge Rb.
func (e *Engine) handleVariantBAuthRequest(sess *session.Session, v *protocol.DiversifiedCbc, f frame.VariantBFrame) ([]byte, error) {
	if sess.Phase() != session.Idle {
		// Duplicate AUTH_REQUEST within the same session (spec §4.4 tie-break).
		return nil, errorcode.ErrInvalidState
	}
	if f.Start != frame.StartPlain {
		return nil, errorcode.ErrMalformedFrame
	}

	val, err := frame.DecodeAuthRequestValue(f.Value)
	if err != nil {
		return nil, err
	}
	key, err := v.KeyProvider.DeviceKey(val.DeviceUID)
	if err != nil {
		return nil, errorcode.ErrUnknownDevice
	}
	raPrime, err := intercrypto.EncryptECBBlock(key, val.Ra)
	if err != nil {
		return nil, errorcode.ErrInternal
	}
	rb, err := intercrypto.RandomBytes(16)
	if err != nil {
		return nil, errorcode.ErrInternal
	}

	sess.SetKeys(session.Keys{Diversified: key})
	sess.SetPendingChallenge(rb)
	// The mobile's DeviceUID is reused below to build the Transaction Certificate once mutual
	// auth completes; PeerPublicKey is Variant A's name for "the peer identity bytes negotiated
	// this session", equally apt here.
	sess.SetPeerPublicKey(val.DeviceUID)
	sess.SetPhase(session.AwaitAuth)

	challengeValue, err := frame.EncodeAuthChallengeValue(frame.AuthChallengeValue{RaPrime: raPrime, Rb: rb})
	if err != nil {
		return nil, err
	}
	return frame.EncodeVariantBFrame(frame.VariantBFrame{
		Start: frame.StartPlain,
		Tag:   frame.TagAuthChallenge,
		Seq:   sess.NextOutboundSeq(),
		Value: challengeValue,
	}, 0)
}

// handleVariantBAuthConfirm is spec §4.4 step 3-4: the mobile's Rb' proving it holds K too. Any
// bit-flip in Rb' must abort (spec §8 scenario 6's Ra' property applies symmetrically to Rb').
// Key possession is this variant's entire credential, so a verified confirm actuates the door
// immediately and returns a Transaction Certificate recording the event.
func (e *Engine) handleVariantBAuthConfirm(sess *session.Session, f frame.VariantBFrame) ([]byte, error) {
	if sess.Phase() != session.AwaitAuth {
		return nil, errorcode.ErrInvalidState
	}
	if f.Start != frame.StartPlain {
		return nil, errorcode.ErrMalformedFrame
	}

	val, err := frame.DecodeAuthConfirmValue(f.Value)
	if err != nil {
		return nil, err
	}
	rb := sess.TakePendingChallenge()
	key := sess.Keys().Diversified
	deviceUID := sess.PeerPublicKey()
	if rb == nil || key == nil {
		return nil, errorcode.ErrInvalidState
	}

	if err := credential.VerifyChallengeResponse(key, rb, val.RbPrime); err != nil {
		sess.SetPhase(session.Done)
		e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "diversified_cbc", PeerID: fmt.Sprintf("%x", deviceUID), Decision: credential.Denied, Reason: "key possession proof failed"})
		return nil, errorcode.ErrAuthFailed
	}
	sess.SetPhase(session.AuthenticatedOrReject)

	doorState, unlockErr := e.Actuator.Unlock()
	if unlockErr != nil {
		sess.SetPhase(session.Done)
		e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "diversified_cbc", PeerID: fmt.Sprintf("%x", deviceUID), Decision: credential.Denied, Reason: "actuator fault"})
		return nil, errorcode.ErrActuatorFault
	}

	cert, err := credential.IssueTransactionCertificate(key, deviceUID, 0x0001, []byte{byte(doorState)})
	if err != nil {
		sess.SetPhase(session.Done)
		return nil, errorcode.ErrInternal
	}
	encoded, err := credential.Encode(cert, key)
	if err != nil {
		sess.SetPhase(session.Done)
		return nil, errorcode.ErrInternal
	}

	e.Door.Audit.Record(credential.AuditEvent{DoorID: e.Door.DoorID, Variant: "diversified_cbc", PeerID: fmt.Sprintf("%x", deviceUID), Decision: credential.Granted, Reason: "mutual auth complete"})
	sess.SetPhase(session.CredentialAccepted)
	return frame.EncodeVariantBFrame(frame.VariantBFrame{
		Start: frame.StartEncrypted,
		Tag:   0,
		Seq:   sess.NextOutboundSeq(),
		Value: encoded,
	}, 0)
}

// handleVariantBIVReset implements spec §4.1's "sequence counter resets on ivreset": the peer's
// TagIVReset frame still has to pass the normal sequence check above (it's a regular frame, not an
// out-of-band control message), but processing it clears the baseline so whatever sequence number
// the peer's next frame carries becomes the new starting point, same as the very first frame on a
// fresh session. It carries no key material and is accepted in any phase.
func (e *Engine) handleVariantBIVReset(sess *session.Session, f frame.VariantBFrame) ([]byte, error) {
	sess.ResetSequence()
	return frame.EncodeVariantBFrame(frame.VariantBFrame{
		Start: f.Start,
		Tag:   frame.TagIVReset,
		Seq:   sess.NextOutboundSeq(),
	}, 0)
}
