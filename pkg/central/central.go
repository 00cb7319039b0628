// Package central implements the mobile side of the protocol: the typed-event state machine that
// drives a BLE connection through scan/connect/discover/subscribe (handled by pkg/connector/ble
// before a Central exists) and then authenticate/send-credential/complete, mirroring the
// teacher's pkg/vehicle.Vehicle + internal/dispatcher pairing generalized from "send an arbitrary
// vehicle command" to "present one credential and get one grant/deny decision back".
package central

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/google/uuid"

	intercrypto "github.com/doorkeeper/intercom/internal/crypto"
	"github.com/doorkeeper/intercom/internal/errorcode"
	"github.com/doorkeeper/intercom/internal/frame"
	"github.com/doorkeeper/intercom/internal/log"
	"github.com/doorkeeper/intercom/pkg/connector"
	"github.com/doorkeeper/intercom/pkg/protocol"
)

// State is the central driver's position in the per-attempt state machine (spec.md §4.6).
type State int

const (
	Idle State = iota
	Authenticating
	SendingCredential
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Authenticating:
		return "Authenticating"
	case SendingCredential:
		return "SendingCredential"
	case Complete:
		return "Complete"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Transport is what a Central needs from an already-connected, already-subscribed link: frame
// exchange (connector.Connector) plus the Challenge notification stream
// (connector.ChallengeSource). pkg/connector/ble.Connection satisfies both.
type Transport interface {
	connector.Connector
	connector.ChallengeSource
}

// Central drives one authentication attempt to completion over an established Transport. It is
// not reusable across attempts — construct a new Central (and a new Transport) per connection,
// matching the peripheral's own "exactly one live session" invariant from the other side of the
// link.
type Central struct {
	conn  Transport
	state State
}

// New constructs a Central bound to an established connection.
func New(conn Transport) *Central {
	return &Central{conn: conn, state: Idle}
}

// State returns the driver's current position in the state machine.
func (c *Central) State() State {
	return c.state
}

func (c *Central) waitChallenge(ctx context.Context) ([]byte, error) {
	select {
	case nonce := <-c.conn.Challenge():
		return nonce, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Central) exchange(ctx context.Context, out []byte) ([]byte, error) {
	requestID := uuid.New()
	log.Debug("central: sending request %s (%d bytes)", requestID, len(out))
	if err := c.conn.Send(ctx, out); err != nil {
		return nil, err
	}
	select {
	case resp := <-c.conn.Receive():
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// EcdhGCMConfig carries the Variant A client-side parameters: the central's own long-lived P-256
// identity key (whose public bytes must equal the credential's bound device_pub_key claim) and the
// backend-issued JWT credential string.
type EcdhGCMConfig struct {
	PrivateKey        protocol.ECDHPrivateKey
	IntercomPublicKey []byte
	Credential        string
}

// UnlockEcdhGCM drives the Variant A handshake: wait for N_c, derive session keys, seal the
// credential, and interpret the Response frame.
func (c *Central) UnlockEcdhGCM(ctx context.Context, cfg EcdhGCMConfig) (errorcode.DoorState, error) {
	c.state = Authenticating
	nonceC, err := c.waitChallenge(ctx)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}

	shared, err := cfg.PrivateKey.Exchange(cfg.IntercomPublicKey)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, protocol.NewError(fmt.Sprintf("ecdh exchange failed: %s", err), false, false)
	}
	km2i, ki2m, err := intercrypto.DeriveSessionKeys(shared, nonceC)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}

	nonceM, err := intercrypto.RandomBytes(intercrypto.NonceSize)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}
	plaintext := frame.EncodeAuthRequestPayload(frame.AuthRequestPayload{Credential: cfg.Credential})
	sealed, err := intercrypto.Seal(km2i, nonceM, plaintext, []byte{frame.VariantAVersion})
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}
	authFrame, err := frame.EncodeAuthFrame(frame.AuthFrame{
		Version:    frame.VariantAVersion,
		PubM:       cfg.PrivateKey.PublicBytes(),
		NonceM:     nonceM,
		Ciphertext: sealed[:len(sealed)-intercrypto.TagSize],
		Tag:        sealed[len(sealed)-intercrypto.TagSize:],
	})
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}

	c.state = SendingCredential
	raw, err := c.exchange(ctx, authFrame)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}
	respFrame, err := frame.DecodeResponseFrame(raw)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, protocol.ErrBadResponse
	}
	respPlaintext, err := intercrypto.Open(ki2m, respFrame.NonceI, append(append([]byte{}, respFrame.Ciphertext...), respFrame.Tag...), nil)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, protocol.ErrBadResponse
	}
	body, err := frame.DecodeResponseBody(respPlaintext)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, protocol.ErrBadResponse
	}
	status := errorcode.StatusCode(body.Status)
	doorState := errorcode.DoorState(body.DoorState)
	if status != errorcode.Success {
		c.state = Failed
		return doorState, &protocol.StatusError{Status: status}
	}
	c.state = Complete
	return doorState, nil
}

// DiversifiedCbcConfig carries the Variant B client-side parameters.
type DiversifiedCbcConfig struct {
	DeviceUID []byte
	Key       []byte // pre-shared diversified device key
}

// UnlockDiversifiedCbc drives the Variant B mutual-auth handshake: AuthRequest, AuthChallenge,
// AuthConfirm, then the intercom's encrypted result frame.
func (c *Central) UnlockDiversifiedCbc(ctx context.Context, cfg DiversifiedCbcConfig) (errorcode.DoorState, error) {
	c.state = Authenticating
	ra, err := intercrypto.RandomBytes(16)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}
	reqValue, err := frame.EncodeAuthRequestValue(frame.AuthRequestValue{DeviceUID: cfg.DeviceUID, Ra: ra})
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}
	reqFrame, err := frame.EncodeVariantBFrame(frame.VariantBFrame{
		Start: frame.StartPlain, Tag: frame.TagAuthRequest, Seq: 0, Value: reqValue,
	}, 0)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}

	raw, err := c.exchange(ctx, reqFrame)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}
	challengeFrame, err := frame.DecodeVariantBFrame(raw)
	if err != nil || challengeFrame.Tag != frame.TagAuthChallenge {
		c.state = Failed
		return errorcode.DoorUnknown, protocol.ErrBadResponse
	}
	challenge, err := frame.DecodeAuthChallengeValue(challengeFrame.Value)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, protocol.ErrBadResponse
	}

	wantRaPrime, err := intercrypto.EncryptECBBlock(cfg.Key, ra)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}
	if subtle.ConstantTimeCompare(wantRaPrime, challenge.RaPrime) != 1 {
		c.state = Failed
		return errorcode.DoorUnknown, protocol.NewError("intercom failed to prove key possession", false, false)
	}

	rbPrime, err := intercrypto.EncryptECBBlock(cfg.Key, challenge.Rb)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}
	confirmValue, err := frame.EncodeAuthConfirmValue(frame.AuthConfirmValue{RbPrime: rbPrime})
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}
	confirmFrame, err := frame.EncodeVariantBFrame(frame.VariantBFrame{
		Start: frame.StartPlain, Tag: frame.TagAuthConfirm, Seq: 1, Value: confirmValue,
	}, 0)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}

	c.state = SendingCredential
	raw, err = c.exchange(ctx, confirmFrame)
	if err != nil {
		c.state = Failed
		return errorcode.DoorUnknown, err
	}
	resultFrame, err := frame.DecodeVariantBFrame(raw)
	if err != nil || resultFrame.Start != frame.StartEncrypted {
		c.state = Failed
		return errorcode.DoorUnknown, protocol.ErrBadResponse
	}
	c.state = Complete
	return errorcode.DoorUnlocked, nil
}

// SymmetricDemoConfig carries the Symmetric-Key-variant client-side parameters.
type SymmetricDemoConfig struct {
	DeviceID          []byte
	DiversifiedKey    []byte // Enc_DK, pre-derived from the site master key and DeviceID
	CredentialPayload []byte // EncodeDemoCredential(...) output
}

// UnlockSymmetricDemo drives the Symmetric-Key demo's two-round handshake.
func (c *Central) UnlockSymmetricDemo(ctx context.Context, cfg SymmetricDemoConfig) error {
	c.state = Authenticating
	nonceM, err := intercrypto.RandomBytes(16)
	if err != nil {
		c.state = Failed
		return err
	}
	iv, err := intercrypto.RandomBytes(16)
	if err != nil {
		c.state = Failed
		return err
	}
	encNonce, err := intercrypto.EncryptCBCNoPad(cfg.DiversifiedKey, iv, nonceM)
	if err != nil {
		c.state = Failed
		return err
	}
	reqRaw, err := frame.EncodeAuthRequest(frame.AuthRequestMsg{DeviceID: cfg.DeviceID, IV: iv, EncryptedNonce: encNonce})
	if err != nil {
		c.state = Failed
		return err
	}

	raw, err := c.exchange(ctx, reqRaw)
	if err != nil {
		c.state = Failed
		return err
	}
	msgType, body, err := frame.DecodeMessageType(raw)
	if err != nil || msgType != frame.MsgAuthResponse {
		c.state = Failed
		return protocol.ErrBadResponse
	}
	respMsg, err := frame.DecodeAuthResponse(body)
	if err != nil {
		c.state = Failed
		return protocol.ErrBadResponse
	}
	plaintext, err := intercrypto.DecryptCBCNoPad(cfg.DiversifiedKey, respMsg.IV, respMsg.EncryptedNonces)
	if err != nil {
		c.state = Failed
		return err
	}
	if len(plaintext) < 16 || subtle.ConstantTimeCompare(plaintext[:16], nonceM) != 1 {
		c.state = Failed
		return protocol.NewError("intercom did not echo Nonce_M", false, false)
	}

	c.state = SendingCredential
	credIV, err := intercrypto.RandomBytes(16)
	if err != nil {
		c.state = Failed
		return err
	}
	encCred, err := intercrypto.EncryptCBC(cfg.DiversifiedKey, credIV, cfg.CredentialPayload)
	if err != nil {
		c.state = Failed
		return err
	}
	credRaw, err := frame.EncodeCredential(frame.CredentialMsg{IV: credIV, EncryptedPayload: encCred})
	if err != nil {
		c.state = Failed
		return err
	}

	raw, err = c.exchange(ctx, credRaw)
	if err != nil {
		c.state = Failed
		return err
	}
	msgType, body, err = frame.DecodeMessageType(raw)
	if err != nil || msgType != frame.MsgCredentialResponse {
		c.state = Failed
		return protocol.ErrBadResponse
	}
	respStatus, err := frame.DecodeCredentialResponse(body)
	if err != nil {
		c.state = Failed
		return protocol.ErrBadResponse
	}
	if respStatus.Status != frame.CredentialSuccess {
		c.state = Failed
		return protocol.NewError(fmt.Sprintf("intercom rejected credential: status %d", respStatus.Status), false, false)
	}
	c.state = Complete
	return nil
}

// WithTimeout is a small convenience wrapper matching the teacher's ctx.Deadline()-driven retry
// idiom: callers wrap each attempt in a bounded context rather than relying on the transport to
// enforce one.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
