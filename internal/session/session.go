// Package session implements the peripheral's per-connection session manager: nonce lifetime,
// rate-limit bucket, negotiated keys, and teardown/zeroization. Exactly one session may be live at
// a time (spec §3/§5) — the BLE stack itself is out of scope, so a "connection" here is identified
// by an opaque peer handle the transport layer assigns.
package session

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/doorkeeper/intercom/internal/crypto"
	"github.com/doorkeeper/intercom/internal/errorcode"
)

// NonceLifetime is the 30-second challenge validity window from spec §4.3.
const NonceLifetime = 30 * time.Second

// NonceSize is the length of the Challenge-characteristic nonce (spec §3).
const NonceSize = 16

// Phase is the session's position in the per-connection state machine (spec §3).
type Phase int

const (
	Idle Phase = iota
	NonceIssued
	AwaitAuth
	AuthenticatedOrReject
	CredentialAccepted
	Done
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case NonceIssued:
		return "NonceIssued"
	case AwaitAuth:
		return "AwaitAuth"
	case AuthenticatedOrReject:
		return "AuthenticatedOrReject"
	case CredentialAccepted:
		return "CredentialAccepted"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Keys holds the directional session keys negotiated for the current connection, whichever
// variant produced them. Only the fields relevant to the active variant are populated.
type Keys struct {
	// MobileToIntercom / IntercomToMobile are the Variant A AES-256-GCM directional keys, or nil.
	MobileToIntercom []byte
	IntercomToMobile []byte
	// Diversified is the Variant B / Symmetric-Key AES-128 device key, or nil.
	Diversified []byte
}

// Zero scrubs every key in k, satisfying the zeroization invariant at teardown.
func (k *Keys) Zero() {
	crypto.Zero(k.MobileToIntercom)
	crypto.Zero(k.IntercomToMobile)
	crypto.Zero(k.Diversified)
}

// Session is one peripheral connection's mutable state. All access goes through its methods,
// which hold lock only across the state mutation itself — never across I/O — mirroring the
// teacher's session goroutine-safety discipline.
type Session struct {
	mu sync.Mutex

	peerHandle string
	mtu        int
	phase      Phase

	currentNonce []byte
	issuedAt     time.Time
	nonceTimer   *time.Timer

	keys      Keys
	peerPub   []byte
	lastSeqIn *int // nil until the first frame has been accepted, per direction

	pendingRb []byte // Variant B: the peripheral's own challenge, awaiting the mobile's echo
	lastSeqOut byte  // next sequence number to stamp on an outbound Variant B / Symmetric-Key frame

	rateLimiter *rate.Limiter
}

func newSession(peerHandle string, mtu int, limiter *rate.Limiter) *Session {
	return &Session{
		peerHandle:  peerHandle,
		mtu:         mtu,
		phase:       Idle,
		rateLimiter: limiter,
	}
}

// PeerHandle returns the opaque transport-layer connection identifier.
func (s *Session) PeerHandle() string {
	return s.peerHandle
}

// MTU returns the negotiated ATT MTU.
func (s *Session) MTU() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mtu
}

// SetMTU records the MTU negotiated by the transport layer post-connect.
func (s *Session) SetMTU(mtu int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mtu = mtu
}

// Phase returns the session's current state.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// IssueNonce generates a fresh 16-byte nonce, records issued_at, starts the 30-second expiry
// timer, and transitions to NonceIssued. onExpire is invoked from the timer's own goroutine if the
// nonce is still live when it fires; it must not block.
func (s *Session) IssueNonce(onExpire func()) ([]byte, error) {
	nonce, err := crypto.RandomBytes(NonceSize)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nonceTimer != nil {
		s.nonceTimer.Stop()
	}
	s.currentNonce = nonce
	s.issuedAt = time.Now()
	s.phase = NonceIssued
	s.nonceTimer = time.AfterFunc(NonceLifetime, func() {
		s.mu.Lock()
		expired := s.phase == NonceIssued
		if expired {
			s.currentNonce = nil
			s.phase = Done
		}
		s.mu.Unlock()
		if expired && onExpire != nil {
			onExpire()
		}
	})
	return append([]byte{}, nonce...), nil
}

// CurrentNonce returns the live nonce, or nil if none is issued. Repeated subscriptions re-read
// the same nonce without regenerating it (spec §4.3).
func (s *Session) CurrentNonce() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentNonce == nil {
		return nil
	}
	return append([]byte{}, s.currentNonce...)
}

// ValidateAndConsumeNonce checks that nonce matches the live one and that it has not exceeded its
// 30-second lifetime, then invalidates it (single-use, spec §8). The caller supplies "now" so
// tests can simulate clock skew deterministically.
func (s *Session) ValidateAndConsumeNonce(now time.Time, nonce []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.currentNonce == nil || s.phase != NonceIssued {
		return errorcode.ErrChallengeExpired
	}
	if now.Sub(s.issuedAt) >= NonceLifetime {
		s.currentNonce = nil
		s.phase = Done
		return errorcode.ErrChallengeExpired
	}
	if !constantTimeEqual(nonce, s.currentNonce) {
		return errorcode.ErrAuthFailed
	}
	s.currentNonce = nil
	return nil
}

// InvalidateNonce clears the live Challenge nonce unconditionally, without requiring a match —
// used once an auth attempt has been verified (successfully or not), per spec §4.4 steps 8-9's
// "invalidate N_c" on both the success and failure paths.
func (s *Session) InvalidateNonce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nonceTimer != nil {
		s.nonceTimer.Stop()
	}
	crypto.Zero(s.currentNonce)
	s.currentNonce = nil
}

// SetPhase transitions the session to phase.
func (s *Session) SetPhase(phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
}

// SetPeerPublicKey records the mobile's ephemeral public key (Variant A) once extracted from the
// Auth frame, prior to validating the credential's binding to it (spec §4.5 step 6).
func (s *Session) SetPeerPublicKey(pub []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerPub = append([]byte{}, pub...)
}

// PeerPublicKey returns the recorded mobile public key, or nil.
func (s *Session) PeerPublicKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peerPub == nil {
		return nil
	}
	return append([]byte{}, s.peerPub...)
}

// SetKeys records the negotiated session keys for the current connection.
func (s *Session) SetKeys(keys Keys) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = keys
}

// Keys returns the negotiated session keys.
func (s *Session) Keys() Keys {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys
}

// SetPendingChallenge records the peripheral's own Variant B challenge (Rb) between issuing it
// and verifying the mobile's response, per spec §4.4 steps 2-4.
func (s *Session) SetPendingChallenge(rb []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingRb = append([]byte{}, rb...)
}

// TakePendingChallenge returns and clears the pending Variant B challenge, or nil if none is set.
func (s *Session) TakePendingChallenge() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	rb := s.pendingRb
	s.pendingRb = nil
	return rb
}

// CheckSequence enforces the strict prev+1 (mod 256) sequence discipline (spec §4.4/§8): the
// first accepted frame may carry any sequence number, establishing the baseline; every frame after
// that must be exactly one more than the last, mod 256.
func (s *Session) CheckSequence(seq byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastSeqIn == nil {
		v := int(seq)
		s.lastSeqIn = &v
		return nil
	}
	want := byte((*s.lastSeqIn + 1) % 256)
	if seq != want {
		return errorcode.ErrSequenceViolation
	}
	v := int(seq)
	s.lastSeqIn = &v
	return nil
}

// ResetSequence clears the sequence baseline, used on an `ivreset` Variant B tag.
func (s *Session) ResetSequence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeqIn = nil
}

// NextOutboundSeq returns the next sequence number to stamp on an outbound Variant B /
// Symmetric-Key frame, incrementing mod 256.
func (s *Session) NextOutboundSeq() byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.lastSeqOut
	s.lastSeqOut++
	return v
}

// Allow consults the session's per-peer rate-limit bucket, returning errorcode.ErrRateLimited if
// the peer is over its auth-attempt budget. The shared global bucket is not consulted here; see
// Manager.AllowGlobal.
func (s *Session) Allow() error {
	if s.rateLimiter == nil {
		return nil
	}
	if !s.rateLimiter.Allow() {
		return errorcode.ErrRateLimited
	}
	return nil
}

// Teardown invalidates all per-session state — nonce, derived keys, pending counters — and
// zeroizes key buffers, per spec §4.3's on_disconnect contract and §8's zeroization invariant.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nonceTimer != nil {
		s.nonceTimer.Stop()
	}
	crypto.Zero(s.currentNonce)
	s.currentNonce = nil
	s.keys.Zero()
	s.keys = Keys{}
	crypto.Zero(s.peerPub)
	s.peerPub = nil
	crypto.Zero(s.pendingRb)
	s.pendingRb = nil
	s.lastSeqIn = nil
	s.lastSeqOut = 0
	s.phase = Idle
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
