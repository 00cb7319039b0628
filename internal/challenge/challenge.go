// Package challenge orchestrates the authentication round-trip of spec.md §4.4: it dispatches on
// the negotiated protocol variant, drives the session's phase transitions, hands the decrypted
// credential to internal/credential for verification, and triggers door actuation on success. It
// holds no state of its own — all of that lives in the per-connection *session.Session passed into
// every call.
package challenge

import (
	"time"

	"github.com/doorkeeper/intercom/internal/credential"
	"github.com/doorkeeper/intercom/internal/errorcode"
	"github.com/doorkeeper/intercom/internal/session"
	"github.com/doorkeeper/intercom/pkg/protocol"
)

// Actuator drives the physical door hardware. A real deployment's GPIO/relay driver implements
// it; tests use a fake that records whether it was called.
type Actuator interface {
	// Unlock actuates the door and reports the state it settled into.
	Unlock() (errorcode.DoorState, error)
}

// DoorConfig carries the policy inputs spec §4.5's credential checks need: the door's own
// identity, any aliases it should also accept, and the pluggable revocation/permission hooks.
type DoorConfig struct {
	DoorID            string
	DoorAliases       []string
	Revocation        credential.RevocationChecker
	PermissionAllowed func(credential.Claims) bool
	// Audit records Grant/Deny decisions for every variant. Nil disables audit logging.
	Audit *credential.Auditor
}

// Engine is the peripheral's challenge/response orchestrator, one per intercom identity (not one
// per connection — the session itself is threaded through each call, per spec.md §9's explicit
// elimination of ambient per-connection singletons).
type Engine struct {
	Door     DoorConfig
	Actuator Actuator
}

// NewEngine constructs an Engine.
func NewEngine(door DoorConfig, actuator Actuator) *Engine {
	return &Engine{Door: door, Actuator: actuator}
}

// HandleAuth routes an inbound Auth-characteristic write to the handler for v's variant. raw is
// the undecoded frame; now lets tests control the clock used for credential validity checks. The
// returned bytes, if non-nil, are the exact frame to write back to the Response/DataTransfer
// characteristic; a non-nil error alongside a nil frame means no response can be constructed yet
// (no session key exists) and the caller should disconnect, per spec §7's propagation policy.
func (e *Engine) HandleAuth(sess *session.Session, v protocol.Variant, raw []byte, now time.Time) ([]byte, error) {
	if a, ok := v.EcdhGCM(); ok {
		return e.handleVariantA(sess, a, raw, now)
	}
	if b, ok := v.DiversifiedCbc(); ok {
		return e.handleVariantB(sess, b, raw)
	}
	if d, ok := v.SymmetricDemo(); ok {
		return e.handleSymmetricDemo(sess, d, raw, now)
	}
	return nil, errorcode.ErrInternal
}
