// Package errorcode maps the protocol's internal failure taxonomy (transport, crypto, policy, and
// runtime errors) onto the single-byte status codes carried in the Variant A response frame and
// the Symmetric-Key ERROR message.
package errorcode

import "fmt"

// StatusCode is the 1-byte response status defined in spec §6.
type StatusCode byte

const (
	Success          StatusCode = 0x00
	AuthFailed       StatusCode = 0x01
	Expired          StatusCode = 0x02
	NotYetValid      StatusCode = 0x03
	Revoked          StatusCode = 0x04
	WrongDoor        StatusCode = 0x05
	PermissionDenied StatusCode = 0x06
	RateLimited      StatusCode = 0x07
	Jammed           StatusCode = 0x08
	InternalError    StatusCode = 0x09
	ChallengeExpired StatusCode = 0x0A
)

var statusNames = map[StatusCode]string{
	Success:          "Success",
	AuthFailed:       "AuthFailed",
	Expired:          "Expired",
	NotYetValid:      "NotYetValid",
	Revoked:          "Revoked",
	WrongDoor:        "WrongDoor",
	PermissionDenied: "PermissionDenied",
	RateLimited:      "RateLimited",
	Jammed:           "Jammed",
	InternalError:    "InternalError",
	ChallengeExpired: "ChallengeExpired",
}

func (c StatusCode) String() string {
	if name, ok := statusNames[c]; ok {
		return name
	}
	return fmt.Sprintf("StatusCode(0x%02x)", byte(c))
}

// DoorState is the 1-byte door-state value reported alongside a Variant A response.
type DoorState byte

const (
	DoorUnknown  DoorState = 0x00
	DoorLocked   DoorState = 0x01
	DoorUnlocked DoorState = 0x02
	DoorAjar     DoorState = 0x03
	DoorForced   DoorState = 0x04
)

var doorStateNames = map[DoorState]string{
	DoorUnknown:  "Unknown",
	DoorLocked:   "Locked",
	DoorUnlocked: "Unlocked",
	DoorAjar:     "Ajar",
	DoorForced:   "Forced",
}

func (d DoorState) String() string {
	if name, ok := doorStateNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DoorState(0x%02x)", byte(d))
}

// Kind groups the protocol's internal error taxonomy (spec §7) independently of the wire status
// code, so a component can reason about "is this a crypto failure" without round-tripping through
// a byte value.
type Kind int

const (
	KindTransport Kind = iota
	KindCrypto
	KindPolicy
	KindRuntime
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "Transport"
	case KindCrypto:
		return "Crypto"
	case KindPolicy:
		return "Policy"
	case KindRuntime:
		return "Runtime"
	default:
		return "Unknown"
	}
}

// Error is the protocol-layer error type threaded through the session, challenge, and credential
// packages. Kind and Name are always present; Status is what, if anything, gets sent back over the wire —
// some transport errors (MalformedFrame, SequenceViolation) never reach the point of having a
// session key to encrypt a response under, and are signaled by disconnect instead.
type Error struct {
	Kind   Kind
	Name   string
	Status StatusCode
	Info   string
}

func (e *Error) Error() string {
	if e.Info == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Name, e.Info)
}

func transport(name string, status StatusCode) *Error {
	return &Error{Kind: KindTransport, Name: name, Status: status}
}

func crypto(name string, status StatusCode) *Error {
	return &Error{Kind: KindCrypto, Name: name, Status: status}
}

func policy(name string, status StatusCode) *Error {
	return &Error{Kind: KindPolicy, Name: name, Status: status}
}

func runtime(name string, status StatusCode) *Error {
	return &Error{Kind: KindRuntime, Name: name, Status: status}
}

// Sentinel errors for the taxonomy in spec §7. Transport errors that have no well-defined
// encrypted-response path carry Status=InternalError; callers that can't encrypt a response at
// all (no session key yet) disconnect instead of sending it.
var (
	ErrMalformedFrame    = transport("MalformedFrame", InternalError)
	ErrMtuExceeded       = transport("MtuExceeded", InternalError)
	ErrSequenceViolation = transport("SequenceViolation", InternalError)
	ErrInvalidState      = transport("InvalidState", InternalError)

	ErrInvalidPoint      = crypto("InvalidPoint", AuthFailed)
	ErrTagInvalid        = crypto("TagInvalid", AuthFailed)
	ErrBadPadding        = crypto("BadPadding", AuthFailed)
	ErrSignatureInvalid  = crypto("SignatureInvalid", AuthFailed)

	ErrAuthFailed       = policy("AuthFailed", AuthFailed)
	ErrCredExpired      = policy("Expired", Expired)
	ErrCredNotYetValid  = policy("NotYetValid", NotYetValid)
	ErrCredRevoked      = policy("Revoked", Revoked)
	ErrWrongDoor        = policy("WrongDoor", WrongDoor)
	ErrPermissionDenied = policy("PermissionDenied", PermissionDenied)
	ErrRateLimited      = policy("RateLimited", RateLimited)
	ErrUnknownDevice    = policy("UnknownDevice", AuthFailed)
	ErrInvalidCredential = policy("InvalidCredential", AuthFailed)

	ErrChallengeExpired = runtime("ChallengeExpired", ChallengeExpired)
	ErrBusy              = runtime("Busy", InternalError)
	ErrActuatorFault      = runtime("ActuatorFault", Jammed)
	ErrInternal           = runtime("Internal", InternalError)
)
