// Package protocol defines the public surface shared by the peripheral engine and the central
// driver: the variant tagged sum, and an Error interface callers can use to decide whether a
// failure is worth retrying without string-matching error messages.
package protocol

import (
	"errors"
	"fmt"

	"github.com/doorkeeper/intercom/internal/errorcode"
)

// Error exposes methods useful for categorizing a protocol-layer failure.
type Error interface {
	error

	// MayHaveSucceeded returns true if the failure occurred after a command that might already have
	// been executed — for example, a response timeout after the request frame was sent: the door
	// may have unlocked even though no Response frame arrived to confirm it.
	MayHaveSucceeded() bool

	// Temporary returns true if the failure might be the result of a transient condition, such as
	// RateLimited or a Busy intercom still tearing down a previous session.
	Temporary() bool
}

var (
	ErrNotConnected = NewError("intercom not connected", false, false)
	ErrNoSession    = NewError("no authenticated session with this intercom", false, false)
	ErrRequiresKey  = NewError("no identity key available", false, false)
	ErrBadResponse  = errors.New("malformed or undecodable response")
	ErrUnknown      = NewError("intercom returned an unrecognized status code", false, false)
)

// CommandError is a general-purpose Error implementation.
type CommandError struct {
	Err               error
	PossibleSuccess   bool
	PossibleTemporary bool
}

// NewError constructs a CommandError wrapping a plain message.
func NewError(message string, mayHaveSucceeded, temporary bool) error {
	return &CommandError{Err: errors.New(message), PossibleSuccess: mayHaveSucceeded, PossibleTemporary: temporary}
}

func (e *CommandError) Error() string   { return e.Err.Error() }
func (e *CommandError) Unwrap() error   { return e.Err }
func (e *CommandError) MayHaveSucceeded() bool { return e.PossibleSuccess }
func (e *CommandError) Temporary() bool        { return e.PossibleTemporary }

// StatusError wraps an errorcode.StatusCode returned in a Response frame as a protocol.Error, so
// the central driver can decide whether to retry without inspecting the raw byte.
type StatusError struct {
	Status errorcode.StatusCode
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("intercom rejected request: %s", e.Status)
}

func (e *StatusError) MayHaveSucceeded() bool {
	return e.Status == errorcode.Success
}

// Temporary reports whether retrying the same credential without modification stands a chance of
// succeeding — RateLimited is the only status where nothing about the request itself was wrong.
func (e *StatusError) Temporary() bool {
	return e.Status == errorcode.RateLimited
}

// MayHaveSucceeded returns true if err is a protocol.Error indicating the command might already
// have executed.
func MayHaveSucceeded(err error) bool {
	var pErr Error
	return errors.As(err, &pErr) && pErr.MayHaveSucceeded()
}

// Temporary returns true if err is a protocol.Error indicating a possibly transient condition.
func Temporary(err error) bool {
	var pErr Error
	return errors.As(err, &pErr) && pErr.Temporary()
}

// ShouldRetry returns true if the caller should retry the operation that produced err.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var pErr Error
	if errors.As(err, &pErr) {
		if pErr.MayHaveSucceeded() {
			return false
		}
		return pErr.Temporary()
	}
	return false
}
