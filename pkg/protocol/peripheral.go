package protocol

import "sync"

// PeripheralEngine is the single, long-lived object a peripheral daemon constructs once at boot.
// It owns the negotiated Variant — the identity key, master key, or signer pin the daemon was
// provisioned with — behind a mutex, since that's the one piece of state that outlives every
// connection and could otherwise race against a concurrent key-rotation operator command.
// Per-connection state (the session, its rate-limit buckets) is internal/session.Manager's job,
// not this type's; PeripheralEngine only protects the long-lived identity material.
type PeripheralEngine struct {
	mu      sync.Mutex
	variant Variant
}

// NewPeripheralEngine constructs a PeripheralEngine for v.
func NewPeripheralEngine(v Variant) *PeripheralEngine {
	return &PeripheralEngine{variant: v}
}

// Variant returns the engine's negotiated variant, safe for concurrent use with Rotate.
func (e *PeripheralEngine) Variant() Variant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.variant
}

// Rotate swaps in a new Variant, e.g. after a master-key rotation or identity-key reissue. A
// connection already in flight keeps using the Variant value it already read; only subsequent
// Variant() calls see the rotated one.
func (e *PeripheralEngine) Rotate(v Variant) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.variant = v
}
