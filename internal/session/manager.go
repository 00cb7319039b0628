package session

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/doorkeeper/intercom/internal/errorcode"
)

// Limits configures the token buckets spec §3/§4.4 step 3 requires: a per-peer-key bucket and one
// global bucket shared by every peer, so a single malicious peer can't exhaust the global budget
// at another peer's expense faster than its own bucket allows, while still bounding total crypto
// work across all peers.
type Limits struct {
	// PerPeerRate and PerPeerBurst configure each peer's individual bucket.
	PerPeerRate  rate.Limit
	PerPeerBurst int
	// GlobalRate and GlobalBurst configure the bucket shared across all peers.
	GlobalRate  rate.Limit
	GlobalBurst int
}

// DefaultLimits matches the "at most N auth attempts per rolling window W" shape spec §3
// describes without pinning exact values: five attempts per ten seconds per peer, fifty per ten
// seconds globally.
func DefaultLimits() Limits {
	return Limits{
		PerPeerRate:  rate.Every(2 * time.Second),
		PerPeerBurst: 5,
		GlobalRate:   rate.Every(200 * time.Millisecond),
		GlobalBurst:  50,
	}
}

// Manager enforces "exactly one live peripheral session, full stop" (spec §4.3/§9): the BLE
// controller and transaction handler's ambient-singleton pattern in the teacher is replaced with
// this explicit value, threaded through the I/O boundary rather than held as process-wide state.
type Manager struct {
	mu      sync.Mutex
	active  *Session
	limits  Limits
	global  *rate.Limiter
	perPeer map[string]*rate.Limiter
}

// NewManager constructs a Manager with the given rate-limit configuration.
func NewManager(limits Limits) *Manager {
	return &Manager{
		limits:  limits,
		global:  rate.NewLimiter(limits.GlobalRate, limits.GlobalBurst),
		perPeer: make(map[string]*rate.Limiter),
	}
}

// Connect allocates a new session for peerHandle, rejecting the attempt with errorcode.ErrBusy if
// a session is already live (spec §4.3's on_connect contract and §8's "One live session" property).
func (m *Manager) Connect(peerHandle string, mtu int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return nil, errorcode.ErrBusy
	}
	limiter, ok := m.perPeer[peerHandle]
	if !ok {
		limiter = rate.NewLimiter(m.limits.PerPeerRate, m.limits.PerPeerBurst)
		m.perPeer[peerHandle] = limiter
	}
	s := newSession(peerHandle, mtu, limiter)
	m.active = s
	return s, nil
}

// Active returns the single live session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// AllowGlobal consults the shared global bucket, independent of any individual peer's bucket.
func (m *Manager) AllowGlobal() error {
	if !m.global.Allow() {
		return errorcode.ErrRateLimited
	}
	return nil
}

// Disconnect tears down the active session (if it is the one named by peerHandle) and frees the
// manager to accept a new connection, per spec §4.3's on_disconnect contract.
func (m *Manager) Disconnect(peerHandle string) {
	m.mu.Lock()
	active := m.active
	if active != nil && active.PeerHandle() == peerHandle {
		m.active = nil
	}
	m.mu.Unlock()

	if active != nil && active.PeerHandle() == peerHandle {
		active.Teardown()
	}
}
