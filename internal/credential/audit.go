package credential

import (
	"io"

	"github.com/rs/zerolog"
)

// Decision is a grant/deny outcome recorded in the audit trail.
type Decision string

const (
	Granted Decision = "granted"
	Denied  Decision = "denied"
)

// AuditEvent is one row of the credential verifier's audit trail (spec §4.5's "Grant with
// associated audit fields"). It never carries key material, plaintexts, or nonces — only the
// identifiers and outcome a door operator needs to reconstruct who was let in and when.
type AuditEvent struct {
	DoorID       string
	Variant      string
	CredentialID string
	PeerID       string
	Decision     Decision
	Reason       string
}

// Auditor writes AuditEvents as structured JSON lines. internal/log's leveled writer has no
// structured fields, so this sits alongside it rather than replacing it — ordinary operational
// logging still goes through internal/log; only the grant/deny trail goes through here.
type Auditor struct {
	log zerolog.Logger
}

// NewAuditor constructs an Auditor writing to w (a log file, stdout, or any io.Writer).
func NewAuditor(w io.Writer) *Auditor {
	return &Auditor{log: zerolog.New(w).With().Timestamp().Logger()}
}

// Record appends one audit event. A nil Auditor is valid and records nothing, so callers can wire
// an *Auditor through optional configuration without a separate "is audit logging enabled" check.
func (a *Auditor) Record(e AuditEvent) {
	if a == nil {
		return
	}
	a.log.Info().
		Str("door_id", e.DoorID).
		Str("variant", e.Variant).
		Str("credential_id", e.CredentialID).
		Str("peer_id", e.PeerID).
		Str("decision", string(e.Decision)).
		Str("reason", e.Reason).
		Msg("credential decision")
}
