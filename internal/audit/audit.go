// Package audit implements the tamper-evident security audit log: every
// authentication attempt, vault state transition, key generation,
// rotation, and armor/unarmor call appends a Record whose Hash chains to
// the prior record for the same session, so altering or removing a past
// record breaks the chain for everything after it.
//
// Modeled on original_source/packages/vault/src/security/audit_logging.rs's
// AuditLogEntry/checksum concept, restructured as an explicit hash chain
// (PrevHash folded into each record's Hash) rather than a standalone
// per-entry checksum, and on the canonical-string-then-sign discipline in
// other_examples' pass-cli audit logger (Sign over a fixed field order).
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/cryptkit/vault/internal/crypterrors"
)

// EventType names a class of security-relevant event.
type EventType string

const (
	EventAuthenticationAttempt EventType = "authentication_attempt"
	EventVaultStateTransition  EventType = "vault_state_transition"
	EventKeyGeneration         EventType = "key_generation"
	EventKeyRotation           EventType = "key_rotation"
	EventArmor                 EventType = "armor"
	EventUnarmor               EventType = "unarmor"
)

// Record is one tamper-evident audit log entry.
type Record struct {
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	EventType EventType              `json:"event_type"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	PrevHash  string                 `json:"prev_hash"`
	Hash      string                 `json:"hash"`
}

// canonicalFields is the subset of Record that feeds the hash, marshaled
// with fixed field order via struct tags so the same logical record always
// hashes identically regardless of map iteration order elsewhere.
type canonicalFields struct {
	Timestamp string                 `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	EventType EventType              `json:"event_type"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	PrevHash  string                 `json:"prev_hash"`
}

func computeHash(r Record) (string, error) {
	canon := canonicalFields{
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
		SessionID: r.SessionID,
		EventType: r.EventType,
		Detail:    r.Detail,
		PrevHash:  r.PrevHash,
	}
	data, err := json.Marshal(canon)
	if err != nil {
		return "", crypterrors.Wrap(crypterrors.Internal, "marshal audit record for hashing", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// genesisHash is PrevHash for the first record appended to a chain: 32
// zero bytes, hex-encoded.
var genesisHash = hex.EncodeToString(make([]byte, sha256.Size))
