// Package noncemgr implements the secure nonce manager (C2): authenticated,
// timestamped, replay-protected nonces with HMAC binding and TTL freshness.
//
// Grounded directly on original_source/packages/cipher/src/cipher/nonce.rs —
// same sizes, same HKDF domain-separation string, same three-phase verify.
package noncemgr

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"io"
	"time"

	"github.com/cryptkit/vault/internal/crypterrors"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

const (
	// TimestampBytes is the width of the big-endian nanosecond timestamp.
	TimestampBytes = 8
	// RandomBytes is the width of the per-nonce random material.
	RandomBytes = 32
	// MACBytes is the width of the truncated HMAC-SHA3-512 tag.
	MACBytes = 32
	// RawBytes is the total width of an unencoded nonce record.
	RawBytes = TimestampBytes + RandomBytes + MACBytes // 72
	// EncodedLen is the exact length of a base64url-no-pad encoded nonce.
	EncodedLen = 96

	// CipherNonceBytes is the width of the projected 12-byte cipher nonce.
	CipherNonceBytes = 12

	hkdfInfoHMAC = "crypt:nonce:hmac:v1"

	// MasterSecretSize is the required width of the master secret passed to
	// New.
	MasterSecretSize = 64
)

// Config configures a Manager.
type Config struct {
	// TTL is the maximum age accepted for a nonce. Defaults to 300s.
	TTL time.Duration
}

// DefaultConfig returns the spec default: a 300-second TTL.
func DefaultConfig() Config { return Config{TTL: 300 * time.Second} }

// ParsedNonce is the decoded, verified form of a nonce.
type ParsedNonce struct {
	TimestampNs uint64
	Random      [RandomBytes]byte
}

// Manager generates and verifies authenticated nonces and tracks a replay
// cache of previously verified tags.
type Manager struct {
	macKey [64]byte
	cfg    Config
	seen   *shardedMap
}

// New constructs a Manager from a 64-byte master secret. The HMAC key is
// derived via HKDF-SHA3-512 with domain-separation info "crypt:nonce:hmac:v1".
func New(masterSecret []byte, cfg *Config) (*Manager, error) {
	if len(masterSecret) != MasterSecretSize {
		return nil, crypterrors.New(crypterrors.InvalidKey, "master secret must be 64 bytes")
	}

	c := DefaultConfig()
	if cfg != nil {
		c = *cfg
	}

	reader := hkdf.New(sha3.New512, masterSecret, nil, []byte(hkdfInfoHMAC))
	m := &Manager{cfg: c, seen: newShardedMap()}
	if _, err := io.ReadFull(reader, m.macKey[:]); err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "HKDF expand for nonce MAC key", err)
	}
	return m, nil
}

// Generate draws a fresh authenticated nonce using the given CSPRNG-backed
// reader (typically crypto/rand.Reader).
func (m *Manager) Generate(rng io.Reader) (string, error) {
	ts, err := nowNanos()
	if err != nil {
		return "", crypterrors.Wrap(crypterrors.Internal, "read clock for nonce generation", err)
	}

	var random [RandomBytes]byte
	if _, err := io.ReadFull(rng, random[:]); err != nil {
		return "", crypterrors.Wrap(crypterrors.Internal, "read randomness for nonce generation", err)
	}

	tag := m.hmacTag(ts, random)

	var raw [RawBytes]byte
	binary.BigEndian.PutUint64(raw[:TimestampBytes], ts)
	copy(raw[TimestampBytes:TimestampBytes+RandomBytes], random[:])
	copy(raw[TimestampBytes+RandomBytes:], tag[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// GenerateOS is a convenience wrapper using crypto/rand.Reader.
func (m *Manager) GenerateOS() (string, error) { return m.Generate(rand.Reader) }

// Verify validates a nonce's length, MAC, freshness, and replay status. At
// most one replay-cache mutation occurs, performed atomically within a
// single shard.
//
// BadMac and Replay are structured to be indistinguishable in timing at the
// observable boundary: the MAC comparison always runs to completion via
// constant-time equality before any freshness or replay branch is taken.
func (m *Manager) Verify(encoded string) (*ParsedNonce, error) {
	if len(encoded) != EncodedLen {
		return nil, crypterrors.New(crypterrors.InvalidInput, "nonce length mismatch")
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(raw) != RawBytes {
		return nil, crypterrors.Wrap(crypterrors.InvalidInput, "nonce base64url decode failed", err)
	}

	ts := binary.BigEndian.Uint64(raw[:TimestampBytes])
	var random [RandomBytes]byte
	copy(random[:], raw[TimestampBytes:TimestampBytes+RandomBytes])
	var tag [MACBytes]byte
	copy(tag[:], raw[TimestampBytes+RandomBytes:])

	expected := m.hmacTag(ts, random)
	macOK := subtle.ConstantTimeCompare(expected[:], tag[:]) == 1

	fresh := isFresh(ts, m.cfg.TTL)

	// The replay-cache mutation always runs so that BadMac and Replay take
	// the same code path up to this point; we only act on its result when
	// the MAC was valid.
	replay := m.seen.checkAndInsert(tag, ts, func(prevTs uint64) bool {
		return isFresh(prevTs, m.cfg.TTL)
	})

	if !macOK {
		return nil, crypterrors.New(crypterrors.AuthenticationFailed, "nonce MAC mismatch")
	}
	if !fresh {
		return nil, crypterrors.New(crypterrors.Expired, "nonce expired")
	}
	if replay {
		return nil, crypterrors.New(crypterrors.ReplayDetected, "nonce already verified")
	}

	return &ParsedNonce{TimestampNs: ts, Random: random}, nil
}

// ExtractCipherNonce verifies nonce and projects it into the 12-byte cipher
// nonce used by AES-GCM/ChaCha20-Poly1305: the first 8 timestamp bytes plus
// the first 4 random bytes.
func (m *Manager) ExtractCipherNonce(encoded string) ([CipherNonceBytes]byte, error) {
	var out [CipherNonceBytes]byte
	parsed, err := m.Verify(encoded)
	if err != nil {
		return out, err
	}
	binary.BigEndian.PutUint64(out[:8], parsed.TimestampNs)
	copy(out[8:], parsed.Random[:4])
	return out, nil
}

// CleanupExpired walks the replay cache and removes entries older than TTL.
// Safe to call concurrently with Verify and Generate.
func (m *Manager) CleanupExpired() {
	m.seen.cleanupExpired(func(ts uint64) bool { return isFresh(ts, m.cfg.TTL) })
}

// ReplayCacheSize reports the current number of tracked replay entries,
// primarily for tests and diagnostics.
func (m *Manager) ReplayCacheSize() int { return m.seen.len() }

func (m *Manager) hmacTag(ts uint64, random [RandomBytes]byte) [MACBytes]byte {
	mac := hmac.New(sha3.New512, m.macKey[:])
	var tsBuf [TimestampBytes]byte
	binary.BigEndian.PutUint64(tsBuf[:], ts)
	mac.Write(tsBuf[:])
	mac.Write(random[:])
	sum := mac.Sum(nil)
	var tag [MACBytes]byte
	copy(tag[:], sum[:MACBytes])
	return tag
}

func nowNanos() (uint64, error) {
	return uint64(time.Now().UnixNano()), nil
}

func isFresh(ts uint64, ttl time.Duration) bool {
	now := uint64(time.Now().UnixNano())
	var age uint64
	if now > ts {
		age = now - ts
	}
	return age <= uint64(ttl.Nanoseconds())
}
