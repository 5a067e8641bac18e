// Package crypterrors provides the unified error taxonomy shared by every
// cryptkit subsystem: nonce manager, streaming pipeline, vault engine, and
// PQ armor.
package crypterrors

import (
	"errors"
	"fmt"
	"regexp"
)

// Kind classifies an Error for programmatic handling and retry decisions.
type Kind string

const (
	// InvalidInput covers malformed encoding, bad length, or an impossible
	// configuration.
	InvalidInput Kind = "invalid_input"
	// InvalidKey covers wrong size, wrong algorithm, or a failed key parse.
	InvalidKey Kind = "invalid_key"
	// AuthenticationFailed covers AEAD tag mismatch, bad signature, or
	// invalid JWT.
	AuthenticationFailed Kind = "authentication_failed"
	// NotFound is returned when a requested item does not exist.
	NotFound Kind = "not_found"
	// Conflict is returned for duplicate/already-exists situations.
	Conflict Kind = "conflict"
	// Locked is returned when a vault operation requires an unlocked vault.
	Locked Kind = "locked"
	// ReplayDetected is returned when a nonce has already been verified.
	ReplayDetected Kind = "replay_detected"
	// Expired is returned for stale nonces, sessions, or tokens.
	Expired Kind = "expired"
	// Io covers filesystem and keychain transport failures.
	Io Kind = "io"
	// Timeout covers operations that exceeded their deadline.
	Timeout Kind = "timeout"
	// Internal covers anything else, including corruption that should not
	// be retried.
	Internal Kind = "internal"
)

// Error is the concrete error type returned by every cryptkit package.
// Its Message is sanitized: callers must not place secret material in it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := sanitize(e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, allowing
// errors.Is(err, crypterrors.New(crypterrors.NotFound, "")) style checks
// against a kind-only sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New constructs an *Error with the given kind and sanitized message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error that carries an underlying cause. The cause's
// own message is not re-sanitized; callers should not wrap errors that may
// themselves carry secret material.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Sentinel returns a bare *Error carrying only a Kind, suitable as the
// target of errors.Is checks: errors.Is(err, crypterrors.Sentinel(crypterrors.Locked)).
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

var (
	secretLike = regexp.MustCompile(`(?i)(key|pass(word|phrase)?|secret|token)\s*[:=]\s*\S+`)
	absPath    = regexp.MustCompile(`(/[\w.\-]+){2,}`)
)

// sanitize redacts absolute paths and key=value/pass=value-shaped
// substrings from a user-visible error message.
func sanitize(msg string) string {
	msg = secretLike.ReplaceAllString(msg, "$1=[redacted]")
	msg = absPath.ReplaceAllString(msg, "[path]")
	return msg
}

// Retryable reports whether errors of this Kind are eligible for retry.
// AuthenticationFailed, ReplayDetected, and any corruption-shaped Internal
// error are never retried.
func (k Kind) Retryable() bool {
	return k == Io || k == Timeout
}
