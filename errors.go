package cryptkit

import (
	"errors"

	"github.com/cryptkit/vault/internal/crypterrors"
)

// Error is the concrete error type every cryptkit operation returns.
type Error = crypterrors.Error

// Kind classifies an Error for programmatic handling and retry decisions.
type Kind = crypterrors.Kind

const (
	KindInvalidInput          = crypterrors.InvalidInput
	KindInvalidKey            = crypterrors.InvalidKey
	KindAuthenticationFailed  = crypterrors.AuthenticationFailed
	KindNotFound              = crypterrors.NotFound
	KindConflict              = crypterrors.Conflict
	KindLocked                = crypterrors.Locked
	KindReplayDetected        = crypterrors.ReplayDetected
	KindExpired               = crypterrors.Expired
	KindIo                    = crypterrors.Io
	KindTimeout               = crypterrors.Timeout
	KindInternal              = crypterrors.Internal
)

// Sentinel errors for the common errors.Is(err, cryptkit.Err*) style check
// against a kind-only sentinel, mirroring the teacher's package-level
// Err* variables.
var (
	ErrAuthenticationFailed = crypterrors.Sentinel(crypterrors.AuthenticationFailed)
	ErrNotFound             = crypterrors.Sentinel(crypterrors.NotFound)
	ErrConflict             = crypterrors.Sentinel(crypterrors.Conflict)
	ErrLocked               = crypterrors.Sentinel(crypterrors.Locked)
	ErrReplayDetected       = crypterrors.Sentinel(crypterrors.ReplayDetected)
	ErrExpired              = crypterrors.Sentinel(crypterrors.Expired)
)

// KindOf extracts the Kind from err, if err is (or wraps) a *Error.
// Returns ("", false) for any other error, including nil.
func KindOf(err error) (Kind, bool) {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind, true
	}
	return "", false
}

// ExitCode maps err to the exit-code table documented for CLI callers that
// consume this library: 0 success, 1 user error, 2 crypto failure, 3 I/O
// or keychain failure, 4 vault locked / session invalid. The library
// itself has no CLI (out of scope); this only keeps that contract stable
// for whatever does.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	kind, ok := KindOf(err)
	if !ok {
		return 1
	}
	switch kind {
	case crypterrors.InvalidInput, crypterrors.InvalidKey, crypterrors.NotFound, crypterrors.Conflict:
		return 1
	case crypterrors.AuthenticationFailed, crypterrors.ReplayDetected:
		return 2
	case crypterrors.Io, crypterrors.Timeout:
		return 3
	case crypterrors.Locked, crypterrors.Expired:
		return 4
	default:
		return 1
	}
}
