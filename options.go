package cryptkit

import (
	"io"
	"time"

	"github.com/cryptkit/vault/internal/keychain"
	"github.com/rs/zerolog"
)

// toolkitConfig holds configuration for a Toolkit.
type toolkitConfig struct {
	logger   zerolog.Logger
	keychain keychain.Keychain
	loadEnv  bool
}

// Option configures a Toolkit.
type Option func(*toolkitConfig)

// WithLogger sets the structured logger used for the toolkit's own
// diagnostic logging (not the security audit log, which is a separate
// stream — see WithAuditSink). Defaults to zerolog.Nop(): the library
// never configures global logging, only emits through an injected logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *toolkitConfig) { c.logger = logger }
}

// WithKeychain overrides the OS keychain backend, primarily for tests
// that substitute keychain.NewFakeKeychain().
func WithKeychain(kc keychain.Keychain) Option {
	return func(c *toolkitConfig) { c.keychain = kc }
}

// WithoutEnvFile skips loading a .env file via godotenv on New. Ambient
// environment variables (VAULT_JWT, CRYYPT_KEY_ENCRYPTION_PASSPHRASE) are
// still read either way; this only controls whether a .env file in the
// working directory is merged into the process environment first.
func WithoutEnvFile() Option {
	return func(c *toolkitConfig) { c.loadEnv = false }
}

// vaultConfig holds configuration for opening or creating a Vault.
type vaultConfig struct {
	cacheSize      int
	auditSink      io.Writer
	auditSessionID string
	sessionTTL     time.Duration
}

// VaultOption configures Vault opening/creation.
type VaultOption func(*vaultConfig)

// WithCacheSize sets the vault's ciphertext LRU cache capacity. Defaults
// to 1024 entries.
func WithCacheSize(entries int) VaultOption {
	return func(c *vaultConfig) { c.cacheSize = entries }
}

// WithAuditSink mirrors every security-audit record as newline-delimited
// JSON to w, in addition to keeping them in memory for Verify.
func WithAuditSink(w io.Writer) VaultOption {
	return func(c *vaultConfig) { c.auditSink = w }
}

// WithAuditSessionID sets the session identifier recorded on every audit
// record for this vault. Defaults to the vault's derived id.
func WithAuditSessionID(sessionID string) VaultOption {
	return func(c *vaultConfig) { c.auditSessionID = sessionID }
}

// WithSessionTTL sets the default TTL used by Vault.IssueSession when
// called with a zero duration.
func WithSessionTTL(ttl time.Duration) VaultOption {
	return func(c *vaultConfig) { c.sessionTTL = ttl }
}
