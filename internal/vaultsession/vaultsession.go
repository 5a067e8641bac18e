// Package vaultsession implements JWT-session authentication for the
// vault (part of C4): HS256 tokens with a per-vault derived secret, and
// persistence of session metadata so a session survives process restart.
package vaultsession

import (
	"time"

	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/cryptkit/vault/internal/envelope"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// subject is the fixed JWT subject claim for every vault session.
const subject = "vault_user"

// jwtSecretInfo is the fixed Argon2id info string used to derive a
// per-vault JWT signing secret from the vault's encryption key. A fixed
// info string is acceptable here because the derivation input already has
// full entropy (a 32-byte AEAD key), never a raw user passphrase.
const jwtSecretInfo = "cryypt:jwt:secret:v1"

// Claims is the claim set embedded in every vault session token.
type Claims struct {
	jwt.RegisteredClaims
	VaultID   string `json:"vault_id"`
	SessionID string `json:"session_id"`
}

// DefaultTTL is the default session lifetime when none is specified.
const DefaultTTL = time.Hour

// DeriveSecret derives the per-vault JWT signing secret from the vault's
// encryption key and vault id. Argon2id with a per-vault-unique salt
// (derived from vaultID) binds the secret to this vault even though the
// info string is fixed across vaults.
func DeriveSecret(encryptionKey []byte, vaultID string) []byte {
	salt := []byte(jwtSecretInfo + ":" + vaultID)
	key := envelope.DeriveKeyArgon2id(string(encryptionKey), salt, envelope.DefaultArgon2Params())
	defer key.Zeroize()
	return append([]byte(nil), key.Bytes()...)
}

// Issue creates a signed HS256 token for vaultID, valid for ttl (DefaultTTL
// if zero).
func Issue(secret []byte, vaultID string, ttl time.Duration) (token string, sessionID string, err error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	sessionID = uuid.NewString()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		VaultID:   vaultID,
		SessionID: sessionID,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", "", crypterrors.Wrap(crypterrors.Internal, "sign vault session token", err)
	}
	return signed, sessionID, nil
}

// Verify validates token against secret and confirms its vault_id claim
// matches vaultID, rejecting cross-vault token reuse.
func Verify(token string, secret []byte, vaultID string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, crypterrors.New(crypterrors.AuthenticationFailed, "unexpected JWT signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.AuthenticationFailed, "JWT validation failed", err)
	}
	if !parsed.Valid {
		return nil, crypterrors.New(crypterrors.AuthenticationFailed, "JWT token invalid")
	}
	if claims.Subject != subject {
		return nil, crypterrors.New(crypterrors.AuthenticationFailed, "unexpected JWT subject claim")
	}
	if claims.VaultID != vaultID {
		return nil, crypterrors.New(crypterrors.AuthenticationFailed, "JWT vault_id claim does not match this vault")
	}
	return &claims, nil
}
