package envelope

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/cryptkit/vault/internal/crypterrors"
)

// AESNonceSize is the size in bytes of an AES-GCM nonce.
const AESNonceSize = 12

// AESTagSize is the size in bytes of the AES-GCM authentication tag.
const AESTagSize = 16

// EncryptAESGCM encrypts plaintext under key using AES-256-GCM with the
// supplied 12-byte nonce and optional AAD. The nonce MUST be unique per key;
// callers obtain one from the nonce manager (C2) rather than generating
// their own, so uniqueness is guaranteed by construction.
//
// Modeled on the teacher's internal/crypto.EncryptAES, generalized to take
// AAD and to return an Envelope instead of a nonce-prefixed blob.
func EncryptAESGCM(key, plaintext, nonce, aad []byte) (*Envelope, error) {
	if len(key) != KeySize {
		return nil, crypterrors.New(crypterrors.InvalidKey, "AES-256-GCM key must be 32 bytes")
	}
	if len(nonce) != AESNonceSize {
		return nil, crypterrors.New(crypterrors.InvalidInput, "AES-GCM nonce must be 12 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "construct AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "construct GCM mode", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, aad)
	env := &Envelope{
		Algorithm:  AlgAESGCM,
		Ciphertext: ciphertext,
		Nonce:      append([]byte(nil), nonce...),
	}
	if len(aad) > 0 {
		env.AADDigest = digestAAD(aad)
	}
	return env, nil
}

// DecryptAESGCM reverses EncryptAESGCM. A tag mismatch surfaces as
// AuthenticationFailed, never a generic decode error.
func DecryptAESGCM(key []byte, env *Envelope, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, crypterrors.New(crypterrors.InvalidKey, "AES-256-GCM key must be 32 bytes")
	}
	if len(env.Nonce) != AESNonceSize {
		return nil, crypterrors.New(crypterrors.InvalidInput, "AES-GCM nonce must be 12 bytes")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "construct AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "construct GCM mode", err)
	}

	plaintext, err := gcm.Open(nil, env.Nonce, env.Ciphertext, aad)
	if err != nil {
		return nil, crypterrors.New(crypterrors.AuthenticationFailed, "AES-GCM tag verification failed")
	}
	return plaintext, nil
}
