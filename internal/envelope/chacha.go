package envelope

import (
	"github.com/cryptkit/vault/internal/crypterrors"
	"golang.org/x/crypto/chacha20poly1305"
)

// ChaChaNonceSize is the size in bytes of a ChaCha20-Poly1305 nonce.
const ChaChaNonceSize = chacha20poly1305.NonceSize

// EncryptChaCha20Poly1305 encrypts plaintext under key with the supplied
// 12-byte nonce and optional AAD. Sibling to EncryptAESGCM: same envelope
// shape, different algorithm tag, so decrypt dispatch needs no out-of-band
// metadata.
func EncryptChaCha20Poly1305(key, plaintext, nonce, aad []byte) (*Envelope, error) {
	if len(key) != KeySize {
		return nil, crypterrors.New(crypterrors.InvalidKey, "ChaCha20-Poly1305 key must be 32 bytes")
	}
	if len(nonce) != ChaChaNonceSize {
		return nil, crypterrors.New(crypterrors.InvalidInput, "ChaCha20-Poly1305 nonce must be 12 bytes")
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "construct ChaCha20-Poly1305 AEAD", err)
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, aad)
	env := &Envelope{
		Algorithm:  AlgChaCha20Poly,
		Ciphertext: ciphertext,
		Nonce:      append([]byte(nil), nonce...),
	}
	if len(aad) > 0 {
		env.AADDigest = digestAAD(aad)
	}
	return env, nil
}

// DecryptChaCha20Poly1305 reverses EncryptChaCha20Poly1305. A tag mismatch
// surfaces as AuthenticationFailed.
func DecryptChaCha20Poly1305(key []byte, env *Envelope, aad []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, crypterrors.New(crypterrors.InvalidKey, "ChaCha20-Poly1305 key must be 32 bytes")
	}
	if len(env.Nonce) != ChaChaNonceSize {
		return nil, crypterrors.New(crypterrors.InvalidInput, "ChaCha20-Poly1305 nonce must be 12 bytes")
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "construct ChaCha20-Poly1305 AEAD", err)
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, aad)
	if err != nil {
		return nil, crypterrors.New(crypterrors.AuthenticationFailed, "ChaCha20-Poly1305 tag verification failed")
	}
	return plaintext, nil
}

// Decrypt dispatches to the correct cipher based on env.Algorithm, so a
// caller storing an Envelope only needs the key to reverse it.
func Decrypt(key []byte, env *Envelope, aad []byte) ([]byte, error) {
	switch env.Algorithm {
	case AlgAESGCM:
		return DecryptAESGCM(key, env, aad)
	case AlgChaCha20Poly:
		return DecryptChaCha20Poly1305(key, env, aad)
	default:
		return nil, crypterrors.New(crypterrors.InvalidInput, "unsupported envelope algorithm for symmetric decrypt")
	}
}
