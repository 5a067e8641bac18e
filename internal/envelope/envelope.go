// Package envelope implements the primitive envelope contract (C1):
// algorithm-tagged ciphertext envelopes and the encoded-form rules shared by
// every cryptkit subsystem.
package envelope

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/cryptkit/vault/internal/crypterrors"
)

// Algorithm identifies the cipher or PQ primitive an Envelope was produced
// with, so Decrypt needs only the key.
type Algorithm string

const (
	AlgAESGCM          Algorithm = "AES-256-GCM"
	AlgChaCha20Poly    Algorithm = "ChaCha20-Poly1305"
	AlgMLKEM768        Algorithm = "ML-KEM-768"
	AlgMLDSA65         Algorithm = "ML-DSA-65"
	AlgFalcon512       Algorithm = "Falcon-512"
	AlgFalcon1024      Algorithm = "Falcon-1024"
	AlgSPHINCSSHA2128s Algorithm = "SPHINCS+-SHA2-128s"
)

// Envelope is a tagged ciphertext record: the algorithm that produced it,
// the ciphertext bytes, and optional nonce / AAD digest so a decrypt
// operation never needs out-of-band metadata.
type Envelope struct {
	Algorithm  Algorithm
	Ciphertext []byte
	Nonce      []byte
	AADDigest  []byte
}

// Encoding names one of the four accepted input encodings for builders.
type Encoding int

const (
	EncodingRaw Encoding = iota
	EncodingHex
	EncodingBase64
	EncodingBase64URL
)

// DecodeKey decodes key material in any of the accepted forms. Decode
// failures produce InvalidKey, never a generic parse error, per C1's
// contract.
func DecodeKey(s string, enc Encoding) ([]byte, error) {
	b, err := decode(s, enc)
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.InvalidKey, "decode key material", err)
	}
	return b, nil
}

// DecodeCiphertext decodes ciphertext in any of the accepted forms. Decode
// failures produce InvalidCiphertext-shaped errors (crypterrors.InvalidInput
// with a ciphertext-specific message), never a generic parse error.
func DecodeCiphertext(s string, enc Encoding) ([]byte, error) {
	b, err := decode(s, enc)
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.InvalidInput, "decode ciphertext", err)
	}
	return b, nil
}

func decode(s string, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingRaw:
		return []byte(s), nil
	case EncodingHex:
		return hex.DecodeString(strings.ToLower(s))
	case EncodingBase64:
		return base64.StdEncoding.DecodeString(s)
	case EncodingBase64URL:
		return base64.RawURLEncoding.DecodeString(s)
	default:
		return nil, crypterrors.New(crypterrors.InvalidInput, "unknown encoding")
	}
}

// ToBase64URL encodes bytes as unpadded base64url, the canonical wire form
// for nonces, ciphertexts, and keys throughout cryptkit.
func ToBase64URL(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

// ToBase64 encodes bytes as standard padded base64, used for values stored
// as document-store fields.
func ToBase64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// ToHex encodes bytes as lowercase hex.
func ToHex(b []byte) string { return hex.EncodeToString(b) }

// Zeroize overwrites b with zeros in place. Called on any sensitive buffer
// before it goes out of scope or before a lock protecting it is released.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
