package envelope

import (
	"crypto/rand"
	"io"

	"github.com/cryptkit/vault/internal/crypterrors"
	"golang.org/x/crypto/argon2"
)

// KeySize is the length in bytes of every symmetric key cryptkit issues:
// 256 bits.
const KeySize = 32

// Argon2Params configures Argon2id key derivation. Defaults follow the
// OWASP-recommended parameters used by frnd1406-NasServer's
// EncryptionService.Setup (64 MiB memory, 3 iterations, 4 threads).
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltSize    int
}

// DefaultArgon2Params returns the OWASP-recommended parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Memory: 64 * 1024, Iterations: 3, Parallelism: 4, SaltSize: 16}
}

// SymmetricKey is an opaque 256-bit secret. Exclusively owned by whatever
// builder constructed it; call Zeroize when done with it.
type SymmetricKey struct {
	bytes [KeySize]byte
}

// GenerateKey draws a fresh random 256-bit key from the OS CSPRNG.
func GenerateKey() (*SymmetricKey, error) {
	k := &SymmetricKey{}
	if _, err := io.ReadFull(rand.Reader, k.bytes[:]); err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "generate key", err)
	}
	return k, nil
}

// DeriveKeyArgon2id derives a key from a passphrase and a per-vault random
// salt using Argon2id. Deterministic for a given (passphrase, salt, params).
func DeriveKeyArgon2id(passphrase string, salt []byte, params Argon2Params) *SymmetricKey {
	raw := argon2.IDKey([]byte(passphrase), salt, params.Iterations, params.Memory, params.Parallelism, KeySize)
	k := &SymmetricKey{}
	copy(k.bytes[:], raw)
	Zeroize(raw)
	return k
}

// NewSymmetricKeyFromBytes imports raw key bytes, in any of the accepted
// encodings. Returns InvalidKey if the decoded length isn't exactly 32
// bytes.
func NewSymmetricKeyFromBytes(s string, enc Encoding) (*SymmetricKey, error) {
	raw, err := DecodeKey(s, enc)
	if err != nil {
		return nil, err
	}
	defer Zeroize(raw)
	if len(raw) != KeySize {
		return nil, crypterrors.New(crypterrors.InvalidKey, "key must be 32 bytes")
	}
	k := &SymmetricKey{}
	copy(k.bytes[:], raw)
	return k, nil
}

// Bytes exposes the raw key material. Callers must not retain the returned
// slice past the key's lifetime; it aliases the key's internal array.
func (k *SymmetricKey) Bytes() []byte { return k.bytes[:] }

// Zeroize overwrites the key's memory with zeros. The key must not be used
// afterward.
func (k *SymmetricKey) Zeroize() {
	for i := range k.bytes {
		k.bytes[i] = 0
	}
}

// GenerateSalt draws fresh random salt bytes for Argon2id derivation.
func GenerateSalt(size int) ([]byte, error) {
	salt := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "generate salt", err)
	}
	return salt, nil
}
