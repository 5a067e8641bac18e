// Package pqkem wraps ML-KEM-768 key encapsulation, the post-quantum
// primitive backing PQ armor (C5) and available as a general-purpose
// primitive alongside the symmetric envelope (C1).
package pqkem

import (
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cryptkit/vault/internal/crypterrors"
)

// SharedSecretSize is the width of a decapsulated shared secret.
const SharedSecretSize = 32

// CiphertextSize is the width of an encapsulated key.
const CiphertextSize = 1088

// KeyPair holds an ML-KEM-768 key pair.
type KeyPair struct {
	private *mlkem768.PrivateKey
	public  *mlkem768.PublicKey
}

// Generate creates a fresh ML-KEM-768 key pair.
func Generate() (*KeyPair, error) {
	pub, priv, err := mlkem768.GenerateKeyPair(nil)
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "generate ML-KEM-768 keypair", err)
	}
	return &KeyPair{private: priv, public: pub}, nil
}

// FromBytes reconstructs a KeyPair from its raw marshaled private and
// public key bytes, as persisted in the OS keychain.
func FromBytes(privateKeyBytes, publicKeyBytes []byte) (*KeyPair, error) {
	priv := &mlkem768.PrivateKey{}
	if err := priv.Unpack(privateKeyBytes); err != nil {
		return nil, crypterrors.Wrap(crypterrors.InvalidKey, "unpack ML-KEM-768 private key", err)
	}
	pub := &mlkem768.PublicKey{}
	if err := pub.Unpack(publicKeyBytes); err != nil {
		return nil, crypterrors.Wrap(crypterrors.InvalidKey, "unpack ML-KEM-768 public key", err)
	}
	return &KeyPair{private: priv, public: pub}, nil
}

// PrivateKeyBytes returns the raw marshaled private key.
func (k *KeyPair) PrivateKeyBytes() []byte {
	data, _ := k.private.MarshalBinary()
	return data
}

// PublicKeyBytes returns the raw marshaled public key.
func (k *KeyPair) PublicKeyBytes() []byte {
	data, _ := k.public.MarshalBinary()
	return data
}

// Encapsulate derives a fresh shared secret against this pair's public key,
// returning the secret and the ciphertext to send to the holder of the
// private key.
func (k *KeyPair) Encapsulate() (sharedSecret, ciphertext []byte, err error) {
	ciphertext = make([]byte, CiphertextSize)
	sharedSecret = make([]byte, SharedSecretSize)
	k.public.EncapsulateTo(ciphertext, sharedSecret, nil)
	return sharedSecret, ciphertext, nil
}

// Decapsulate recovers the shared secret from a ciphertext produced by
// Encapsulate against the matching public key.
func (k *KeyPair) Decapsulate(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != CiphertextSize {
		return nil, crypterrors.New(crypterrors.InvalidInput, "ML-KEM-768 ciphertext has wrong size")
	}
	sharedSecret := make([]byte, SharedSecretSize)
	k.private.DecapsulateTo(sharedSecret, ciphertext)
	return sharedSecret, nil
}

// EncapsulateTo encapsulates against a bare public-key byte string, for
// callers that only hold the recipient's public key (no full KeyPair).
func EncapsulateTo(publicKeyBytes []byte) (sharedSecret, ciphertext []byte, err error) {
	pub := &mlkem768.PublicKey{}
	if err := pub.Unpack(publicKeyBytes); err != nil {
		return nil, nil, crypterrors.Wrap(crypterrors.InvalidKey, "unpack ML-KEM-768 public key", err)
	}
	ciphertext = make([]byte, CiphertextSize)
	sharedSecret = make([]byte, SharedSecretSize)
	pub.EncapsulateTo(ciphertext, sharedSecret, nil)
	return sharedSecret, ciphertext, nil
}
