// Package pqsign implements detached post-quantum signatures. ML-DSA-65 is
// the default and only executable scheme; Falcon-512/1024 and SPHINCS+ are
// recognized as named algorithms so callers can request them, but no pack
// dependency implements them, so doing so returns an error naming the gap
// rather than faking a signature.
package pqsign

import (
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cryptkit/vault/internal/crypterrors"
)

// Scheme names a signature algorithm a caller may request.
type Scheme int

const (
	SchemeMLDSA65 Scheme = iota
	SchemeFalcon512
	SchemeFalcon1024
	SchemeSPHINCSSHA2128s
)

// SignatureSize is the width of an ML-DSA-65 detached signature.
const SignatureSize = mldsa65.SignatureSize

// KeyPair holds an ML-DSA-65 signing key pair.
type KeyPair struct {
	private *mldsa65.PrivateKey
	public  *mldsa65.PublicKey
}

// Generate creates a fresh ML-DSA-65 key pair.
func Generate(scheme Scheme) (*KeyPair, error) {
	if scheme != SchemeMLDSA65 {
		return nil, unsupported(scheme)
	}
	pub, priv, err := mldsa65.GenerateKey(nil)
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "generate ML-DSA-65 keypair", err)
	}
	return &KeyPair{private: priv, public: pub}, nil
}

// PublicKeyBytes returns the raw marshaled public key.
func (k *KeyPair) PublicKeyBytes() []byte {
	data, _ := k.public.MarshalBinary()
	return data
}

// SignDetached signs message, returning a detached signature over it.
// context, when non-empty, is bound into the signature per ML-DSA's
// optional context-string mechanism (used by internal/armor to bind a
// signature to a frame's header fields).
func (k *KeyPair) SignDetached(message, context []byte) ([]byte, error) {
	sig := make([]byte, mldsa65.SignatureSize)
	if err := mldsa65.SignTo(k.private, message, context, false, sig); err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "sign with ML-DSA-65", err)
	}
	return sig, nil
}

// VerifyDetached verifies a detached ML-DSA-65 signature against a raw
// public key.
func VerifyDetached(scheme Scheme, publicKey, message, context, signature []byte) error {
	if scheme != SchemeMLDSA65 {
		return unsupported(scheme)
	}
	pub := &mldsa65.PublicKey{}
	if err := pub.UnmarshalBinary(publicKey); err != nil {
		return crypterrors.Wrap(crypterrors.InvalidKey, "unmarshal ML-DSA-65 public key", err)
	}
	if !mldsa65.Verify(pub, message, context, signature) {
		return crypterrors.New(crypterrors.AuthenticationFailed, "ML-DSA-65 signature verification failed")
	}
	return nil
}

func unsupported(scheme Scheme) error {
	names := map[Scheme]string{
		SchemeFalcon512:       "Falcon-512",
		SchemeFalcon1024:      "Falcon-1024",
		SchemeSPHINCSSHA2128s: "SPHINCS+-SHA2-128s",
	}
	name, ok := names[scheme]
	if !ok {
		name = "unknown scheme"
	}
	return crypterrors.New(crypterrors.InvalidInput, name+" is a recognized algorithm identifier but has no available implementation")
}
