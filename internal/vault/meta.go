package vault

import (
	"crypto/rand"
	"encoding/json"
	"io"

	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/cryptkit/vault/internal/envelope"
)

// metaDocument is the vault-wide record stored under the "keypair" meta
// key: the salt and Argon2id parameters used to derive the key-encryption
// key from the passphrase, and the AEAD-wrapped data-encryption key. A
// wrong passphrase fails to unwrap the DEK (the AEAD tag itself acts as
// the verifier), so no separate verifier field is kept.
type metaDocument struct {
	Salt          []byte                `json:"salt"`
	Argon2Params  envelope.Argon2Params `json:"argon2_params"`
	WrappedDEKAlg envelope.Algorithm    `json:"wrapped_dek_alg"`
	WrappedNonce  []byte                `json:"wrapped_nonce"`
	WrappedDEK    []byte                `json:"wrapped_dek"`
}

const metaKey = "keypair"

func marshalMeta(m *metaDocument) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "marshal vault meta", err)
	}
	return data, nil
}

func unmarshalMeta(data []byte) (*metaDocument, error) {
	var m metaDocument
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, crypterrors.Wrap(crypterrors.Internal, "unmarshal vault meta", err)
	}
	return &m, nil
}

func wrapDEK(kek, dek []byte) (nonce, ciphertext []byte, err error) {
	n := make([]byte, envelope.AESNonceSize)
	if _, err := io.ReadFull(rand.Reader, n); err != nil {
		return nil, nil, crypterrors.Wrap(crypterrors.Internal, "generate DEK-wrap nonce", err)
	}
	env, err := envelope.EncryptAESGCM(kek, dek, n, nil)
	if err != nil {
		return nil, nil, err
	}
	return env.Nonce, env.Ciphertext, nil
}

func unwrapDEK(kek, nonce, ciphertext []byte) ([]byte, error) {
	env := &envelope.Envelope{Algorithm: envelope.AlgAESGCM, Nonce: nonce, Ciphertext: ciphertext}
	return envelope.DecryptAESGCM(kek, env, nil)
}
