package streampipe

import (
	"encoding/binary"

	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/cryptkit/vault/internal/envelope"
)

// Cipher selects a symmetric cipher for a pipeline's encrypt stage.
type Cipher int

const (
	CipherAESGCM Cipher = iota
	CipherChaCha20Poly1305
)

// deriveChunkNonce XORs the last 8 bytes of baseNonce with the big-endian
// chunk index, giving each chunk a distinct nonce under a fixed key so
// reordering or truncation changes the nonce the decryptor expects.
func deriveChunkNonce(baseNonce []byte, index uint64) []byte {
	nonce := append([]byte{}, baseNonce...)
	var idxBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], index)
	off := len(nonce) - 8
	for i := 0; i < 8; i++ {
		nonce[off+i] ^= idxBuf[i]
	}
	return nonce
}

// EncryptStage returns a Stage that encrypts each chunk independently under
// key with a nonce derived from baseNonce XOR the chunk's index. index must
// be supplied externally since Stage itself is stateless; EncryptStream
// below wires index tracking for a full run.
func encryptChunk(cipher Cipher, key, baseNonce []byte, index uint64, aad, chunk []byte) ([]byte, error) {
	nonce := deriveChunkNonce(baseNonce, index)
	var env *envelope.Envelope
	var err error
	switch cipher {
	case CipherAESGCM:
		env, err = envelope.EncryptAESGCM(key, chunk, nonce, aad)
	case CipherChaCha20Poly1305:
		env, err = envelope.EncryptChaCha20Poly1305(key, chunk, nonce, aad)
	default:
		return nil, crypterrors.New(crypterrors.InvalidInput, "unknown stream cipher")
	}
	if err != nil {
		return nil, err
	}
	return encodeFrame(env), nil
}

func decryptChunk(cipher Cipher, key, baseNonce []byte, index uint64, aad, frame []byte) ([]byte, error) {
	env, err := decodeFrame(frame)
	if err != nil {
		return nil, err
	}
	expectedNonce := deriveChunkNonce(baseNonce, index)
	if !bytesEqual(env.Nonce, expectedNonce) {
		return nil, crypterrors.New(crypterrors.AuthenticationFailed, "chunk nonce mismatch: stream reordered or truncated")
	}
	switch cipher {
	case CipherAESGCM:
		return envelope.DecryptAESGCM(key, env, aad)
	case CipherChaCha20Poly1305:
		return envelope.DecryptChaCha20Poly1305(key, env, aad)
	default:
		return nil, crypterrors.New(crypterrors.InvalidInput, "unknown stream cipher")
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// EncryptStage builds a Stage that encrypts chunks in order, deriving a
// fresh per-chunk nonce from baseNonce and an internally tracked index.
// The returned Stage is not safe for concurrent use across goroutines; it
// is meant to back exactly one Run call, matching the "chunks emerge in
// source order" guarantee.
func EncryptStage(cipher Cipher, key, baseNonce, aad []byte) Stage {
	var index uint64
	return func(chunk []byte) ([][]byte, error) {
		frame, err := encryptChunk(cipher, key, baseNonce, index, aad, chunk)
		index++
		if err != nil {
			return nil, err
		}
		return [][]byte{frame}, nil
	}
}

// DecryptStage builds the inverse of EncryptStage.
func DecryptStage(cipher Cipher, key, baseNonce, aad []byte) Stage {
	var index uint64
	return func(frame []byte) ([][]byte, error) {
		plain, err := decryptChunk(cipher, key, baseNonce, index, aad, frame)
		index++
		if err != nil {
			return nil, err
		}
		return [][]byte{plain}, nil
	}
}
