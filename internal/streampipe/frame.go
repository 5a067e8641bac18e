package streampipe

import (
	"encoding/binary"

	"github.com/cryptkit/vault/internal/crypterrors"
	"github.com/cryptkit/vault/internal/envelope"
)

// encodeFrame serializes an Envelope to a self-contained chunk: 1-byte
// algorithm tag, 1-byte nonce length, nonce, 4-byte little-endian
// ciphertext length, ciphertext.
func encodeFrame(env *envelope.Envelope) []byte {
	frame := make([]byte, 0, 2+len(env.Nonce)+4+len(env.Ciphertext))
	frame = append(frame, byte(env.Algorithm))
	frame = append(frame, byte(len(env.Nonce)))
	frame = append(frame, env.Nonce...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(env.Ciphertext)))
	frame = append(frame, lenBuf[:]...)
	frame = append(frame, env.Ciphertext...)
	return frame
}

func decodeFrame(frame []byte) (*envelope.Envelope, error) {
	if len(frame) < 2 {
		return nil, crypterrors.New(crypterrors.InvalidInput, "encrypted chunk frame too short")
	}
	alg := envelope.Algorithm(frame[0])
	nonceLen := int(frame[1])
	frame = frame[2:]
	if len(frame) < nonceLen+4 {
		return nil, crypterrors.New(crypterrors.InvalidInput, "encrypted chunk frame truncated before nonce/length")
	}
	nonce := frame[:nonceLen]
	frame = frame[nonceLen:]
	ctLen := int(binary.LittleEndian.Uint32(frame[:4]))
	frame = frame[4:]
	if len(frame) != ctLen {
		return nil, crypterrors.New(crypterrors.InvalidInput, "encrypted chunk frame ciphertext length mismatch")
	}
	return &envelope.Envelope{
		Algorithm:  alg,
		Ciphertext: append([]byte(nil), frame...),
		Nonce:      append([]byte(nil), nonce...),
	}, nil
}
