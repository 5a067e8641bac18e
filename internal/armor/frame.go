// Package armor implements the PQ armor & rotation component (C5): sealing
// an entire vault database file behind an ML-KEM-768 encapsulation so the
// on-disk artifact carries no plaintext, and the key-rotation protocol that
// re-seals an armored file under a freshly generated keypair.
package armor

import (
	"encoding/binary"

	"github.com/cryptkit/vault/internal/crypterrors"
)

// magic identifies an armored vault frame.
var magic = []byte("CRYV")

// version is the only frame version this package writes or accepts.
const version = 1

// frame is the decoded form of an armored `.vault` file:
// magic || version(u8) || key_id_len(u16 LE) || key_id ||
// kem_ciphertext_len(u32 LE) || kem_ciphertext || nonce(12) ||
// payload_len(u64 LE) || payload.
type frame struct {
	KeyID         string
	KEMCiphertext []byte
	Nonce         []byte
	Payload       []byte
}

func encodeFrame(f frame) []byte {
	keyID := []byte(f.KeyID)
	buf := make([]byte, 0, len(magic)+1+2+len(keyID)+4+len(f.KEMCiphertext)+len(f.Nonce)+8+len(f.Payload))
	buf = append(buf, magic...)
	buf = append(buf, version)

	keyIDLen := make([]byte, 2)
	binary.LittleEndian.PutUint16(keyIDLen, uint16(len(keyID)))
	buf = append(buf, keyIDLen...)
	buf = append(buf, keyID...)

	ctLen := make([]byte, 4)
	binary.LittleEndian.PutUint32(ctLen, uint32(len(f.KEMCiphertext)))
	buf = append(buf, ctLen...)
	buf = append(buf, f.KEMCiphertext...)

	buf = append(buf, f.Nonce...)

	payLen := make([]byte, 8)
	binary.LittleEndian.PutUint64(payLen, uint64(len(f.Payload)))
	buf = append(buf, payLen...)
	buf = append(buf, f.Payload...)

	return buf
}

func decodeFrame(data []byte) (frame, error) {
	f, _, err := decodeFrameLen(data)
	return f, err
}

// decodeFrameLen parses a frame and also reports how many leading bytes of
// data it consumed, so a caller can locate an optional trailer (e.g. a
// detached signature over the frame) appended after it.
func decodeFrameLen(data []byte) (frame, int, error) {
	var f frame
	cursor := data

	if len(cursor) < len(magic)+1+2 {
		return f, 0, crypterrors.New(crypterrors.InvalidInput, "armored frame too short")
	}
	if string(cursor[:len(magic)]) != string(magic) {
		return f, 0, crypterrors.New(crypterrors.InvalidInput, "armored frame has wrong magic")
	}
	cursor = cursor[len(magic):]

	if cursor[0] != version {
		return f, 0, crypterrors.New(crypterrors.InvalidInput, "unsupported version")
	}
	cursor = cursor[1:]

	keyIDLen := int(binary.LittleEndian.Uint16(cursor[:2]))
	cursor = cursor[2:]
	if len(cursor) < keyIDLen {
		return f, 0, crypterrors.New(crypterrors.InvalidInput, "armored frame key id truncated")
	}
	f.KeyID = string(cursor[:keyIDLen])
	cursor = cursor[keyIDLen:]

	if len(cursor) < 4 {
		return f, 0, crypterrors.New(crypterrors.InvalidInput, "armored frame missing ciphertext length")
	}
	ctLen := int(binary.LittleEndian.Uint32(cursor[:4]))
	cursor = cursor[4:]
	if len(cursor) < ctLen {
		return f, 0, crypterrors.New(crypterrors.InvalidInput, "armored frame kem ciphertext truncated")
	}
	f.KEMCiphertext = append([]byte(nil), cursor[:ctLen]...)
	cursor = cursor[ctLen:]

	const nonceSize = 12
	if len(cursor) < nonceSize {
		return f, 0, crypterrors.New(crypterrors.InvalidInput, "armored frame nonce truncated")
	}
	f.Nonce = append([]byte(nil), cursor[:nonceSize]...)
	cursor = cursor[nonceSize:]

	if len(cursor) < 8 {
		return f, 0, crypterrors.New(crypterrors.InvalidInput, "armored frame missing payload length")
	}
	payLen := binary.LittleEndian.Uint64(cursor[:8])
	cursor = cursor[8:]
	if uint64(len(cursor)) < payLen {
		return f, 0, crypterrors.New(crypterrors.InvalidInput, "armored frame payload truncated")
	}
	f.Payload = append([]byte(nil), cursor[:payLen]...)
	cursor = cursor[payLen:]

	return f, len(data) - len(cursor), nil
}

// peekKeyID parses just enough of an armored file to learn which keychain
// entry decrypts it. Used by Rotate to discover the key currently in
// force before generating a replacement.
func peekKeyID(data []byte) (string, error) {
	f, err := decodeFrame(data)
	if err != nil {
		return "", err
	}
	return f.KeyID, nil
}
